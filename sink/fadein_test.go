// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"math"
	"testing"

	"github.com/ik5/audplay/internal/audiotest"
)

func ones(frames int) [][]float32 {
	return audiotest.Planar(2, frames, audiotest.Constant(1))
}

func TestFadeIn_Idle(t *testing.T) {
	t.Parallel()

	var f FadeIn
	out := ones(64)
	f.Apply(out, 64)
	if out[0][0] != 1 || out[1][63] != 1 {
		t.Error("Apply() changed audio without Start")
	}
}

func TestFadeIn_Envelope(t *testing.T) {
	t.Parallel()

	var f FadeIn
	f.Start(800)
	out := ones(1000)
	f.Apply(out, 1000)

	curve := FadeInCurve()
	checks := []struct {
		frame int
		want  float32
	}{
		{0, curve[0]},
		{50, (curve[0] + curve[1]) / 2},
		{100, curve[1]},
		{400, curve[4]},
		{700, curve[7]},
		{800, 1},
		{999, 1},
	}
	for _, c := range checks {
		for ch := range out {
			if math.Abs(float64(out[ch][c.frame]-c.want)) > 1e-6 {
				t.Errorf("channel %d frame %d = %v, want %v", ch, c.frame, out[ch][c.frame], c.want)
			}
		}
	}
	for i := 1; i < 800; i++ {
		if out[0][i] < out[0][i-1] {
			t.Fatalf("envelope decreases at frame %d", i)
		}
	}
}

func TestFadeIn_SpansCalls(t *testing.T) {
	t.Parallel()

	var f FadeIn
	f.Start(256)
	out := ones(128)
	f.Apply(out, 128)
	out = ones(128)
	f.Apply(out, 128)

	// Frame 128 of 256 sits on curve point 4.
	if want := FadeInCurve()[4]; math.Abs(float64(out[0][0]-want)) > 1e-6 {
		t.Errorf("second quantum starts at %v, want %v", out[0][0], want)
	}
}

func TestFadeIn_Restart(t *testing.T) {
	t.Parallel()

	var f FadeIn
	f.Start(100)
	f.Apply(ones(100), 100)

	f.Start(100)
	out := ones(10)
	f.Apply(out, 10)
	if out[0][0] != FadeInCurve()[0] {
		t.Errorf("restarted fade begins at %v, want %v", out[0][0], FadeInCurve()[0])
	}

	f.Start(0)
	out = ones(10)
	f.Apply(out, 10)
	if out[0][0] != 1 {
		t.Errorf("Start(0) left the fade running: %v", out[0][0])
	}
}
