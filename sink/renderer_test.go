// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"errors"
	"math"
	"testing"

	"github.com/ik5/audplay/internal/audiotest"
)

func newRenderer(t *testing.T) (*Renderer, *Worklet) {
	t.Helper()

	w := newWorklet(t)
	r, err := NewRenderer(w, nil, testRate, 2)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r, w
}

func TestNewRenderer_Invalid(t *testing.T) {
	t.Parallel()

	w := newWorklet(t)
	if _, err := NewRenderer(w, nil, 0, 2); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("NewRenderer(rate 0) error = %v, want %v", err, ErrInvalidFormat)
	}
	if _, err := NewRenderer(w, nil, testRate, 0); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("NewRenderer(channels 0) error = %v, want %v", err, ErrInvalidFormat)
	}
}

func TestRenderer_InterleavesWithVolume(t *testing.T) {
	t.Parallel()

	r, w := newRenderer(t)
	attach(t, w, 1024, 1024, audiotest.PerChannel(0.5, -0.5))
	r.SetVolume(0.5)

	dst := make([]float32, r.Quantum()*r.Channels())
	if !r.RenderQuantum(dst) {
		t.Fatal("RenderQuantum() = false with buffered audio")
	}
	for i := 0; i < len(dst); i += 2 {
		if dst[i] != 0.25 || dst[i+1] != -0.25 {
			t.Fatalf("frame %d = [%v %v], want [0.25 -0.25]", i/2, dst[i], dst[i+1])
		}
	}
}

func TestRenderer_SetVolumeClamps(t *testing.T) {
	t.Parallel()

	r, _ := newRenderer(t)
	tests := []struct {
		in, want float64
	}{
		{2, 1},
		{-1, 0},
		{0.25, 0.25},
	}
	for _, tt := range tests {
		r.SetVolume(tt.in)
		if got := r.Volume(); got != tt.want {
			t.Errorf("SetVolume(%v); Volume() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRenderer_FadeInWaitsForAudio(t *testing.T) {
	t.Parallel()

	r, w := newRenderer(t)
	r.FadeIn().Start(256)

	dst := make([]float32, r.Quantum()*r.Channels())
	if r.RenderQuantum(dst) {
		t.Fatal("RenderQuantum() = true without a session")
	}

	attach(t, w, 1024, 1024, audiotest.Constant(1))
	r.RenderQuantum(dst)
	if want := FadeInCurve()[0]; dst[0] != want {
		t.Errorf("first audible frame = %v, want %v", dst[0], want)
	}
	if last := dst[len(dst)-1]; last <= dst[0] || last >= 1 {
		t.Errorf("last frame of the first quantum = %v, want between %v and 1", last, dst[0])
	}

	r.RenderQuantum(dst)
	r.RenderQuantum(dst)
	if math.Abs(float64(dst[0]-1)) > 1e-6 {
		t.Errorf("frame after the fade = %v, want 1", dst[0])
	}
}
