// SPDX-License-Identifier: EPL-2.0

package sink

import "sync/atomic"

// FadeIn ramps playback up along FadeInCurve. Start is called by the
// producer side when playback resumes; Apply runs on the render goroutine,
// downstream of the Worklet.
type FadeIn struct {
	request atomic.Int64

	// Owned by the render goroutine.
	frames int64
	pos    int64
}

// Start restarts the envelope from its first point, spread over frames
// frames. A non-positive count disables the fade.
func (f *FadeIn) Start(frames int) {
	if frames <= 0 {
		f.request.Store(-1)
		return
	}
	f.request.Store(int64(frames))
}

// Apply scales the first n frames of out by the envelope.
func (f *FadeIn) Apply(out [][]float32, n int) {
	switch req := f.request.Swap(0); {
	case req > 0:
		f.frames, f.pos = req, 0
	case req < 0:
		f.frames, f.pos = 0, 0
	}
	if f.pos >= f.frames {
		return
	}

	curve := FadeInCurve()
	for i := range n {
		if f.pos >= f.frames {
			return
		}
		x := float64(f.pos) / float64(f.frames) * (CurvePoints - 1)
		k := int(x)
		frac := float32(x - float64(k))
		g := curve[k] + (curve[k+1]-curve[k])*frac
		for c := range out {
			out[c][i] *= g
		}
		f.pos++
	}
}
