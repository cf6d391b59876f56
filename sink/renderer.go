// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"math"
	"sync/atomic"
)

// Renderer turns Worklet quanta into interleaved float32 frames for an
// output driver. The chain is worklet, fade-in, volume.
type Renderer struct {
	worklet    *Worklet
	fade       *FadeIn
	sampleRate int
	channels   int

	volume atomic.Uint32 // float32 bits

	planar [][]float32
}

func NewRenderer(w *Worklet, fade *FadeIn, sampleRate, channels int) (*Renderer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, ErrInvalidFormat
	}
	if fade == nil {
		fade = &FadeIn{}
	}

	r := &Renderer{
		worklet:    w,
		fade:       fade,
		sampleRate: sampleRate,
		channels:   channels,
		planar:     make([][]float32, channels),
	}
	for c := range r.planar {
		r.planar[c] = make([]float32, w.Quantum())
	}
	r.SetVolume(1)
	return r, nil
}

func (r *Renderer) Worklet() *Worklet { return r.worklet }
func (r *Renderer) FadeIn() *FadeIn   { return r.fade }
func (r *Renderer) SampleRate() int   { return r.sampleRate }
func (r *Renderer) Channels() int     { return r.channels }
func (r *Renderer) Quantum() int      { return r.worklet.Quantum() }

// SetVolume sets the output volume, clamped to [0, 1].
func (r *Renderer) SetVolume(v float64) {
	v = min(1, max(0, v))
	r.volume.Store(math.Float32bits(float32(v)))
}

func (r *Renderer) Volume() float64 {
	return float64(math.Float32frombits(r.volume.Load()))
}

// RenderQuantum renders one quantum into dst, which holds at least
// Quantum()*Channels() samples, and reports whether it carried audio.
func (r *Renderer) RenderQuantum(dst []float32) bool {
	q := r.worklet.Quantum()
	audible := r.worklet.Process(r.planar)
	if audible {
		r.fade.Apply(r.planar, q)
	}

	vol := math.Float32frombits(r.volume.Load())
	ch := r.channels
	for c, samples := range r.planar {
		for i, v := range samples {
			dst[i*ch+c] = v * vol
		}
	}
	return audible
}
