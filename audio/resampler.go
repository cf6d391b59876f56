// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"

	"github.com/ik5/audplay/utils"
)

// MaxBlockFrames bounds the output of a single Resample call.
const MaxBlockFrames = 1 << 20

// Resampler converts interleaved blocks from srcRate to dstRate with cubic
// interpolation. It is streaming: the last source frames of every block are
// kept so consecutive blocks join without clicks.
// A one-pole low-pass filter runs on the input when downsampling.
type Resampler struct {
	channels int
	srcRate  int
	dstRate  int
	ratio    float64 // source frames per output frame

	started bool
	primed  bool

	// work holds the retained history followed by the newest input.
	// Source frame base is work[0].
	work []float32
	base int64
	// produced counts output frames since Start or Reset; output frame j
	// sits at source position j*ratio.
	produced int64

	out []float32

	useFilter   bool
	filterAlpha float32
	filterState []float32
}

func NewResampler(channels, srcRate, dstRate int) (*Resampler, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, srcRate, dstRate)
	}

	ratio := float64(srcRate) / float64(dstRate)
	r := &Resampler{
		channels:    channels,
		srcRate:     srcRate,
		dstRate:     dstRate,
		ratio:       ratio,
		useFilter:   ratio > 1.0,
		filterState: make([]float32, channels),
	}
	if r.useFilter {
		// Simple one-pole low-pass filter
		r.filterAlpha = 0.5
	}
	return r, nil
}

func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) SourceRate() int { return r.srcRate }
func (r *Resampler) SampleRate() int { return r.dstRate }

// Passthrough reports whether the rates match, in which case Resample
// returns its input.
func (r *Resampler) Passthrough() bool { return r.srcRate == r.dstRate }

func (r *Resampler) Start() {
	r.started = true
	r.Reset()
}

// Reset drops the history, as needed after a seek.
func (r *Resampler) Reset() {
	r.work = r.work[:0]
	r.base = 0
	r.produced = 0
	r.primed = false
	clear(r.filterState)
}

// Destroy releases the buffers. A destroyed resampler must be started again.
func (r *Resampler) Destroy() {
	r.started = false
	r.work = nil
	r.out = nil
	r.primed = false
}

// Resample converts one block. The returned slice is owned by the
// resampler and valid until the next call.
func (r *Resampler) Resample(in []float32) ([]float32, error) {
	if !r.started {
		return nil, ErrResamplerNotStarted
	}
	if len(in)%r.channels != 0 {
		return nil, ErrInvalidBlockSize
	}
	if r.Passthrough() {
		return in, nil
	}
	if len(in) == 0 {
		return r.out[:0], nil
	}

	if !r.primed {
		// The first frame doubles as the frame before it.
		if r.useFilter {
			copy(r.filterState, in[:r.channels])
		}
		r.work = append(r.work, in[:r.channels]...)
		r.base = -1
		r.primed = true
	}

	start := len(r.work)
	r.work = append(r.work, in...)
	if r.useFilter {
		r.lowPass(r.work[start:])
	}

	return r.produce()
}

// Drain emits the output still held in the history by repeating the last
// frame, and resets the resampler.
func (r *Resampler) Drain() ([]float32, error) {
	if !r.started {
		return nil, ErrResamplerNotStarted
	}
	if r.Passthrough() || !r.primed {
		r.Reset()
		return r.out[:0], nil
	}

	n := len(r.work)
	last := r.work[n-r.channels : n]
	for range 2 {
		r.work = append(r.work, last...)
	}
	out, err := r.produce()
	r.Reset()
	return out, err
}

func (r *Resampler) lowPass(frames []float32) {
	a := r.filterAlpha
	for i := 0; i < len(frames); i += r.channels {
		for c := range r.channels {
			// One-pole low-pass: y[n] = alpha * x[n] + (1-alpha) * y[n-1]
			y := a*frames[i+c] + (1-a)*r.filterState[c]
			frames[i+c] = y
			r.filterState[c] = y
		}
	}
}

// produce interpolates every output frame whose four neighbours are in
// work. While draining, the repeated tail frames serve as the neighbours of
// the last real frame.
func (r *Resampler) produce() ([]float32, error) {
	ch := r.channels
	frames := int64(len(r.work) / ch)
	// Output frames at source index i need frames i-1 through i+2.
	limit := r.base + frames - 3

	first := r.produced
	end := first
	for int64(float64(end)*r.ratio) <= limit {
		end++
	}
	count := end - first
	if count > MaxBlockFrames {
		return nil, fmt.Errorf("%w: %d frames", ErrOutOfMemory, count)
	}

	need := int(count) * ch
	if cap(r.out) < need {
		r.out = make([]float32, need)
	}
	out := r.out[:need]

	for j := range count {
		pos := float64(first+j) * r.ratio
		i := int64(pos)
		alpha := float32(pos - float64(i))
		// y0 is the frame before i.
		li := int(i-r.base-1) * ch
		o := int(j) * ch
		for c := range ch {
			out[o+c] = utils.CubicInterpolate(
				r.work[li+c], r.work[li+ch+c], r.work[li+2*ch+c], r.work[li+3*ch+c], alpha)
		}
	}
	r.produced = end

	// Keep from the frame before the next output position.
	next := int64(float64(end)*r.ratio) - 1
	if drop := min(frames, next-r.base); drop > 0 {
		n := copy(r.work, r.work[int(drop)*ch:])
		r.work = r.work[:n]
		r.base += drop
	}
	return out, nil
}
