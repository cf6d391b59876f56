// SPDX-License-Identifier: EPL-2.0

package audio

import "math"

// biquad is a direct form I second order section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

type biquadState struct {
	x1, x2, y1, y2 float64
}

func (f *biquad) process(s *biquadState, x float64) float64 {
	y := f.b0*x + f.b1*s.x1 + f.b2*s.x2 - f.a1*s.y1 - f.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}

// kWeighting returns the ITU-R BS.1770 pre-filter (high shelf) and RLB
// high-pass for sampleRate.
func kWeighting(sampleRate int) (shelf, highPass biquad) {
	rate := float64(sampleRate)

	const (
		shelfF0   = 1681.974450955533
		shelfGain = 3.999843853973347
		shelfQ    = 0.7071752369554196
	)
	k := math.Tan(math.Pi * shelfF0 / rate)
	vh := math.Pow(10, shelfGain/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/shelfQ + k*k
	shelf = biquad{
		b0: (vh + vb*k/shelfQ + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/shelfQ + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/shelfQ + k*k) / a0,
	}

	const (
		highPassF0 = 38.13547087602444
		highPassQ  = 0.5003270373238773
	)
	k = math.Tan(math.Pi * highPassF0 / rate)
	a0 = 1 + k/highPassQ + k*k
	highPass = biquad{
		b0: 1,
		b1: -2,
		b2: 1,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/highPassQ + k*k) / a0,
	}
	return shelf, highPass
}
