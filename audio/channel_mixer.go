// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMixer converts interleaved blocks to a fixed output channel count.
type ChannelMixer struct {
	dst int
	tmp []float32
}

func NewChannelMixer(dstChannels int) (*ChannelMixer, error) {
	if dstChannels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, dstChannels)
	}
	return &ChannelMixer{dst: dstChannels}, nil
}

func (m *ChannelMixer) Channels() int { return m.dst }

// Mix returns in converted from srcChannels. Equal counts return in itself;
// otherwise the result is owned by the mixer until the next call.
func (m *ChannelMixer) Mix(in []float32, srcChannels int) ([]float32, error) {
	if srcChannels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, srcChannels)
	}
	if len(in)%srcChannels != 0 {
		return nil, ErrInvalidBlockSize
	}
	if srcChannels == m.dst {
		return in, nil
	}

	frames := len(in) / srcChannels
	need := frames * m.dst
	if cap(m.tmp) < need {
		m.tmp = make([]float32, need)
	}
	out := m.tmp[:need]

	switch {
	case m.dst == 1:
		downmix(out, in, srcChannels, frames)
	case srcChannels == 1:
		for f, v := range in {
			o := out[f*m.dst : (f+1)*m.dst]
			for c := range o {
				o[c] = v
			}
		}
	case srcChannels == 6 && m.dst == 2:
		surroundToStereo(out, in, frames)
	default:
		remap(out, in, srcChannels, m.dst, frames)
	}
	return out, nil
}

// downmix averages every frame of in into one sample of dst.
func downmix(dst, in []float32, channels, frames int) {
	scale := 1 / float32(channels)
	for f := range frames {
		var sum float32
		for _, v := range in[f*channels : (f+1)*channels] {
			sum += v
		}
		dst[f] = sum * scale
	}
}

// surroundLevel is the -3 dB contribution of the centre and surround
// channels to each side of a stereo downmix.
const surroundLevel = 0.70710678

// surroundToStereo folds 5.1 in L R C LFE Ls Rs order down to stereo. The
// LFE channel is dropped and the result is scaled back to full scale.
func surroundToStereo(dst, in []float32, frames int) {
	const scale = 1 / (1 + 2*surroundLevel)
	for f := range frames {
		s := in[f*6 : f*6+6]
		centre := surroundLevel * s[2]
		dst[f*2] = (s[0] + centre + surroundLevel*s[4]) * scale
		dst[f*2+1] = (s[1] + centre + surroundLevel*s[5]) * scale
	}
}

// remap keeps the first min(src, dst) channels of every frame and
// silences any channel the source lacks.
func remap(dst, in []float32, src, channels, frames int) {
	n := min(src, channels)
	for f := range frames {
		o := dst[f*channels : (f+1)*channels]
		copy(o, in[f*src:f*src+n])
		clear(o[n:])
	}
}
