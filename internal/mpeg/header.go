// SPDX-License-Identifier: EPL-2.0

// Package mpeg parses MPEG audio layer III frame headers.
package mpeg

import "encoding/binary"

// DecoderDelay is the number of samples every layer III decoder adds in
// front of the first frame.
const DecoderDelay = 529

var frequencies = [3]int{44100, 48000, 32000}

// kbps, MPEG-1 then MPEG-2/2.5 (lsf)
var bitrates = [30]int{
	0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320,
	0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160,
}

// Header is a decoded frame header.
type Header struct {
	LSF             bool
	MPEG25          bool
	SampleRate      int
	BitRate         int // bits per second
	Padding         int
	Channels        int
	SamplesPerFrame int
	FrameSize       int // bytes including the header
}

// ProbablyHeader reports whether h looks like a layer III frame header:
// sync bits, layer III, a bitrate index other than "bad" and a valid
// sample rate index.
func ProbablyHeader(h uint32) bool {
	return h&0xffe00000 == 0xffe00000 &&
		h&(3<<17) == 1<<17 &&
		h&(0xF<<12) != 0xF<<12 &&
		h&(3<<10) != 3<<10
}

// Parse decodes h. ok is false when h is not a usable header, including
// free-format streams.
func Parse(h uint32) (Header, bool) {
	if !ProbablyHeader(h) {
		return Header{}, false
	}

	lsf, mpeg25 := 1, 1
	if h&(1<<20) != 0 {
		mpeg25 = 0
		if h&(1<<19) != 0 {
			lsf = 0
		}
	}

	sampleRate := frequencies[(h>>10)&3] >> (lsf + mpeg25)
	bitRate := bitrates[lsf*15+int((h>>12)&0xf)] * 1000
	if sampleRate == 0 || bitRate == 0 {
		return Header{}, false
	}

	hdr := Header{
		LSF:             lsf == 1,
		MPEG25:          mpeg25 == 1,
		SampleRate:      sampleRate,
		BitRate:         bitRate,
		Padding:         int((h >> 9) & 1),
		Channels:        2,
		SamplesPerFrame: 1152,
	}
	if (h>>6)&3 == 3 {
		hdr.Channels = 1
	}
	if hdr.LSF {
		hdr.SamplesPerFrame = 576
	}
	hdr.FrameSize = FrameSize(bitRate, sampleRate, hdr.LSF) + hdr.Padding

	return hdr, true
}

// ParseAt decodes the header stored big-endian at b[0:4].
func ParseAt(b []byte) (Header, bool) {
	if len(b) < 4 {
		return Header{}, false
	}
	return Parse(binary.BigEndian.Uint32(b))
}

// FrameSize returns the unpadded size in bytes of a frame.
func FrameSize(bitRate, sampleRate int, lsf bool) int {
	return bitRate / 1000 * 144000 / (sampleRate << b2i(lsf))
}

// AverageFrameSize is FrameSize without truncation, used for CBR offsets.
func AverageFrameSize(bitRate, sampleRate int, lsf bool) float64 {
	return float64(bitRate/1000) * 144000 / float64(sampleRate<<b2i(lsf))
}

// MaxBytesPerSample is the byte cost of one sample at 320 kbps.
func MaxBytesPerSample(sampleRate int, lsf bool) float64 {
	spf := 1152
	if lsf {
		spf = 576
	}
	return float64(FrameSize(320000, sampleRate, lsf)+1) / float64(spf)
}

// SideInfoSize is the length of the side information following the header.
func (h Header) SideInfoSize() int {
	switch {
	case !h.LSF && h.Channels == 1:
		return 17
	case !h.LSF:
		return 32
	case h.Channels == 1:
		return 9
	default:
		return 17
	}
}

// Encode builds a header word for the given parameters. It is the inverse of
// Parse and only covers MPEG-1 and MPEG-2 (not 2.5).
func Encode(sampleRate, bitRate, channels int, padding bool) (uint32, bool) {
	lsf := 0
	srIdx := -1
	for i, f := range frequencies {
		if f == sampleRate {
			srIdx = i
		} else if f>>1 == sampleRate {
			srIdx, lsf = i, 1
		}
	}
	if srIdx < 0 {
		return 0, false
	}
	brIdx := -1
	for i := 1; i < 15; i++ {
		if bitrates[lsf*15+i]*1000 == bitRate {
			brIdx = i
			break
		}
	}
	if brIdx < 0 {
		return 0, false
	}

	h := uint32(0xffe00000) | 1<<20 | 1<<17 | 1<<16
	if lsf == 0 {
		h |= 1 << 19
	}
	h |= uint32(brIdx) << 12
	h |= uint32(srIdx) << 10
	if padding {
		h |= 1 << 9
	}
	if channels == 1 {
		h |= 3 << 6
	}
	return h, true
}

func b2i(b bool) uint {
	if b {
		return 1
	}
	return 0
}
