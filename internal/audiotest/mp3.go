// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"encoding/binary"

	"github.com/ik5/audplay/internal/mpeg"
)

// MP3Options describes a synthetic layer III stream. Frames carry valid
// headers and all-zero side information and main data, which decodes to
// silence.
type MP3Options struct {
	SampleRate int   // default 44100
	BitRates   []int // bits per second, cycled per frame; default 128000
	Channels   int   // default 2
	Frames     int

	ID3  int // size of an ID3v2 tag body to prepend
	Xing *XingOptions
	VBRI *VBRIOptions
}

// XingOptions adds a Xing (or Info) frame in front of the audio frames.
type XingOptions struct {
	Info    bool
	Frames  int // 0 omits the field
	Bytes   int // 0 omits the field
	TOC     []byte
	Quality bool

	LAME           bool
	EncoderDelay   int
	EncoderPadding int
}

// VBRIOptions adds a VBRI frame in front of the audio frames.
type VBRIOptions struct {
	FramesPerEntry int
	Scale          int
}

// MP3File is an encoded stream plus the layout the builder produced.
type MP3File struct {
	Data         []byte
	DataStart    int64   // first audio frame
	FrameOffsets []int64 // every audio frame
	FrameSizes   []int
}

// MP3 builds the stream described by opts.
func MP3(opts MP3Options) MP3File {
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if len(opts.BitRates) == 0 {
		opts.BitRates = []int{128000}
	}
	if opts.Channels == 0 {
		opts.Channels = 2
	}

	var out []byte
	if opts.ID3 > 0 {
		out = append(out, 'I', 'D', '3', 4, 0, 0)
		s := opts.ID3
		out = append(out, byte(s>>21&0x7f), byte(s>>14&0x7f), byte(s>>7&0x7f), byte(s&0x7f))
		out = append(out, make([]byte, s)...)
	}

	sizes := make([]int, opts.Frames)
	for i := range sizes {
		h := header(opts.SampleRate, opts.BitRates[i%len(opts.BitRates)], opts.Channels)
		sizes[i] = h.FrameSize
	}

	switch {
	case opts.Xing != nil:
		out = append(out, xingFrame(opts, sizes)...)
	case opts.VBRI != nil:
		out = append(out, vbriFrame(opts, sizes)...)
	}

	f := MP3File{DataStart: int64(len(out)), FrameSizes: sizes}
	for i := range opts.Frames {
		f.FrameOffsets = append(f.FrameOffsets, int64(len(out)))
		out = append(out, frame(opts.SampleRate, opts.BitRates[i%len(opts.BitRates)], opts.Channels)...)
	}
	f.Data = out
	return f
}

func header(sampleRate, bitRate, channels int) mpeg.Header {
	word, ok := mpeg.Encode(sampleRate, bitRate, channels, false)
	if !ok {
		panic("audiotest: unsupported mp3 parameters")
	}
	h, _ := mpeg.Parse(word)
	return h
}

func frame(sampleRate, bitRate, channels int) []byte {
	word, _ := mpeg.Encode(sampleRate, bitRate, channels, false)
	h := header(sampleRate, bitRate, channels)
	b := make([]byte, h.FrameSize)
	binary.BigEndian.PutUint32(b, word)
	return b
}

func xingFrame(opts MP3Options, sizes []int) []byte {
	b := frame(opts.SampleRate, opts.BitRates[0], opts.Channels)
	h := header(opts.SampleRate, opts.BitRates[0], opts.Channels)
	x := opts.Xing

	p := 4 + h.SideInfoSize()
	if x.Info {
		copy(b[p:], "Info")
	} else {
		copy(b[p:], "Xing")
	}
	p += 4

	var flags uint32
	if x.Frames > 0 {
		flags |= 1
	}
	if x.Bytes > 0 {
		flags |= 2
	}
	if len(x.TOC) == 100 {
		flags |= 4
	}
	if x.Quality {
		flags |= 8
	}
	binary.BigEndian.PutUint32(b[p:], flags)
	p += 4
	if x.Frames > 0 {
		binary.BigEndian.PutUint32(b[p:], uint32(x.Frames))
		p += 4
	}
	if x.Bytes > 0 {
		binary.BigEndian.PutUint32(b[p:], uint32(x.Bytes))
		p += 4
	}
	if len(x.TOC) == 100 {
		copy(b[p:], x.TOC)
		p += 100
	}
	if x.Quality {
		p += 4
	}
	if x.LAME {
		copy(b[p:], "LAME3.99r")
		v := uint32(x.EncoderDelay&0xfff)<<12 | uint32(x.EncoderPadding&0xfff)
		q := p + 21
		b[q], b[q+1], b[q+2] = byte(v>>16), byte(v>>8), byte(v)
	}
	return b
}

func vbriFrame(opts MP3Options, sizes []int) []byte {
	v := opts.VBRI
	fpe := max(1, v.FramesPerEntry)
	scale := max(1, v.Scale)
	entries := (len(sizes) + fpe - 1) / fpe

	b := frame(opts.SampleRate, opts.BitRates[0], opts.Channels)
	if 36+26+entries*2 > len(b) {
		panic("audiotest: VBRI table does not fit in one frame")
	}

	p := 36
	copy(b[p:], "VBRI")
	binary.BigEndian.PutUint16(b[p+4:], 1)
	total := 0
	for _, s := range sizes {
		total += s
	}
	binary.BigEndian.PutUint32(b[p+10:], uint32(total))
	binary.BigEndian.PutUint32(b[p+14:], uint32(len(sizes)))
	binary.BigEndian.PutUint16(b[p+18:], uint16(entries))
	binary.BigEndian.PutUint16(b[p+20:], uint16(scale))
	binary.BigEndian.PutUint16(b[p+22:], 2)
	binary.BigEndian.PutUint16(b[p+24:], uint16(fpe))
	for e := range entries {
		n := 0
		for i := e * fpe; i < min(len(sizes), (e+1)*fpe); i++ {
			n += sizes[i]
		}
		binary.BigEndian.PutUint16(b[p+26+e*2:], uint16(n/scale))
	}
	return b
}
