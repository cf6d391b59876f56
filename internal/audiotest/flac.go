// SPDX-License-Identifier: EPL-2.0

package audiotest

import "encoding/binary"

// FLACOptions describes a synthetic FLAC stream of 16-bit constant
// subframes. Frame f holds the value (f+1)*100 on channel 0 and the negated
// value on every other channel.
type FLACOptions struct {
	SampleRate int // 44100 or 48000; default 44100
	Channels   int // 1 or 2; default 2
	BlockSize  int // 4096 or 1152; default 4096
	Frames     int

	// Padding adds a PADDING metadata block of that many bytes.
	Padding int
}

// FLACFile is an encoded stream and the layout the builder produced.
type FLACFile struct {
	Data         []byte
	DataStart    int64
	FrameOffsets []int64
	FrameSize    int // largest frame
}

// FLACValue is the sample value of frame f on channel c.
func FLACValue(f, c int) int16 {
	v := int16((f + 1) * 100)
	if c > 0 {
		return -v
	}
	return v
}

// FLAC builds the stream described by opts.
func FLAC(opts FLACOptions) FLACFile {
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if opts.Channels == 0 {
		opts.Channels = 2
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = 4096
	}

	minFrame := len(flacFrame(opts, 0))
	frameSize := len(flacFrame(opts, max(0, opts.Frames-1)))

	out := []byte("fLaC")
	last := byte(0x80)
	if opts.Padding > 0 {
		last = 0
	}
	out = append(out, last, 0, 0, 34)
	out = binary.BigEndian.AppendUint16(out, uint16(opts.BlockSize))
	out = binary.BigEndian.AppendUint16(out, uint16(opts.BlockSize))
	out = append(out, 0, byte(minFrame>>8), byte(minFrame))
	out = append(out, 0, byte(frameSize>>8), byte(frameSize))
	// 20 bits rate, 3 bits channels-1, 5 bits bps-1, 36 bits total samples.
	total := uint64(opts.Frames * opts.BlockSize)
	packed := uint64(opts.SampleRate)<<44 | uint64(opts.Channels-1)<<41 | uint64(15)<<36 | total
	out = binary.BigEndian.AppendUint64(out, packed)
	out = append(out, make([]byte, 16)...)

	if opts.Padding > 0 {
		out = append(out, 0x80|1, byte(opts.Padding>>16), byte(opts.Padding>>8), byte(opts.Padding))
		out = append(out, make([]byte, opts.Padding)...)
	}

	f := FLACFile{DataStart: int64(len(out)), FrameSize: frameSize}
	for i := range opts.Frames {
		f.FrameOffsets = append(f.FrameOffsets, int64(len(out)))
		out = append(out, flacFrame(opts, i)...)
	}
	f.Data = out
	return f
}

func flacFrame(opts FLACOptions, n int) []byte {
	b := []byte{0xff, 0xf8}

	var blockCode, rateCode byte
	switch opts.BlockSize {
	case 1152:
		blockCode = 0b0011
	default:
		blockCode = 0b1100
	}
	switch opts.SampleRate {
	case 48000:
		rateCode = 0b1010
	default:
		rateCode = 0b1001
	}
	b = append(b, blockCode<<4|rateCode)
	// Independent channels, 16 bits per sample.
	b = append(b, byte(opts.Channels-1)<<4|0b100<<1)

	// UTF-8 style frame number.
	if n < 0x80 {
		b = append(b, byte(n))
	} else {
		b = append(b, 0xc0|byte(n>>6), 0x80|byte(n&0x3f))
	}
	b = append(b, crc8(b))

	for c := range opts.Channels {
		// Constant subframe.
		b = append(b, 0)
		b = binary.BigEndian.AppendUint16(b, uint16(FLACValue(n, c)))
	}
	return binary.BigEndian.AppendUint16(b, crc16(b))
}

func crc8(b []byte) byte {
	var crc byte
	for _, v := range b {
		crc ^= v
		for range 8 {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func crc16(b []byte) uint16 {
	var crc uint16
	for _, v := range b {
		crc ^= uint16(v) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
