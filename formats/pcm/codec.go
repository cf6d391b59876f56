// SPDX-License-Identifier: EPL-2.0

// Package pcm decodes uncompressed integer and IEEE float samples. WAV and
// AIFF demuxers describe the layout in TrackMetadata and share this codec.
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
	"github.com/ik5/audplay/utils"
)

// Codec converts interleaved PCM frames to float32.
type Codec struct {
	bitDepth       int
	bytesPerSample int
	blockAlign     int
	channels       int
	order          binary.ByteOrder
	bigEndian      bool
	float          bool
	unsigned       bool
}

func New() *Codec { return &Codec{} }

func (*Codec) Name() metadata.CodecName { return metadata.CodecPCM }

func (c *Codec) Start(meta *metadata.TrackMetadata) error {
	if meta.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrInvalidLayout, meta.Channels)
	}

	switch {
	case meta.Float && (meta.BitDepth == 32 || meta.BitDepth == 64):
	case !meta.Float && (meta.BitDepth == 8 || meta.BitDepth == 16 || meta.BitDepth == 24 || meta.BitDepth == 32):
	default:
		return fmt.Errorf("%w: %d (float %v)", ErrUnsupportedBitDepth, meta.BitDepth, meta.Float)
	}

	c.bitDepth = meta.BitDepth
	c.bytesPerSample = meta.BitDepth / 8
	c.channels = meta.Channels
	c.blockAlign = meta.BlockAlign
	if c.blockAlign == 0 {
		c.blockAlign = c.bytesPerSample * c.channels
	}
	if c.blockAlign < c.bytesPerSample*c.channels {
		return fmt.Errorf("%w: block align %d", ErrInvalidLayout, c.blockAlign)
	}

	c.order = binary.LittleEndian
	c.bigEndian = meta.BigEndian
	if c.bigEndian {
		c.order = binary.BigEndian
	}
	c.float = meta.Float
	c.unsigned = meta.Unsigned
	return nil
}

// Decode converts every whole frame in src.
func (c *Codec) Decode(src []byte, dst []float32) (int, []float32, error) {
	if c.blockAlign == 0 {
		return 0, dst, ErrInvalidLayout
	}

	frames := len(src) / c.blockAlign
	for f := range frames {
		frame := src[f*c.blockAlign:]
		for ch := range c.channels {
			dst = append(dst, c.sample(frame[ch*c.bytesPerSample:]))
		}
	}
	return frames * c.blockAlign, dst, nil
}

func (c *Codec) sample(b []byte) float32 {
	if c.float {
		if c.bitDepth == 64 {
			return float32(math.Float64frombits(c.order.Uint64(b)))
		}
		return math.Float32frombits(c.order.Uint32(b))
	}

	var v int
	switch c.bitDepth {
	case 8:
		if c.unsigned {
			v = int(b[0]) - 128
		} else {
			v = int(int8(b[0]))
		}
	case 16:
		v = int(int16(c.order.Uint16(b)))
	case 24:
		var u uint32
		if c.bigEndian {
			u = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		} else {
			u = uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
		}
		v = int(int32(u<<8) >> 8)
	case 32:
		v = int(int32(c.order.Uint32(b)))
	}
	return utils.PCMToFloat(v, c.bitDepth)
}

func (*Codec) Flush(dst []float32) ([]float32, error) { return dst, nil }

// Seek is a no-op: PCM frames are independent.
func (*Codec) Seek(seek.Result) error { return nil }

func (*Codec) Close() error { return nil }
