// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ik5/audplay/internal/mpeg"
	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
)

// mp3Reader is an interface for gomp3.Decoder to allow testing
type mp3Reader interface {
	Read([]byte) (int, error)
}

func openGoMP3(r io.Reader) (mp3Reader, error) {
	return gomp3.NewDecoder(r)
}

// Codec decodes layer III frames with go-mp3. Frames are handed to go-mp3
// one at a time through an in-memory feed, so the decoder never reads past
// the frame it is decoding and its bit reservoir survives between calls.
type Codec struct {
	open func(io.Reader) (mp3Reader, error)

	feed *bytes.Buffer
	dec  mp3Reader
	pcm  []byte

	channels int
	spf      int

	// frame is the index of the next frame in the stream; limit is the
	// number of samples the stream holds before encoder padding.
	frame int
	limit int64
}

func NewCodec() *Codec {
	return &Codec{open: openGoMP3, feed: new(bytes.Buffer)}
}

func (*Codec) Name() metadata.CodecName { return metadata.CodecMP3 }

func (c *Codec) Start(meta *metadata.TrackMetadata) error {
	c.channels = meta.Channels
	if c.channels < 1 || c.channels > 2 {
		c.channels = 2
	}
	c.spf = meta.SamplesPerFrame
	if c.spf == 0 {
		c.spf = 1152
	}

	c.limit = -1
	if meta.PaddingStartFrame >= 0 && meta.Frames > 0 {
		c.limit = int64(meta.Frames)*int64(c.spf) - int64(meta.EncoderPadding)
	}

	// go-mp3 always produces 16-bit stereo.
	if c.pcm == nil {
		c.pcm = make([]byte, 1152*4)
	}
	c.reset(0)
	return nil
}

func (c *Codec) reset(frame int) {
	c.feed.Reset()
	c.dec = nil
	c.frame = frame
}

// Decode consumes at most one frame. Bytes ahead of the next frame header
// are skipped.
func (c *Codec) Decode(src []byte, dst []float32) (int, []float32, error) {
	i := 0
	var h mpeg.Header
	for ; i+4 <= len(src); i++ {
		var ok bool
		if h, ok = mpeg.ParseAt(src[i:]); ok {
			break
		}
	}
	if i+4 > len(src) {
		// Keep a possible partial header for the next call.
		return max(0, len(src)-3), dst, nil
	}
	if i+h.FrameSize > len(src) {
		return i, dst, nil
	}

	c.feed.Write(src[i : i+h.FrameSize])
	if c.dec == nil {
		dec, err := c.open(c.feed)
		if err != nil {
			return i, dst, fmt.Errorf("mp3: open decoder: %w", err)
		}
		c.dec = dec
	}

	pcm := c.pcm[:h.SamplesPerFrame*4]
	if _, err := io.ReadFull(c.dec, pcm); err != nil {
		return i, dst, fmt.Errorf("%w: %w", ErrUnexpectedFrame, err)
	}

	dst = c.appendFrame(dst, pcm, h.SamplesPerFrame)
	c.frame++
	return i + h.FrameSize, dst, nil
}

func (c *Codec) appendFrame(dst []float32, pcm []byte, spf int) []float32 {
	n := spf
	if c.limit >= 0 {
		start := int64(c.frame) * int64(spf)
		n = int(max(0, min(int64(spf), c.limit-start)))
	}

	for f := range n {
		l := int16(binary.LittleEndian.Uint16(pcm[4*f:]))
		if c.channels == 1 {
			dst = append(dst, float32(l)/32768.0)
			continue
		}
		r := int16(binary.LittleEndian.Uint16(pcm[4*f+2:]))
		dst = append(dst, float32(l)/32768.0, float32(r)/32768.0)
	}
	return dst
}

// Flush has nothing to emit: every frame is decoded as soon as it is fed.
func (*Codec) Flush(dst []float32) ([]float32, error) { return dst, nil }

// Seek drops the decoder and its bit reservoir. The pre-roll frames the
// seeker asks for rebuild it.
func (c *Codec) Seek(res seek.Result) error {
	c.reset(res.Frame)
	return nil
}

func (c *Codec) Close() error {
	c.reset(0)
	return nil
}
