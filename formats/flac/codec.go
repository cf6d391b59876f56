// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
	"github.com/ik5/audplay/utils"
)

// flacStream is an interface for flac.Stream to allow testing
type flacStream interface {
	ParseNext() (*frame.Frame, error)
}

func openFLAC(r io.Reader) (flacStream, error) {
	return flac.New(r)
}

// Codec decodes FLAC frames with mewkiz/flac. Input is buffered in memory
// and a frame is parsed only while at least MaxFrameSize bytes are waiting,
// so the parser never runs dry inside a frame.
type Codec struct {
	open func(io.Reader) (flacStream, error)

	header []byte
	feed   *bytes.Buffer
	stream flacStream

	channels int
	bound    int
}

func NewCodec() *Codec {
	return &Codec{open: openFLAC, feed: new(bytes.Buffer)}
}

func (*Codec) Name() metadata.CodecName { return metadata.CodecFLAC }

func (c *Codec) Start(meta *metadata.TrackMetadata) error {
	if len(meta.Header) == 0 {
		return fmt.Errorf("%w: missing stream header", ErrTruncatedHeader)
	}
	c.header = meta.Header
	c.channels = meta.Channels
	c.bound = meta.MaxFrameSize
	if c.bound <= 0 {
		c.bound = meta.SamplesPerFrame*meta.Channels*(meta.BitDepth+1)/8 + frameOverhead
	}
	c.reset()
	return nil
}

func (c *Codec) reset() {
	c.feed.Reset()
	c.feed.Write(c.header)
	c.stream = nil
}

// Decode buffers up to one frame bound of src and parses what is safe to
// parse.
func (c *Codec) Decode(src []byte, dst []float32) (int, []float32, error) {
	n := min(len(src), max(c.bound, 4096))
	c.feed.Write(src[:n])

	if c.stream == nil {
		s, err := c.open(c.feed)
		if err != nil {
			return n, dst, fmt.Errorf("flac: open stream: %w", err)
		}
		c.stream = s
	}

	for c.feed.Len() >= c.bound {
		f, err := c.stream.ParseNext()
		if err != nil {
			return n, dst, fmt.Errorf("flac: parse frame: %w", err)
		}
		if dst, err = c.appendFrame(dst, f); err != nil {
			return n, dst, err
		}
	}
	return n, dst, nil
}

func (c *Codec) appendFrame(dst []float32, f *frame.Frame) ([]float32, error) {
	if len(f.Subframes) != c.channels {
		return dst, fmt.Errorf("%w: %d, want %d", ErrChannelChange, len(f.Subframes), c.channels)
	}
	bps := int(f.BitsPerSample)
	for i := range f.Subframes[0].Samples {
		for _, sub := range f.Subframes {
			dst = append(dst, utils.PCMToFloat(int(sub.Samples[i]), bps))
		}
	}
	return dst, nil
}

// Flush parses the frames left once no more input will arrive.
func (c *Codec) Flush(dst []float32) ([]float32, error) {
	if c.stream == nil {
		return dst, nil
	}
	for {
		f, err := c.stream.ParseNext()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return dst, nil
		}
		if err != nil {
			return dst, fmt.Errorf("flac: flush: %w", err)
		}
		if dst, err = c.appendFrame(dst, f); err != nil {
			return dst, err
		}
	}
}

// Seek restarts from the stream header. Seeking within FLAC is not
// resolved by the seek package, so this only happens on a restart from the
// first frame.
func (c *Codec) Seek(seek.Result) error {
	c.reset()
	return nil
}

func (c *Codec) Close() error {
	c.stream = nil
	c.feed.Reset()
	return nil
}
