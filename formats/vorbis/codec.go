// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
)

// oggReader is an interface for oggvorbis.Reader to allow testing
type oggReader interface {
	Channels() int
	Read([]float32) (int, error)
}

func openOggVorbis(r io.Reader) (oggReader, error) {
	return oggvorbis.NewReader(r)
}

// Codec decodes Vorbis with oggvorbis. Pages are fed one at a time through
// an in-memory buffer. The reader is only asked for samples that end on a
// page before the last one fed, so it never runs out of input mid-packet.
type Codec struct {
	open func(io.Reader) (oggReader, error)

	header []byte
	feed   *bytes.Buffer
	dec    oggReader

	channels int
	// granules of the last two pages where a packet ended.
	prev, last int64
	// delivered counts samples per channel handed out.
	delivered int64
}

func NewCodec() *Codec {
	return &Codec{open: openOggVorbis, feed: new(bytes.Buffer)}
}

func (*Codec) Name() metadata.CodecName { return metadata.CodecVorbis }

func (c *Codec) Start(meta *metadata.TrackMetadata) error {
	if len(meta.Header) == 0 {
		return fmt.Errorf("%w: missing header pages", ErrTruncatedHeaders)
	}
	c.header = meta.Header
	c.channels = meta.Channels
	c.reset()
	return nil
}

func (c *Codec) reset() {
	c.feed.Reset()
	c.feed.Write(c.header)
	c.dec = nil
	c.prev, c.last, c.delivered = 0, 0, 0
}

// Decode consumes at most one page.
func (c *Codec) Decode(src []byte, dst []float32) (int, []float32, error) {
	i := nextPage(src)
	if i < 0 {
		return max(0, len(src)-len(capturePattern)+1), dst, nil
	}
	p, ok := parsePage(src[i:])
	if !ok {
		if len(src)-i >= maxPageSize {
			// A capture pattern inside page data.
			return i + 1, dst, nil
		}
		return i, dst, nil
	}

	c.feed.Write(src[i : i+p.size])
	if p.granule >= 0 {
		c.prev, c.last = c.last, p.granule
	}

	if c.dec == nil {
		dec, err := c.open(c.feed)
		if err != nil {
			return i, dst, fmt.Errorf("vorbis: open reader: %w", err)
		}
		c.dec = dec
		if ch := dec.Channels(); ch > 0 {
			c.channels = ch
		}
	}

	dst, err := c.read(dst, c.prev-c.delivered)
	return i + p.size, dst, err
}

// read appends up to frames samples per channel.
func (c *Codec) read(dst []float32, frames int64) ([]float32, error) {
	want := int(frames) * c.channels
	for want > 0 {
		n := len(dst)
		dst = grow(dst, want)
		got, err := c.dec.Read(dst[n : n+want])
		dst = dst[:n+got]
		want -= got
		c.delivered += int64(got / c.channels)
		if err != nil {
			return dst, err
		}
		if got == 0 {
			break
		}
	}
	return dst, nil
}

// Flush drains the reader once the last page has been fed.
func (c *Codec) Flush(dst []float32) ([]float32, error) {
	if c.dec == nil {
		return dst, nil
	}
	for {
		before := len(dst)
		var err error
		dst, err = c.read(dst, 4096)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return dst, nil
		}
		if err != nil {
			return dst, fmt.Errorf("vorbis: flush: %w", err)
		}
		if len(dst) == before {
			return dst, nil
		}
	}
}

// Seek restarts the reader from the header pages. Vorbis seeking is not
// resolved by the seek package, so this only happens on a restart from the
// first audio page.
func (c *Codec) Seek(seek.Result) error {
	c.reset()
	return nil
}

func (c *Codec) Close() error {
	c.dec = nil
	c.feed.Reset()
	return nil
}

func grow(s []float32, n int) []float32 {
	if cap(s)-len(s) >= n {
		return s[:len(s)+n]
	}
	out := make([]float32, len(s)+n, 2*len(s)+n)
	copy(out, s)
	return out
}
