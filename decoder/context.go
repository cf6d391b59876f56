// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
)

// DefaultBufferDuration is the length of one flushed block.
const DefaultBufferDuration = 400 * time.Millisecond

var nextID atomic.Uint64

// FlushFunc receives one block of interleaved samples. block is only valid
// for the duration of the call.
type FlushFunc func(block []float32, frames int) error

// Option configures a Context.
type Option func(*Context)

func WithBufferDuration(d time.Duration) Option {
	return func(c *Context) {
		if d > 0 {
			c.bufferDuration = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// Context drives a Codec through a track: establish the output shape,
// Start, DecodeUntilFlush repeatedly, then End. It is not safe for
// concurrent use.
type Context struct {
	id    uint64
	codec Codec
	log   *log.Logger

	bufferDuration time.Duration

	channels   int
	sampleRate int
	started    bool
	destroyed  bool

	targetFrames int
	skip         int
	position     int64

	pending []float32
	scratch []float32
}

// NewContext wraps codec. The context owns the codec from here on.
func NewContext(codec Codec, opts ...Option) *Context {
	c := &Context{
		id:             nextID.Add(1),
		codec:          codec,
		log:            log.Default(),
		bufferDuration: DefaultBufferDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID is unique within the process.
func (c *Context) ID() uint64 { return c.id }

func (c *Context) Channels() int   { return c.channels }
func (c *Context) SampleRate() int { return c.sampleRate }
func (c *Context) Started() bool   { return c.started }

// TargetFrames is the block size DecodeUntilFlush flushes, valid after
// Start.
func (c *Context) TargetFrames() int { return c.targetFrames }

// Position is the frame index of the next frame to be flushed.
func (c *Context) Position() int64 { return c.position }

func (c *Context) EstablishChannelCount(n int) error {
	if err := c.alive("EstablishChannelCount"); err != nil {
		return err
	}
	if n <= 0 {
		return &ContractError{Op: "EstablishChannelCount", Reason: fmt.Sprintf("invalid channel count %d", n)}
	}
	if c.channels != 0 {
		return &ContractError{Op: "EstablishChannelCount", Reason: "channel count already established"}
	}
	c.channels = n
	return nil
}

func (c *Context) EstablishSampleRate(n int) error {
	if err := c.alive("EstablishSampleRate"); err != nil {
		return err
	}
	if n <= 0 {
		return &ContractError{Op: "EstablishSampleRate", Reason: fmt.Sprintf("invalid sample rate %d", n)}
	}
	if c.sampleRate != 0 {
		return &ContractError{Op: "EstablishSampleRate", Reason: "sample rate already established"}
	}
	c.sampleRate = n
	return nil
}

// Start begins a track. Channel count and sample rate must be established
// first.
func (c *Context) Start(meta *metadata.TrackMetadata) error {
	if err := c.alive("Start"); err != nil {
		return err
	}
	if c.started {
		return &ContractError{Op: "Start", Reason: "previous decoding in session, call End() first"}
	}
	if c.channels == 0 || c.sampleRate == 0 {
		return &ContractError{Op: "Start", Reason: "channel count and sample rate must be established"}
	}

	if err := c.codec.Start(meta); err != nil {
		return c.fail("start", err)
	}

	c.targetFrames = max(1, int(math.Ceil(c.bufferDuration.Seconds()*float64(c.sampleRate))))
	c.skip = max(0, meta.EncoderDelay)
	c.position = 0
	c.pending = c.pending[:0]
	c.started = true

	c.log.Debug("decoder started",
		"id", c.id, "codec", c.codec.Name(),
		"channels", c.channels, "sample_rate", c.sampleRate,
		"block_frames", c.targetFrames, "skip", c.skip)
	return nil
}

// DecodeUntilFlush feeds src to the codec until at least one block has been
// flushed, src is exhausted, or the codec needs more input. It returns the
// number of bytes of src consumed.
func (c *Context) DecodeUntilFlush(src []byte, flush FlushFunc) (int, error) {
	if err := c.alive("DecodeUntilFlush"); err != nil {
		return 0, err
	}
	if !c.started {
		return 0, &ContractError{Op: "DecodeUntilFlush", Reason: "not started"}
	}

	consumed := 0
	flushed := false
	for !flushed && consumed < len(src) {
		n, out, err := c.codec.Decode(src[consumed:], c.scratch[:0])
		if err != nil {
			return consumed, c.fail("decode", err)
		}
		c.scratch = out[:0]
		consumed += n

		c.accumulate(out)
		for len(c.pending) >= c.targetFrames*c.channels {
			if err := c.flushBlock(flush, c.targetFrames); err != nil {
				return consumed, fmt.Errorf("DecodeUntilFlush: %w", err)
			}
			flushed = true
		}

		if n == 0 {
			break
		}
	}
	return consumed, nil
}

// ApplySeek repositions a started context after the caller moved the input
// to res.Offset.
func (c *Context) ApplySeek(res seek.Result) error {
	if err := c.alive("ApplySeek"); err != nil {
		return err
	}
	if !c.started {
		return &ContractError{Op: "ApplySeek", Reason: "not started"}
	}
	if err := c.codec.Seek(res); err != nil {
		return c.fail("seek", err)
	}

	c.pending = c.pending[:0]
	c.skip = max(0, res.SamplesToSkip)
	c.position = int64(math.Round(res.Time * float64(c.sampleRate)))
	return nil
}

// End drains the codec and flushes the final partial block. It reports
// false when there was nothing to end.
func (c *Context) End(flush FlushFunc) (bool, error) {
	if err := c.alive("End"); err != nil {
		return false, err
	}
	if !c.started {
		return false, nil
	}

	out, err := c.codec.Flush(c.scratch[:0])
	if err != nil {
		return false, c.fail("flush", err)
	}
	c.scratch = out[:0]
	c.accumulate(out)

	var flushErr error
	for len(c.pending) >= c.channels && flushErr == nil {
		frames := min(c.targetFrames, len(c.pending)/c.channels)
		flushErr = c.flushBlock(flush, frames)
	}

	c.log.Debug("decoder ended", "id", c.id, "codec", c.codec.Name(), "position", c.position)
	c.reset()
	if flushErr != nil {
		return true, fmt.Errorf("End: %w", flushErr)
	}
	return true, nil
}

// Destroy closes the codec. Every later call fails with ErrDestroyed.
func (c *Context) Destroy() error {
	if c.destroyed {
		return nil
	}
	c.reset()
	c.destroyed = true
	if err := c.codec.Close(); err != nil {
		return fmt.Errorf("Destroy: %w", err)
	}
	return nil
}

func (c *Context) alive(op string) error {
	if c.destroyed {
		return fmt.Errorf("%s: %w", op, ErrDestroyed)
	}
	return nil
}

func (c *Context) accumulate(out []float32) {
	if c.skip > 0 {
		drop := min(len(out), c.skip*c.channels)
		out = out[drop:]
		c.skip -= drop / c.channels
	}
	c.pending = append(c.pending, out...)
}

func (c *Context) flushBlock(flush FlushFunc, frames int) error {
	n := frames * c.channels
	err := flush(c.pending[:n], frames)
	rest := copy(c.pending, c.pending[n:])
	c.pending = c.pending[:rest]
	c.position += int64(frames)
	return err
}

func (c *Context) reset() {
	c.channels = 0
	c.sampleRate = 0
	c.started = false
	c.skip = 0
	c.pending = c.pending[:0]
}

// fail resets the context before reporting a codec failure.
func (c *Context) fail(reason string, err error) error {
	c.reset()
	c.log.Debug("decoder reset after fault", "id", c.id, "codec", c.codec.Name(), "reason", reason, "err", err)
	return &DecodeError{Codec: c.codec.Name(), Reason: reason, Err: err}
}
