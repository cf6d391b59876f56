// SPDX-License-Identifier: EPL-2.0

package ringbuffer

import "sync/atomic"

// MaxFrame is the modulus of the current frame counter.
const MaxFrame = 8388608 * 128

// cancelPause is stored in the pause request slot to withdraw a request.
const cancelPause = -1

type buffer struct {
	data     [][]float32
	channels int
	capacity uint64

	write atomic.Uint64 // producer owned
	read  atomic.Uint64 // consumer owned

	pauseRequest atomic.Int64
	paused       atomic.Bool
	backgrounded atomic.Bool
	currentFrame atomic.Int64
}

// New allocates a buffer holding capacity frames of channels planar samples
// and returns its two handles.
func New(channels, capacity int) (*Producer, *Consumer, error) {
	if channels <= 0 {
		return nil, nil, ErrInvalidChannels
	}
	if capacity <= 0 {
		return nil, nil, ErrInvalidCapacity
	}

	b := &buffer{
		data:     make([][]float32, channels),
		channels: channels,
		capacity: uint64(capacity),
	}
	for c := range b.data {
		b.data[c] = make([]float32, capacity)
	}

	return &Producer{b: b}, &Consumer{b: b}, nil
}

func (b *buffer) buffered() int {
	return int(b.write.Load() - b.read.Load())
}

// Producer is the writing side of a buffer.
type Producer struct {
	b *buffer
}

// Write copies up to frames frames from src. It returns fewer frames only
// when the buffer is full.
func (p *Producer) Write(src [][]float32, frames int) (int, error) {
	b := p.b
	if len(src) != b.channels {
		return 0, ErrChannelMismatch
	}

	for c := range src {
		frames = min(frames, len(src[c]))
	}

	w := b.write.Load()
	free := int(b.capacity - (w - b.read.Load()))
	n := min(frames, free)
	if n <= 0 {
		return 0, nil
	}

	start := int(w % b.capacity)
	first := min(n, int(b.capacity)-start)
	for c := range b.channels {
		copy(b.data[c][start:start+first], src[c][:first])
		copy(b.data[c][:n-first], src[c][first:n])
	}

	b.write.Store(w + uint64(n))
	return n, nil
}

// Writable is the number of frames Write can accept right now.
func (p *Producer) Writable() int { return int(p.b.capacity) - p.b.buffered() }

// Buffered is the number of frames written but not yet read.
func (p *Producer) Buffered() int { return p.b.buffered() }

// Capacity in frames.
func (p *Producer) Capacity() int { return int(p.b.capacity) }

// Channels per frame.
func (p *Producer) Channels() int { return p.b.channels }

// RequestPause asks the consumer to fade out over frames frames and then
// pause. A non-positive count pauses at once.
func (p *Producer) RequestPause(frames int) {
	if frames <= 0 {
		p.b.pauseRequest.Store(0)
		p.b.paused.Store(true)
		return
	}
	p.b.pauseRequest.Store(int64(frames))
}

// CancelPause withdraws a pending pause request.
func (p *Producer) CancelPause() { p.b.pauseRequest.Store(cancelPause) }

// Resume clears the paused flag and cancels any pending request.
func (p *Producer) Resume() {
	p.CancelPause()
	p.b.paused.Store(false)
}

func (p *Producer) SetPaused()     { p.b.paused.Store(true) }
func (p *Producer) IsPaused() bool { return p.b.paused.Load() }

func (p *Producer) SetBackgrounded()     { p.b.backgrounded.Store(true) }
func (p *Producer) UnsetBackgrounded()   { p.b.backgrounded.Store(false) }
func (p *Producer) IsBackgrounded() bool { return p.b.backgrounded.Load() }

// CurrentFrame is the consumer's play position, modulo MaxFrame.
func (p *Producer) CurrentFrame() int64 { return p.b.currentFrame.Load() }

// Consumer is the reading side of a buffer. Its methods never allocate or
// block.
type Consumer struct {
	b *buffer
}

// Read copies up to frames frames into dst and returns how many were
// copied. It returns -1 when the handle is unusable or dst has the wrong
// channel count.
func (c *Consumer) Read(dst [][]float32, frames int) int {
	if c == nil || c.b == nil {
		return -1
	}
	b := c.b
	if len(dst) != b.channels {
		return -1
	}

	for ch := range dst {
		frames = min(frames, len(dst[ch]))
	}

	r := b.read.Load()
	n := min(frames, int(b.write.Load()-r))
	if n <= 0 {
		return 0
	}

	start := int(r % b.capacity)
	first := min(n, int(b.capacity)-start)
	for ch := range b.channels {
		copy(dst[ch][:first], b.data[ch][start:start+first])
		copy(dst[ch][first:n], b.data[ch][:n-first])
	}

	b.read.Store(r + uint64(n))
	return n
}

// Readable is the number of frames Read can return right now.
func (c *Consumer) Readable() int { return c.b.buffered() }

// Channels per frame.
func (c *Consumer) Channels() int { return c.b.channels }

// TakePauseRequest returns the pending request and clears it.
func (c *Consumer) TakePauseRequest() int64 { return c.b.pauseRequest.Swap(0) }

func (c *Consumer) SetPaused()           { c.b.paused.Store(true) }
func (c *Consumer) IsPaused() bool       { return c.b.paused.Load() }
func (c *Consumer) IsBackgrounded() bool { return c.b.backgrounded.Load() }

// AdvanceCurrentFrame adds n to the play position and returns the new value.
func (c *Consumer) AdvanceCurrentFrame(n int) int64 {
	next := (c.b.currentFrame.Load() + int64(n)) % MaxFrame
	c.b.currentFrame.Store(next)
	return next
}

// CurrentFrame is the play position, modulo MaxFrame.
func (c *Consumer) CurrentFrame() int64 { return c.b.currentFrame.Load() }
