// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/sink"
)

const (
	DefaultSampleRate      = 48000
	DefaultChannels        = 2
	DefaultSustainedBuffer = 2400 * time.Millisecond
	DefaultFade            = 400 * time.Millisecond
)

// Driver pulls rendered audio to a device. *sink.OtoDriver implements it.
type Driver interface {
	Start() error
	Suspend() error
	Resume() error
	Close() error
}

type Option func(*Player)

// WithSampleRate sets the output sample rate every track is resampled to.
func WithSampleRate(rate int) Option {
	return func(p *Player) { p.sampleRate = rate }
}

// WithChannels sets the output channel count every track is mixed to.
func WithChannels(n int) Option {
	return func(p *Player) { p.channels = n }
}

// WithQuantum sets the number of frames rendered per device callback.
func WithQuantum(frames int) Option {
	return func(p *Player) { p.quantum = frames }
}

// WithBufferDuration sets how much audio one file read covers.
func WithBufferDuration(d time.Duration) Option {
	return func(p *Player) { p.bufferDuration = d }
}

// WithSustainedBuffer sets how much decoded audio is kept ahead of the
// play position.
func WithSustainedBuffer(d time.Duration) Option {
	return func(p *Player) { p.sustainedBuffer = d }
}

// WithFade sets the length of the pause fade out and the play fade in.
// Zero pauses and starts at once.
func WithFade(d time.Duration) Option {
	return func(p *Player) { p.fade = d }
}

func WithNormalization(enabled bool) Option {
	return func(p *Player) { p.normalize = enabled }
}

// WithSilenceTrimming drops decoded blocks that are entirely silent
// instead of playing them.
func WithSilenceTrimming(enabled bool) Option {
	return func(p *Player) { p.trimSilence = enabled }
}

// WithLoudnessHistory sets how much audio is measured before the
// normalization gain is fixed.
func WithLoudnessHistory(d time.Duration) Option {
	return func(p *Player) { p.loudnessHistory = d }
}

func WithRegistry(r *decoder.Registry) Option {
	return func(p *Player) {
		if r != nil {
			p.registry = r
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.log = l
		}
	}
}

// WithDriver makes the player realtime: newDriver is handed the renderer and
// its driver is started on the first Play. Without a driver the player
// renders offline through Render.
func WithDriver(newDriver func(*sink.Renderer) Driver) Option {
	return func(p *Player) { p.newDriver = newDriver }
}

// WithOto plays through the default audio device via oto.
func WithOto(deviceBuffer time.Duration) Option {
	return func(p *Player) {
		p.newDriver = func(r *sink.Renderer) Driver {
			return sink.NewOtoDriver(r, deviceBuffer, p.log)
		}
	}
}

// OnError registers f to receive producer failures. The track stops
// filling, and whatever has been buffered still plays.
func OnError(f func(error)) Option {
	return func(p *Player) { p.onError = f }
}

// OnTimeUpdate registers f to receive the play position, in seconds,
// about ten times a second while playing in the foreground.
func OnTimeUpdate(f func(seconds float64)) Option {
	return func(p *Player) { p.onTimeUpdate = f }
}

// OnEnded registers f to be called once the whole track has been decoded
// and played.
func OnEnded(f func()) Option {
	return func(p *Player) { p.onEnded = f }
}

func (p *Player) validate() error {
	switch {
	case p.sampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidOption, p.sampleRate)
	case p.channels <= 0:
		return fmt.Errorf("%w: %d channels", ErrInvalidOption, p.channels)
	case p.quantum <= 0:
		return fmt.Errorf("%w: quantum %d", ErrInvalidOption, p.quantum)
	case p.bufferDuration <= 0 || p.sustainedBuffer < p.bufferDuration:
		return fmt.Errorf("%w: buffer %v, sustained %v", ErrInvalidOption, p.bufferDuration, p.sustainedBuffer)
	case p.fade < 0:
		return fmt.Errorf("%w: fade %v", ErrInvalidOption, p.fade)
	case p.loudnessHistory <= 0:
		return fmt.Errorf("%w: loudness history %v", ErrInvalidOption, p.loudnessHistory)
	}
	return nil
}
