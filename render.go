// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ik5/audplay/sink"
)

// Render plays the loaded track from the current position into a 16-bit
// WAV stream on w, as fast as it decodes. It renders d of audio, or up to
// the end of the track when d is zero, and returns the number of frames
// written. Render is only available without a realtime driver.
func (p *Player) Render(ctx context.Context, w io.WriteSeeker, d time.Duration) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.driver != nil {
		return 0, ErrRealtime
	}
	s, err := p.current()
	if err != nil {
		return 0, err
	}

	if !p.playing || s.prod.IsPaused() {
		p.playing = true
		p.resume(s)
	}

	fill := func(ctx context.Context) (bool, error) {
		select {
		case <-p.worklet.TimeUpdates():
			p.timeUpdate(s)
		default:
		}

		done, err := s.pipeline.Step(ctx)
		if err != nil {
			return false, err
		}
		if done {
			s.produced.Store(true)
		}
		return done, nil
	}

	frames := int(math.Round(d.Seconds() * float64(p.sampleRate)))
	n, err := sink.RenderWAV(ctx, w, p.renderer, frames, fill)
	if err != nil {
		if ctx.Err() == nil {
			p.fail(s, err)
		}
		return n, fmt.Errorf("audplay: render: %w", err)
	}

	p.checkEnded(s)
	p.log.Debug("rendered", "session", s.id, "frames", n, "time", s.time(p.sampleRate))
	return n, nil
}
