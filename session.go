// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/pipeline"
	"github.com/ik5/audplay/ringbuffer"
	"github.com/ik5/audplay/seek"
	"github.com/ik5/audplay/sink"
)

// session is one ring buffer, decoder context and pipeline, playing a
// track from base seconds on. It is replaced as a unit on seek.
type session struct {
	id       uuid.UUID
	prod     *ringbuffer.Producer
	cons     *ringbuffer.Consumer
	pipeline *pipeline.Pipeline
	base     float64

	produced atomic.Bool
	ended    atomic.Bool
}

func (p *Player) newSession(res *seek.Result) (*session, error) {
	prod, cons, err := ringbuffer.New(p.channels, p.bufferFrames())
	if err != nil {
		return nil, fmt.Errorf("audplay: %w", err)
	}
	if !p.playing {
		prod.SetPaused()
	}
	if p.background {
		prod.SetBackgrounded()
	}

	t := p.track
	dec := decoder.NewContext(t.format.NewCodec(),
		decoder.WithBufferDuration(p.bufferDuration),
		decoder.WithLogger(p.log))
	loudness := audio.NewLoudnessAnalyzer(
		audio.WithHistory(p.loudnessHistory),
		audio.WithNormalization(p.normalize),
		audio.WithSilenceTrimming(p.trimSilence))

	pl, err := pipeline.New(dec, t.view, t.meta, prod,
		pipeline.WithSampleRate(p.sampleRate),
		pipeline.WithBufferDuration(p.bufferDuration),
		pipeline.WithLoudness(loudness),
		pipeline.WithLogger(p.log))
	if err != nil {
		_ = dec.Destroy()
		return nil, fmt.Errorf("audplay: %w", err)
	}

	s := &session{id: uuid.New(), prod: prod, cons: cons, pipeline: pl}
	if res != nil {
		if err := pl.Seek(*res); err != nil {
			_ = pl.Destroy()
			return nil, fmt.Errorf("audplay: %w", err)
		}
		s.base = res.Time
	}

	p.log.Debug("session created", "session", s.id, "time", s.base,
		"buffer_frames", prod.Capacity(), "paused", prod.IsPaused())
	return s, nil
}

func (s *session) sinkSession(sampleRate, channels int) sink.Session {
	return sink.Session{ID: s.id, SampleRate: sampleRate, Channels: channels, Buffer: s.cons}
}

// time is the play position in seconds.
func (s *session) time(sampleRate int) float64 {
	return s.base + float64(s.prod.CurrentFrame())/float64(sampleRate)
}

func (s *session) setBackground(background bool) {
	if background {
		s.prod.SetBackgrounded()
		return
	}
	s.prod.UnsetBackgrounded()
}

// destroy releases the pipeline. The producer must be stopped.
func (s *session) destroy(l *log.Logger) {
	if err := s.pipeline.Destroy(); err != nil {
		l.Warn("failed to destroy session", "session", s.id, "err", err)
	}
}
