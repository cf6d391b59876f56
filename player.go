// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
	"github.com/ik5/audplay/sink"
)

// endPollInterval is how often the dispatcher checks whether a finished
// track has drained.
const endPollInterval = 20 * time.Millisecond

type track struct {
	path   string
	view   *fileview.View
	closer io.Closer
	meta   *metadata.TrackMetadata
	format decoder.Format
}

// Player plays one track at a time.
//
// Control methods are safe for concurrent use. Callbacks run on the
// player's own goroutines and must not call Load, Seek, Play, Pause,
// SetBackground or Close.
type Player struct {
	sampleRate      int
	channels        int
	quantum         int
	bufferDuration  time.Duration
	sustainedBuffer time.Duration
	fade            time.Duration
	normalize       bool
	trimSilence     bool
	loudnessHistory time.Duration

	registry *decoder.Registry
	log      *log.Logger

	newDriver func(*sink.Renderer) Driver
	driver    Driver
	drvMtx    sync.Mutex
	started   bool
	suspended bool

	onError      func(error)
	onTimeUpdate func(float64)
	onEnded      func()

	worklet  *sink.Worklet
	fadeIn   *sink.FadeIn
	renderer *sink.Renderer

	mtx        sync.Mutex
	track      *track
	sess       atomic.Pointer[session]
	cancel     context.CancelFunc
	group      *errgroup.Group
	playing    bool
	background bool
	closed     bool

	errMtx sync.Mutex
	err    error
}

// New returns a player with no track loaded.
func New(opts ...Option) (*Player, error) {
	p := &Player{
		sampleRate:      DefaultSampleRate,
		channels:        DefaultChannels,
		quantum:         sink.DefaultQuantum,
		bufferDuration:  decoder.DefaultBufferDuration,
		sustainedBuffer: DefaultSustainedBuffer,
		fade:            DefaultFade,
		normalize:       true,
		loudnessHistory: 8 * time.Second,
		registry:        DefaultRegistry(),
		log:             log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var err error
	p.worklet, err = sink.NewWorklet(p.quantum)
	if err != nil {
		return nil, fmt.Errorf("audplay: %w", err)
	}
	p.fadeIn = &sink.FadeIn{}
	p.renderer, err = sink.NewRenderer(p.worklet, p.fadeIn, p.sampleRate, p.channels)
	if err != nil {
		return nil, fmt.Errorf("audplay: %w", err)
	}
	if p.newDriver != nil {
		p.driver = p.newDriver(p.renderer)
	}
	return p, nil
}

// Renderer is the render chain drivers pull from.
func (p *Player) Renderer() *sink.Renderer { return p.renderer }

// Load opens path, demuxes it and prepares a paused session at its start.
// The previous track is released first.
func (p *Player) Load(ctx context.Context, path string) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.closed {
		return ErrClosed
	}

	format, err := p.registry.ForPath(path)
	if err != nil {
		return err
	}
	view, closer, err := fileview.Open(path)
	if err != nil {
		return err
	}
	meta, err := format.Demux(ctx, view)
	if err != nil {
		_ = closer.Close()
		return fmt.Errorf("audplay: %s: %w", filepath.Base(path), err)
	}

	p.unload()
	p.track = &track{path: path, view: view, closer: closer, meta: meta, format: format}
	p.playing = false
	p.setErr(nil)

	if err := p.replaceSession(nil); err != nil {
		p.unload()
		return err
	}
	p.log.Debug("track loaded", "path", path, "codec", meta.Codec,
		"duration", meta.Length(), "sample_rate", meta.SampleRate, "channels", meta.Channels)
	return nil
}

// Metadata describes the loaded track.
func (p *Player) Metadata() (*metadata.TrackMetadata, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.track == nil {
		return nil, ErrNoTrack
	}
	return p.track.meta, nil
}

// Play starts or resumes playback with a fade in.
func (p *Player) Play() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	s, err := p.current()
	if err != nil {
		return err
	}
	if err := p.startDriver(); err != nil {
		return err
	}
	if p.playing && !s.prod.IsPaused() {
		return nil
	}

	p.playing = true
	p.resume(s)
	return nil
}

func (p *Player) resume(s *session) {
	s.prod.Resume()
	p.fadeIn.Start(p.fadeFrames())
	p.resumeDriver()
	p.log.Debug("playing", "session", s.id, "time", s.time(p.sampleRate))
}

// Pause fades out and pauses.
func (p *Player) Pause() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	s, err := p.current()
	if err != nil {
		return err
	}
	if !p.playing {
		return nil
	}
	p.playing = false
	s.prod.RequestPause(p.fadeFrames())
	p.log.Debug("pausing", "session", s.id, "fade_frames", p.fadeFrames())
	return nil
}

// Playing reports whether playback has been requested and not paused.
func (p *Player) Playing() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.playing
}

// State is the state of the sink.
func (p *Player) State() sink.State { return p.worklet.State() }

// SetBackground marks playback as backgrounded. A backgrounded player
// sends no time updates and pauses on underrun instead of playing silence.
// Once paused in the background the driver is suspended; returning to
// the foreground resumes it and continues a track that was playing.
func (p *Player) SetBackground(background bool) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.background = background
	s := p.sess.Load()
	if s != nil {
		s.setBackground(background)
	}
	if background {
		return nil
	}
	if s != nil && p.playing && s.prod.IsPaused() {
		p.resume(s)
		return nil
	}
	p.resumeDriver()
	return nil
}

// SetVolume sets the output volume, clamped to [0, 1].
func (p *Player) SetVolume(v float64) { p.renderer.SetVolume(v) }

func (p *Player) Volume() float64 { return p.renderer.Volume() }

// Seek moves playback to t seconds. The current session is replaced as a
// whole; playback continues if it was playing.
func (p *Player) Seek(ctx context.Context, t float64) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, err := p.current(); err != nil {
		return err
	}

	p.stopProducer()
	meta := p.track.meta
	t = min(max(t, 0), meta.Duration)
	res, err := seek.Resolve(ctx, t, meta, p.track.view)
	if errors.Is(err, seek.ErrUnsupportedCodec) {
		res, err = skipTo(t, meta), nil
	}
	if err != nil {
		// The old session keeps playing what it has buffered.
		p.startProducer(p.sess.Load())
		return fmt.Errorf("audplay: seek %.3fs: %w", t, err)
	}

	if err := p.replaceSession(&res); err != nil {
		return err
	}
	p.log.Debug("seeked", "time", res.Time, "offset", res.Offset, "skip", res.SamplesToSkip)
	return nil
}

// skipTo restarts decoding at the start of the data and discards every
// frame before t. It serves codecs the seek package cannot resolve.
func skipTo(t float64, meta *metadata.TrackMetadata) seek.Result {
	frame := int(math.Round(t * float64(meta.SampleRate)))
	return seek.Result{
		Time:          float64(frame) / float64(meta.SampleRate),
		Offset:        meta.DataStart,
		SamplesToSkip: frame,
	}
}

// CurrentTime is the play position in seconds.
func (p *Player) CurrentTime() float64 {
	s := p.sess.Load()
	if s == nil {
		return 0
	}
	return s.time(p.sampleRate)
}

// Ended reports whether the loaded track has played to its end.
func (p *Player) Ended() bool {
	s := p.sess.Load()
	return s != nil && s.ended.Load()
}

// Err returns the error that stopped the producer of the current track,
// if any.
func (p *Player) Err() error {
	p.errMtx.Lock()
	defer p.errMtx.Unlock()
	return p.err
}

func (p *Player) setErr(err error) {
	p.errMtx.Lock()
	p.err = err
	p.errMtx.Unlock()
}

// Close stops playback and releases the track and the driver.
func (p *Player) Close() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.unload()

	if p.driver != nil {
		if err := p.driver.Close(); err != nil {
			return fmt.Errorf("audplay: %w", err)
		}
	}
	return nil
}

func (p *Player) current() (*session, error) {
	if p.closed {
		return nil, ErrClosed
	}
	s := p.sess.Load()
	if s == nil || p.track == nil {
		return nil, ErrNoTrack
	}
	return s, nil
}

func (p *Player) fadeFrames() int {
	return int(math.Round(p.fade.Seconds() * float64(p.sampleRate)))
}

func (p *Player) bufferFrames() int {
	return int(math.Round(p.sustainedBuffer.Seconds() * float64(p.sampleRate)))
}

// replaceSession builds a session for the loaded track, positioned at res
// or at the start, posts it to the sink and starts its producer. The old
// session's producer must already be stopped.
func (p *Player) replaceSession(res *seek.Result) error {
	s, err := p.newSession(res)
	if err != nil {
		return err
	}

	if old := p.sess.Swap(s); old != nil {
		old.destroy(p.log)
	}
	p.worklet.Post(s.sinkSession(p.sampleRate, p.channels))
	if p.playing {
		p.fadeIn.Start(p.fadeFrames())
		p.resumeDriver()
	}
	p.startProducer(s)
	return nil
}

func (p *Player) unload() {
	p.stopProducer()
	if s := p.sess.Swap(nil); s != nil {
		s.destroy(p.log)
	}
	p.worklet.Post(sink.Session{})
	if p.track != nil {
		if err := p.track.closer.Close(); err != nil {
			p.log.Warn("failed to close track", "path", p.track.path, "err", err)
		}
		p.track = nil
	}
}

// startProducer runs the pipeline of s and the time update dispatcher in
// one group. Offline players drive the pipeline from Render instead.
func (p *Player) startProducer(s *session) {
	if p.driver == nil || s == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.produce(gctx, s) })
	g.Go(func() error { return p.dispatch(gctx, s) })
	p.cancel, p.group = cancel, g
}

func (p *Player) stopProducer() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	_ = p.group.Wait()
	p.cancel, p.group = nil, nil
}

func (p *Player) produce(ctx context.Context, s *session) error {
	err := s.pipeline.Run(ctx)
	switch {
	case err == nil:
		s.produced.Store(true)
		p.log.Debug("producer finished", "session", s.id, "frames", s.pipeline.FramesWritten())
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		p.fail(s, err)
		return err
	}
}

func (p *Player) fail(s *session, err error) {
	p.setErr(err)
	p.log.Error("producer failed", "session", s.id, "err", err)
	if p.onError != nil {
		p.onError(err)
	}
}

// dispatch forwards sink time updates and reports the end of the track.
func (p *Player) dispatch(ctx context.Context, s *session) error {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.worklet.TimeUpdates():
			p.timeUpdate(s)
		case <-ticker.C:
			p.checkEnded(s)
			p.suspendIfIdle(s)
		}
	}
}

func (p *Player) startDriver() error {
	p.drvMtx.Lock()
	defer p.drvMtx.Unlock()

	if p.driver == nil || p.started {
		return nil
	}
	if err := p.driver.Start(); err != nil {
		return fmt.Errorf("audplay: %w", err)
	}
	p.started = true
	return nil
}

// suspendIfIdle suspends the driver once s has paused in the background.
func (p *Player) suspendIfIdle(s *session) {
	p.drvMtx.Lock()
	defer p.drvMtx.Unlock()

	if !p.started || p.suspended || !s.prod.IsBackgrounded() || !s.prod.IsPaused() {
		return
	}
	if err := p.driver.Suspend(); err != nil {
		p.log.Warn("failed to suspend driver", "session", s.id, "err", err)
		return
	}
	p.suspended = true
	p.log.Debug("driver suspended", "session", s.id, "time", s.time(p.sampleRate))
}

func (p *Player) resumeDriver() {
	p.drvMtx.Lock()
	defer p.drvMtx.Unlock()

	if !p.suspended {
		return
	}
	if err := p.driver.Resume(); err != nil {
		p.log.Warn("failed to resume driver", "err", err)
		return
	}
	p.suspended = false
	p.log.Debug("driver resumed")
}

func (p *Player) timeUpdate(s *session) {
	if p.onTimeUpdate != nil {
		p.onTimeUpdate(s.time(p.sampleRate))
	}
}

// checkEnded fires OnEnded once s has been fully produced and played.
func (p *Player) checkEnded(s *session) bool {
	if !s.produced.Load() || s.prod.Buffered() > 0 {
		return false
	}
	if s.ended.Swap(true) {
		return true
	}
	p.log.Debug("track ended", "session", s.id, "time", s.time(p.sampleRate))
	if p.onEnded != nil {
		p.onEnded()
	}
	return true
}
