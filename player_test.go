// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/internal/audiotest"
	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
	"github.com/ik5/audplay/sink"
)

const testRate = 8000

// writeWAV writes seconds of 16-bit stereo audio at testRate.
func writeWAV(t *testing.T, seconds int, wf audiotest.Waveform) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "track.wav")
	data := audiotest.WAV(testRate, 2, 16, seconds*testRate, wf)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}
	return path
}

func newPlayer(t *testing.T, opts ...Option) *Player {
	t.Helper()

	opts = append([]Option{
		WithSampleRate(testRate),
		WithNormalization(false),
		WithFade(0),
	}, opts...)
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func renderFile(t *testing.T) *os.File {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	if err != nil {
		t.Fatalf("os.Create() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// pacedDriver pulls one quantum per tick on its own goroutine.
type pacedDriver struct {
	r    *sink.Renderer
	tick time.Duration

	mtx      sync.Mutex
	stop     chan struct{}
	stopped  chan struct{}
	starts   int
	suspends int
	resumes  int
}

func (d *pacedDriver) Start() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.starts++
	d.stop = make(chan struct{})
	d.stopped = make(chan struct{})
	go func(stop, stopped chan struct{}) {
		defer close(stopped)
		buf := make([]float32, d.r.Quantum()*d.r.Channels())
		for {
			select {
			case <-stop:
				return
			case <-time.After(d.tick):
				d.r.RenderQuantum(buf)
			}
		}
	}(d.stop, d.stopped)
	return nil
}

func (d *pacedDriver) Suspend() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.suspends++
	return nil
}

func (d *pacedDriver) Resume() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.resumes++
	return nil
}

func (d *pacedDriver) counts() (suspends, resumes int) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.suspends, d.resumes
}

func (d *pacedDriver) Close() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.stop != nil {
		close(d.stop)
		<-d.stopped
		d.stop = nil
	}
	return nil
}

func withPacedDriver(d **pacedDriver) Option {
	return WithDriver(func(r *sink.Renderer) Driver {
		*d = &pacedDriver{r: r, tick: time.Millisecond}
		return *d
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Option
	}{
		{"sample rate", WithSampleRate(0)},
		{"channels", WithChannels(-1)},
		{"quantum", WithQuantum(0)},
		{"buffer", WithBufferDuration(0)},
		{"sustained below buffer", WithSustainedBuffer(100 * time.Millisecond)},
		{"fade", WithFade(-time.Second)},
		{"loudness history", WithLoudnessHistory(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.opt); !errors.Is(err, ErrInvalidOption) {
				t.Errorf("New() error = %v, want %v", err, ErrInvalidOption)
			}
		})
	}
}

func TestPlayer_NoTrack(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	ctx := context.Background()

	if err := p.Play(); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Play() error = %v, want %v", err, ErrNoTrack)
	}
	if err := p.Pause(); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Pause() error = %v, want %v", err, ErrNoTrack)
	}
	if err := p.Seek(ctx, 1); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Seek() error = %v, want %v", err, ErrNoTrack)
	}
	if _, err := p.Render(ctx, renderFile(t), 0); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Render() error = %v, want %v", err, ErrNoTrack)
	}
	if _, err := p.Metadata(); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Metadata() error = %v, want %v", err, ErrNoTrack)
	}
	if p.CurrentTime() != 0 || p.Ended() {
		t.Errorf("CurrentTime() = %v, Ended() = %v, want 0, false", p.CurrentTime(), p.Ended())
	}
	if p.State() != sink.StateNoSession {
		t.Errorf("State() = %v, want %v", p.State(), sink.StateNoSession)
	}
}

func TestPlayer_LoadErrors(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	ctx := context.Background()

	if err := p.Load(ctx, "notes.txt"); !errors.Is(err, decoder.ErrUnknownFormat) {
		t.Errorf("Load(notes.txt) error = %v, want %v", err, decoder.ErrUnknownFormat)
	}
	missing := filepath.Join(t.TempDir(), "missing.wav")
	if err := p.Load(ctx, missing); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want %v", err, fs.ErrNotExist)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.mp3")
	if err := os.WriteFile(garbage, make([]byte, 4096), 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}
	if err := p.Load(ctx, garbage); err == nil {
		t.Error("Load(garbage.mp3) error = nil")
	}
}

func TestPlayer_LoadStartsPaused(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.5))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	meta, err := p.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.SampleRate != testRate || meta.Channels != 2 || meta.Duration != 3 {
		t.Errorf("Metadata() = %d Hz, %d channels, %vs, want %d Hz, 2 channels, 3s",
			meta.SampleRate, meta.Channels, meta.Duration, testRate)
	}
	if p.Playing() {
		t.Error("Playing() = true after Load")
	}
	if s := p.sess.Load(); s == nil || !s.prod.IsPaused() {
		t.Error("loaded session is not paused")
	}
}

func TestPlayer_RenderWholeTrack(t *testing.T) {
	t.Parallel()

	var ended atomic.Int32
	p := newPlayer(t, OnEnded(func() { ended.Add(1) }))
	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.PerChannel(0.5, -0.5))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	f := renderFile(t)
	n, err := p.Render(context.Background(), f, 0)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if n != 3*testRate {
		t.Errorf("Render() = %d, want %d", n, 3*testRate)
	}
	if p.CurrentTime() != 3 {
		t.Errorf("CurrentTime() = %v, want 3", p.CurrentTime())
	}
	if !p.Ended() || ended.Load() != 1 {
		t.Errorf("Ended() = %v, OnEnded calls = %d, want true, 1", p.Ended(), ended.Load())
	}

	view, closer, err := fileview.Open(f.Name())
	if err != nil {
		t.Fatalf("fileview.Open() error = %v", err)
	}
	defer closer.Close()
	meta, err := DefaultRegistry().ForPath(f.Name())
	if err != nil {
		t.Fatalf("ForPath() error = %v", err)
	}
	out, err := meta.Demux(context.Background(), view)
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}
	if got := out.DataSize() / 4; got != 3*testRate {
		t.Errorf("rendered file holds %d frames, want %d", got, 3*testRate)
	}
}

func TestPlayer_RenderDuration(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	n, err := p.Render(context.Background(), renderFile(t), time.Second)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if n != testRate {
		t.Errorf("Render() = %d, want %d", n, testRate)
	}
	// Whole quanta are consumed, so the clock may run up to one quantum ahead.
	if got := p.CurrentTime(); got < 1 || got > 1+float64(sink.DefaultQuantum)/testRate {
		t.Errorf("CurrentTime() = %v, want about 1", got)
	}
	if p.Ended() {
		t.Error("Ended() = true after a partial render")
	}
}

func TestPlayer_SeekThenRender(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	ctx := context.Background()
	if err := p.Load(ctx, writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := p.Seek(ctx, 2); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if p.CurrentTime() != 2 {
		t.Errorf("CurrentTime() after Seek = %v, want 2", p.CurrentTime())
	}

	n, err := p.Render(ctx, renderFile(t), 0)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if n != testRate {
		t.Errorf("Render() = %d, want %d", n, testRate)
	}
	if p.CurrentTime() != 3 {
		t.Errorf("CurrentTime() = %v, want 3", p.CurrentTime())
	}

	// Seeking past the end clamps to the duration.
	if err := p.Seek(ctx, 60); err != nil {
		t.Fatalf("Seek(60) error = %v", err)
	}
	if p.CurrentTime() != 3 {
		t.Errorf("CurrentTime() after Seek(60) = %v, want 3", p.CurrentTime())
	}
}

func TestPlayer_TimeUpdatesOffline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		background bool
	}{
		{"foreground", false},
		{"background", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var updates atomic.Int32
			p := newPlayer(t, OnTimeUpdate(func(float64) { updates.Add(1) }))
			if err := p.SetBackground(tt.background); err != nil {
				t.Fatalf("SetBackground() error = %v", err)
			}
			if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if _, err := p.Render(context.Background(), renderFile(t), 0); err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			if got := updates.Load() > 0; got == tt.background {
				t.Errorf("time updates = %d with background %v", updates.Load(), tt.background)
			}
		})
	}
}

func TestPlayer_Volume(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	p.SetVolume(3)
	if p.Volume() != 1 {
		t.Errorf("Volume() = %v, want 1", p.Volume())
	}
	p.SetVolume(0.5)
	if p.Volume() != 0.5 {
		t.Errorf("Volume() = %v, want 0.5", p.Volume())
	}
}

func TestPlayer_Close(t *testing.T) {
	t.Parallel()

	p := newPlayer(t)
	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Play(); !errors.Is(err, ErrClosed) {
		t.Errorf("Play() after Close error = %v, want %v", err, ErrClosed)
	}
	if err := p.Load(context.Background(), "any.wav"); !errors.Is(err, ErrClosed) {
		t.Errorf("Load() after Close error = %v, want %v", err, ErrClosed)
	}
}

// failingFormat demuxes anything and fails on the first decode.
type failingFormat struct{}

var errBadData = errors.New("bad data")

func (failingFormat) Name() metadata.CodecName { return "failing" }
func (failingFormat) NewCodec() decoder.Codec  { return failingCodec{} }

func (failingFormat) Demux(_ context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	return &metadata.TrackMetadata{
		Codec:      "failing",
		Duration:   3,
		SampleRate: testRate,
		Channels:   1,
		DataEnd:    view.Size(),
	}, nil
}

type failingCodec struct{}

func (failingCodec) Name() metadata.CodecName               { return "failing" }
func (failingCodec) Start(*metadata.TrackMetadata) error    { return nil }
func (failingCodec) Flush(dst []float32) ([]float32, error) { return dst, nil }
func (failingCodec) Seek(seek.Result) error                 { return nil }
func (failingCodec) Close() error                           { return nil }

func (failingCodec) Decode([]byte, []float32) (int, []float32, error) {
	return 0, nil, errBadData
}

func TestPlayer_ProducerError(t *testing.T) {
	t.Parallel()

	reg := decoder.NewRegistry()
	reg.Register("bad", failingFormat{})

	var reported atomic.Pointer[error]
	p := newPlayer(t, WithRegistry(reg), OnError(func(err error) { reported.Store(&err) }))

	path := filepath.Join(t.TempDir(), "track.bad")
	if err := os.WriteFile(path, make([]byte, 8192), 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}
	if err := p.Load(context.Background(), path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err := p.Render(context.Background(), renderFile(t), 0)
	if !errors.Is(err, decoder.ErrDecodeFault) || !errors.Is(err, errBadData) {
		t.Errorf("Render() error = %v, want a decode fault wrapping %v", err, errBadData)
	}
	if !errors.Is(p.Err(), errBadData) {
		t.Errorf("Err() = %v, want %v", p.Err(), errBadData)
	}
	if got := reported.Load(); got == nil || !errors.Is(*got, errBadData) {
		t.Errorf("OnError() received %v, want %v", got, errBadData)
	}
}

func TestPlayer_RealtimeRejectsRender(t *testing.T) {
	t.Parallel()

	var d *pacedDriver
	p := newPlayer(t, withPacedDriver(&d))
	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := p.Render(context.Background(), renderFile(t), 0); !errors.Is(err, ErrRealtime) {
		t.Errorf("Render() error = %v, want %v", err, ErrRealtime)
	}
}

func TestPlayer_RealtimePlaysToEnd(t *testing.T) {
	t.Parallel()

	ended := make(chan struct{})
	var updates atomic.Int32
	var d *pacedDriver
	p := newPlayer(t, withPacedDriver(&d),
		OnEnded(func() { close(ended) }),
		OnTimeUpdate(func(float64) { updates.Add(1) }))

	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("second Play() error = %v", err)
	}

	select {
	case <-ended:
	case <-time.After(20 * time.Second):
		t.Fatal("track did not end")
	}
	if p.CurrentTime() != 3 {
		t.Errorf("CurrentTime() = %v, want 3", p.CurrentTime())
	}
	if updates.Load() == 0 {
		t.Error("no time updates while playing")
	}
	if d.starts != 1 {
		t.Errorf("driver started %d times, want 1", d.starts)
	}
}

func TestPlayer_RealtimePauseAndSeek(t *testing.T) {
	t.Parallel()

	ended := make(chan struct{})
	var d *pacedDriver
	p := newPlayer(t, withPacedDriver(&d), WithFade(10*time.Millisecond),
		OnEnded(func() { close(ended) }))

	ctx := context.Background()
	if err := p.Load(ctx, writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitFor(t, "playback", func() bool { return p.CurrentTime() > 0.1 })

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	waitFor(t, "pause", func() bool { return p.State() == sink.StatePaused })
	paused := p.CurrentTime()
	time.Sleep(20 * time.Millisecond)
	if p.CurrentTime() != paused {
		t.Errorf("CurrentTime() moved from %v to %v while paused", paused, p.CurrentTime())
	}

	if err := p.Seek(ctx, 2.5); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if got := p.CurrentTime(); got != 2.5 {
		t.Errorf("CurrentTime() after Seek = %v, want 2.5", got)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	select {
	case <-ended:
	case <-time.After(20 * time.Second):
		t.Fatal("track did not end after seek")
	}
	if math.Abs(p.CurrentTime()-3) > 1e-9 {
		t.Errorf("CurrentTime() = %v, want 3", p.CurrentTime())
	}
}

func TestSkipTo(t *testing.T) {
	t.Parallel()

	meta := &metadata.TrackMetadata{SampleRate: 44100, DataStart: 512}
	got := skipTo(1.5, meta)
	want := seek.Result{Time: 1.5, Offset: 512, SamplesToSkip: 66150}
	if got != want {
		t.Errorf("skipTo(1.5) = %+v, want %+v", got, want)
	}
}

func TestPlayer_BackgroundSuspendsDriver(t *testing.T) {
	t.Parallel()

	var d *pacedDriver
	p := newPlayer(t, withPacedDriver(&d))

	if err := p.Load(context.Background(), writeWAV(t, 1, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.SetBackground(true); err != nil {
		t.Fatalf("SetBackground(true) error = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitFor(t, "driver suspend", func() bool {
		suspends, _ := d.counts()
		return suspends == 1
	})
	waitFor(t, "pause", func() bool { return p.State() == sink.StatePaused })
	time.Sleep(5 * endPollInterval)
	if suspends, resumes := d.counts(); suspends != 1 || resumes != 0 {
		t.Errorf("suspends, resumes = %d, %d, want 1, 0", suspends, resumes)
	}

	if err := p.SetBackground(false); err != nil {
		t.Fatalf("SetBackground(false) error = %v", err)
	}
	if _, resumes := d.counts(); resumes != 1 {
		t.Errorf("resumes after foreground = %d, want 1", resumes)
	}
	if s := p.sess.Load(); s == nil || s.prod.IsPaused() {
		t.Error("track still paused after returning to the foreground")
	}
}

func TestPlayer_PlayResumesSuspendedDriver(t *testing.T) {
	t.Parallel()

	var d *pacedDriver
	p := newPlayer(t, withPacedDriver(&d))

	if err := p.Load(context.Background(), writeWAV(t, 1, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.SetBackground(true); err != nil {
		t.Fatalf("SetBackground(true) error = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitFor(t, "driver suspend", func() bool {
		suspends, _ := d.counts()
		return suspends >= 1
	})

	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if _, resumes := d.counts(); resumes < 1 {
		t.Errorf("resumes after Play = %d, want at least 1", resumes)
	}
}

func TestPlayer_ForegroundPauseKeepsDriverRunning(t *testing.T) {
	t.Parallel()

	var d *pacedDriver
	p := newPlayer(t, withPacedDriver(&d))

	if err := p.Load(context.Background(), writeWAV(t, 3, audiotest.Constant(0.25))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := p.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	waitFor(t, "pause", func() bool { return p.State() == sink.StatePaused })
	time.Sleep(5 * endPollInterval)
	if suspends, _ := d.counts(); suspends != 0 {
		t.Errorf("suspends = %d, want 0", suspends)
	}
}
