// SPDX-License-Identifier: EPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/ringbuffer"
	"github.com/ik5/audplay/seek"
)

const (
	minReadSize = 4096
	maxReadSize = 1 << 20

	DefaultStallInterval = 10 * time.Millisecond
)

type Option func(*Pipeline)

// WithSampleRate sets the output sample rate. It defaults to the rate of
// the track.
func WithSampleRate(rate int) Option {
	return func(p *Pipeline) {
		if rate > 0 {
			p.sampleRate = rate
		}
	}
}

// WithBufferDuration sets how much audio one file read should cover.
func WithBufferDuration(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.bufferDuration = d
		}
	}
}

// WithLoudness supplies the analyzer used for normalization. It is
// reinitialized for the output shape.
func WithLoudness(a *audio.LoudnessAnalyzer) Option {
	return func(p *Pipeline) { p.loudness = a }
}

func WithNormalization(enabled bool) Option {
	return func(p *Pipeline) { p.normalize = &enabled }
}

// WithSilenceTrimming drops every output block the loudness analyzer
// measures as entirely silent instead of writing it.
func WithSilenceTrimming(enabled bool) Option {
	return func(p *Pipeline) { p.trim = &enabled }
}

// WithStallInterval sets how long a write waits for the consumer before
// retrying when the ring buffer is full.
func WithStallInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.stallInterval = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// Pipeline decodes one track into a ring buffer. It is driven by a single
// goroutine.
type Pipeline struct {
	dec  *decoder.Context
	view *fileview.View
	meta *metadata.TrackMetadata
	out  *ringbuffer.Producer
	log  *log.Logger

	sampleRate     int
	bufferDuration time.Duration
	stallInterval  time.Duration
	stallLog       rate.Sometimes

	resampler *audio.Resampler
	mixer     *audio.ChannelMixer
	loudness  *audio.LoudnessAnalyzer
	normalize *bool
	trim      *bool
	gain      float64

	readSize      int
	position      int64
	consumed      int64
	framesWritten int64
	framesTrimmed int64

	planar [][]float32
	window [][]float32

	done      bool
	destroyed bool
}

// New prepares dec for meta and returns a pipeline writing to out. The
// output channel count is the channel count of out.
func New(dec *decoder.Context, view *fileview.View, meta *metadata.TrackMetadata, out *ringbuffer.Producer, opts ...Option) (*Pipeline, error) {
	if meta.SampleRate <= 0 || meta.Channels <= 0 {
		return nil, ErrInvalidMetadata
	}

	p := &Pipeline{
		dec:            dec,
		view:           view,
		meta:           meta,
		out:            out,
		log:            log.Default(),
		sampleRate:     meta.SampleRate,
		bufferDuration: decoder.DefaultBufferDuration,
		stallInterval:  DefaultStallInterval,
		stallLog:       rate.Sometimes{Interval: time.Second},
		gain:           1,
		position:       meta.DataStart,
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	p.resampler, err = audio.NewResampler(meta.Channels, meta.SampleRate, p.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.resampler.Start()

	p.mixer, err = audio.NewChannelMixer(out.Channels())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	if p.loudness == nil {
		p.loudness = audio.NewLoudnessAnalyzer()
	}
	if p.normalize != nil {
		p.loudness.SetEnabled(*p.normalize)
	}
	if p.trim != nil {
		p.loudness.SetSilenceTrimming(*p.trim)
	}
	if err := p.loudness.Reinitialize(out.Channels(), p.sampleRate); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.planar = make([][]float32, out.Channels())
	p.window = make([][]float32, out.Channels())
	p.readSize = readSize(p.bufferDuration, meta)

	if err := p.startDecoder(); err != nil {
		return nil, err
	}

	p.log.Debug("pipeline created",
		"codec", meta.Codec, "source_rate", meta.SampleRate, "source_channels", meta.Channels,
		"sample_rate", p.sampleRate, "channels", out.Channels(), "read_size", p.readSize)
	return p, nil
}

// readSize is the byte count that decodes to about d of audio.
func readSize(d time.Duration, meta *metadata.TrackMetadata) int {
	perFrame := meta.MaxByteSizePerSample
	if perFrame <= 0 {
		perFrame = 4 * float64(meta.Channels)
	}
	n := math.Ceil(d.Seconds() * float64(meta.SampleRate) * perFrame)
	return int(min(maxReadSize, max(minReadSize, n)))
}

func (p *Pipeline) startDecoder() error {
	if err := p.dec.EstablishChannelCount(p.meta.Channels); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := p.dec.EstablishSampleRate(p.meta.SampleRate); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := p.dec.Start(p.meta); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (p *Pipeline) dataEnd() int64 {
	if p.meta.DataEnd > 0 {
		return min(p.meta.DataEnd, p.view.Size())
	}
	return p.view.Size()
}

// Step reads and decodes one block and writes everything the decoder
// flushed. It reports done once the track has been fully written.
func (p *Pipeline) Step(ctx context.Context) (bool, error) {
	if p.destroyed {
		return false, ErrDestroyed
	}
	if p.done {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	end := p.dataEnd()
	if p.position >= end {
		return p.finish(ctx)
	}

	size := int(min(int64(p.readSize), end-p.position))
	block, err := p.view.Block(ctx, p.position, size)
	if err != nil {
		return false, fmt.Errorf("pipeline: read: %w", err)
	}

	consumed, err := p.dec.DecodeUntilFlush(block, p.flushFunc(ctx))
	p.position += int64(consumed)
	p.consumed += int64(consumed)
	if err != nil {
		return false, fmt.Errorf("pipeline: %w", err)
	}

	if consumed == 0 {
		if len(block) < p.readSize || p.readSize >= maxReadSize {
			return p.finish(ctx)
		}
		p.readSize = min(maxReadSize, p.readSize*2)
		p.log.Debug("no progress on block, growing reads", "read_size", p.readSize, "position", p.position)
	}
	return false, nil
}

// Run steps until the track is done. It returns nil at the end of the
// track and the context error when cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		done, err := p.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if done {
			return nil
		}
	}
}

func (p *Pipeline) finish(ctx context.Context) (bool, error) {
	if _, err := p.dec.End(p.flushFunc(ctx)); err != nil {
		return false, fmt.Errorf("pipeline: %w", err)
	}

	tail, err := p.resampler.Drain()
	if err != nil {
		return false, fmt.Errorf("pipeline: drain: %w", err)
	}
	if err := p.emit(ctx, tail); err != nil {
		return false, err
	}

	p.position = p.dataEnd()
	p.done = true
	p.log.Debug("pipeline finished", "frames", p.framesWritten, "trimmed", p.framesTrimmed, "bytes", p.consumed)
	return true, nil
}

func (p *Pipeline) flushFunc(ctx context.Context) decoder.FlushFunc {
	return func(block []float32, frames int) error {
		out, err := p.resampler.Resample(block[:frames*p.meta.Channels])
		if err != nil {
			return err
		}
		return p.emit(ctx, out)
	}
}

// emit mixes, normalizes and writes one resampled block.
func (p *Pipeline) emit(ctx context.Context, block []float32) error {
	mixed, err := p.mixer.Mix(block, p.meta.Channels)
	if err != nil {
		return err
	}
	ch := p.out.Channels()
	frames := len(mixed) / ch
	if frames == 0 {
		return nil
	}

	trimming := p.loudness.SilenceTrimming()
	if p.loudness.HasEstablishedGain() && !trimming {
		p.gain = p.loudness.EstablishedGain()
	} else {
		p.gain = p.loudness.Loudness(mixed, frames)
	}
	if trimming && p.loudness.IsEntirelySilent() {
		p.framesTrimmed += int64(frames)
		return nil
	}
	p.loudness.ApplyGain(mixed, frames, p.gain)

	for c := range ch {
		if cap(p.planar[c]) < frames {
			p.planar[c] = make([]float32, frames)
		}
		dst := p.planar[c][:frames]
		for f := range dst {
			dst[f] = mixed[f*ch+c]
		}
		p.planar[c] = dst
	}

	return p.write(ctx, frames)
}

// write copies frames from the planar scratch into the ring buffer,
// waiting for room as needed.
func (p *Pipeline) write(ctx context.Context, frames int) error {
	written := 0
	for {
		for c := range p.window {
			p.window[c] = p.planar[c][written:frames]
		}
		n, err := p.out.Write(p.window, frames-written)
		if err != nil {
			return fmt.Errorf("pipeline: write: %w", err)
		}
		written += n
		p.framesWritten += int64(n)
		if written >= frames {
			return nil
		}

		p.stallLog.Do(func() {
			p.log.Debug("ring buffer full, waiting",
				"buffered", p.out.Buffered(), "pending", frames-written)
		})
		if err := p.stall(ctx); err != nil {
			return err
		}
	}
}

func (p *Pipeline) stall(ctx context.Context) error {
	t := time.NewTimer(p.stallInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Seek discards everything in flight and continues decoding from res.
// Seeking is allowed after the track has finished.
func (p *Pipeline) Seek(res seek.Result) error {
	if p.destroyed {
		return ErrDestroyed
	}
	if !p.dec.Started() {
		if err := p.startDecoder(); err != nil {
			return err
		}
	}
	if err := p.dec.ApplySeek(res); err != nil {
		return fmt.Errorf("pipeline: seek: %w", err)
	}
	p.resampler.Reset()

	p.position = min(max(res.Offset, p.meta.DataStart), p.dataEnd())
	p.consumed = 0
	p.framesWritten = 0
	p.framesTrimmed = 0
	p.done = false
	p.log.Debug("pipeline seeked", "time", res.Time, "offset", p.position, "skip", res.SamplesToSkip)
	return nil
}

// BytesConsumed is the number of encoded bytes decoded since New or the
// last Seek.
func (p *Pipeline) BytesConsumed() int64 { return p.consumed }

// Position is the file offset of the next read.
func (p *Pipeline) Position() int64 { return p.position }

// FramesWritten is the number of output frames written since New or the
// last Seek.
func (p *Pipeline) FramesWritten() int64 { return p.framesWritten }

// FramesTrimmed is the number of silent output frames dropped since New or
// the last Seek.
func (p *Pipeline) FramesTrimmed() int64 { return p.framesTrimmed }

// Done reports whether the whole track has been written.
func (p *Pipeline) Done() bool { return p.done }

// SampleRate is the output sample rate.
func (p *Pipeline) SampleRate() int { return p.sampleRate }

// Destroy ends and releases the decoder and the resampler. It may be
// called after the context passed to Run has been cancelled.
func (p *Pipeline) Destroy() error {
	if p.destroyed {
		return nil
	}
	p.destroyed = true

	var errs []error
	if _, err := p.dec.End(func([]float32, int) error { return nil }); err != nil && !errors.Is(err, decoder.ErrDestroyed) {
		errs = append(errs, err)
	}
	if err := p.dec.Destroy(); err != nil {
		errs = append(errs, err)
	}
	p.resampler.Destroy()
	return errors.Join(errs...)
}
