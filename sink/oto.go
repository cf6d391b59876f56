// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// DefaultDeviceBuffer is the output latency asked of the device.
const DefaultDeviceBuffer = 50 * time.Millisecond

// player is the part of *oto.Player the driver uses.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

type device interface {
	NewPlayer(r io.Reader) player
	Suspend() error
	Resume() error
}

type otoDevice struct {
	ctx *oto.Context
}

func (d otoDevice) NewPlayer(r io.Reader) player { return d.ctx.NewPlayer(r) }
func (d otoDevice) Suspend() error               { return d.ctx.Suspend() }
func (d otoDevice) Resume() error                { return d.ctx.Resume() }

var (
	otoOnce sync.Once
	otoDev  device
	otoErr  error
)

// openOto creates the process wide oto context. oto allows only one, so
// later calls return the first context whatever their arguments.
func openOto(sampleRate, channels int, bufferSize time.Duration) (device, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   bufferSize,
		})
		if err != nil {
			otoErr = fmt.Errorf("sink: failed to create oto context: %w", err)
			return
		}
		<-ready
		otoDev = otoDevice{ctx: ctx}
	})
	return otoDev, otoErr
}

// OtoDriver plays a Renderer on the default audio device.
type OtoDriver struct {
	renderer   *Renderer
	bufferSize time.Duration
	log        *log.Logger

	open func(sampleRate, channels int, bufferSize time.Duration) (device, error)

	mtx    sync.Mutex
	dev    device
	player player
	closed bool
}

// NewOtoDriver returns a driver for r. The device is opened by Start.
func NewOtoDriver(r *Renderer, bufferSize time.Duration, logger *log.Logger) *OtoDriver {
	if bufferSize <= 0 {
		bufferSize = DefaultDeviceBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OtoDriver{
		renderer:   r,
		bufferSize: bufferSize,
		log:        logger,
		open:       openOto,
	}
}

// Start opens the device and begins pulling quanta from the renderer.
func (d *OtoDriver) Start() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.player != nil {
		return nil
	}

	dev, err := d.open(d.renderer.SampleRate(), d.renderer.Channels(), d.bufferSize)
	if err != nil {
		return err
	}
	d.dev = dev
	d.player = dev.NewPlayer(newQuantumReader(d.renderer))
	d.player.Play()

	d.log.Debug("output started",
		"sample_rate", d.renderer.SampleRate(), "channels", d.renderer.Channels(),
		"quantum", d.renderer.Quantum(), "device_buffer", d.bufferSize)
	return nil
}

// Suspend stops the device callback, for example while the player is
// backgrounded and drained.
func (d *OtoDriver) Suspend() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.dev == nil {
		return ErrNotStarted
	}
	if err := d.dev.Suspend(); err != nil {
		return fmt.Errorf("sink: suspend: %w", err)
	}
	return nil
}

func (d *OtoDriver) Resume() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.dev == nil {
		return ErrNotStarted
	}
	if err := d.dev.Resume(); err != nil {
		return fmt.Errorf("sink: resume: %w", err)
	}
	return nil
}

// Close stops playback. The oto context itself lives for the rest of the
// process and is only suspended.
func (d *OtoDriver) Close() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.player == nil {
		return nil
	}

	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	if serr := d.dev.Suspend(); err == nil && serr != nil {
		err = serr
	}
	if err != nil {
		return fmt.Errorf("sink: close: %w", err)
	}
	return nil
}

// quantumReader renders whole quanta as float32 little endian bytes and
// hands them out in whatever sizes the device asks for.
type quantumReader struct {
	r       *Renderer
	samples []float32
	buf     []byte
	off     int
}

func newQuantumReader(r *Renderer) *quantumReader {
	n := r.Quantum() * r.Channels()
	q := &quantumReader{
		r:       r,
		samples: make([]float32, n),
		buf:     make([]byte, n*4),
	}
	q.off = len(q.buf)
	return q
}

func (q *quantumReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if q.off == len(q.buf) {
			q.r.RenderQuantum(q.samples)
			for i, v := range q.samples {
				binary.LittleEndian.PutUint32(q.buf[i*4:], math.Float32bits(v))
			}
			q.off = 0
		}
		c := copy(p[n:], q.buf[q.off:])
		q.off += c
		n += c
	}
	return n, nil
}
