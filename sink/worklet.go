// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"math"
	"sync/atomic"

	"github.com/ik5/audplay/ringbuffer"
)

// DefaultQuantum is the number of frames rendered per Process call.
const DefaultQuantum = 128

// Worklet is the real-time consumer of a ring buffer. Process is called
// from the audio callback once per render quantum; every other method may be
// called from any goroutine.
type Worklet struct {
	quantum int

	next  atomic.Pointer[Session]
	state atomic.Int32

	updates chan struct{}

	// Owned by the goroutine calling Process.
	session     *Session
	pausing     bool
	pauseAfter  int64
	accumulated int64
	lastReport  int64
}

func NewWorklet(quantum int) (*Worklet, error) {
	if quantum <= 0 {
		return nil, ErrInvalidQuantum
	}
	return &Worklet{
		quantum: quantum,
		updates: make(chan struct{}, 1),
	}, nil
}

func (w *Worklet) Quantum() int { return w.quantum }

// Post hands s to the worklet. It replaces the current session at the
// start of the next quantum.
func (w *Worklet) Post(s Session) {
	w.next.Store(&s)
}

func (w *Worklet) State() State { return State(w.state.Load()) }

// TimeUpdates delivers a notification whenever about a tenth of a second
// has been played since the last one. Notifications are dropped while the
// previous one is unread.
func (w *Worklet) TimeUpdates() <-chan struct{} { return w.updates }

// Buffered is the number of frames ready to play. Like Process it must be
// called from the render goroutine.
func (w *Worklet) Buffered() int {
	s := w.session
	if n := w.next.Load(); n != nil {
		s = n
	}
	if s == nil || s.Buffer == nil {
		return 0
	}
	return s.Buffer.Readable()
}

// Process fills out, one slice per channel of Quantum frames, and reports
// whether any of it came from the buffer. Every failure renders silence.
func (w *Worklet) Process(out [][]float32) (audible bool) {
	defer func() {
		if recover() != nil {
			silence(out)
			audible = false
		}
	}()

	if s := w.next.Swap(nil); s != nil {
		w.attach(s)
	}

	s := w.session
	if s == nil || s.Buffer == nil {
		silence(out)
		return false
	}
	buf := s.Buffer
	if buf.IsPaused() {
		w.pausing = false
		w.state.Store(int32(StatePaused))
		silence(out)
		return false
	}
	if !w.shaped(out, s) {
		silence(out)
		return false
	}

	switch req := buf.TakePauseRequest(); {
	case req > 0:
		w.pausing = true
		w.pauseAfter = req
		w.accumulated = 0
	case req < 0:
		w.pausing = false
	}

	gain := float32(1)
	if w.pausing {
		if w.accumulated >= w.pauseAfter {
			w.pause(buf)
			silence(out)
			return false
		}
		curve := FadeOutCurve()
		gain = curve[int(math.Round(float64(w.accumulated)/float64(w.pauseAfter)*(CurvePoints-1)))]
		w.state.Store(int32(StatePendingPause))
	} else {
		w.state.Store(int32(StatePlaying))
	}

	n := buf.Read(out, w.quantum)
	if n < 0 {
		silence(out)
		return false
	}
	for c := range out {
		clear(out[c][n:w.quantum])
	}
	frame := buf.AdvanceCurrentFrame(n)

	if w.pausing {
		for c := range out {
			for i := range out[c][:n] {
				out[c][i] *= gain
			}
		}
		w.accumulated += int64(w.quantum)
		if w.accumulated >= w.pauseAfter {
			w.pause(buf)
		}
	}

	backgrounded := s.Background || buf.IsBackgrounded()
	if n < w.quantum && backgrounded {
		w.pause(buf)
	}
	if !backgrounded {
		w.reportTime(frame, s.SampleRate)
	}
	return n > 0
}

func (w *Worklet) attach(s *Session) {
	w.session = s
	w.pausing = false
	w.accumulated = 0
	w.lastReport = 0
	switch {
	case s.Buffer == nil:
		w.state.Store(int32(StateNoSession))
	case s.Buffer.IsPaused():
		w.lastReport = s.Buffer.CurrentFrame()
		w.state.Store(int32(StatePaused))
	default:
		w.lastReport = s.Buffer.CurrentFrame()
		w.state.Store(int32(StatePlaying))
	}
}

func (w *Worklet) shaped(out [][]float32, s *Session) bool {
	if len(out) != s.Channels || s.Buffer.Channels() != s.Channels {
		return false
	}
	for _, ch := range out {
		if len(ch) != w.quantum {
			return false
		}
	}
	return true
}

func (w *Worklet) pause(buf *ringbuffer.Consumer) {
	buf.SetPaused()
	w.pausing = false
	w.state.Store(int32(StatePaused))
}

func (w *Worklet) reportTime(frame int64, sampleRate int) {
	elapsed := frame - w.lastReport
	if elapsed < 0 {
		elapsed += ringbuffer.MaxFrame
	}
	if float64(elapsed) <= 0.1*float64(sampleRate) {
		return
	}
	w.lastReport = frame
	select {
	case w.updates <- struct{}{}:
	default:
	}
}

func silence(out [][]float32) {
	for _, ch := range out {
		clear(ch)
	}
}
