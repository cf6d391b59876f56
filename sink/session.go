// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"github.com/google/uuid"

	"github.com/ik5/audplay/ringbuffer"
)

// Session attaches a ring buffer to a Worklet.
type Session struct {
	ID         uuid.UUID
	SampleRate int
	Channels   int
	Buffer     *ringbuffer.Consumer
	Background bool
}

type State int32

const (
	StateNoSession State = iota
	StatePlaying
	StatePendingPause
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no-session"
	case StatePlaying:
		return "playing"
	case StatePendingPause:
		return "pending-pause"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
