// SPDX-License-Identifier: EPL-2.0

package sink

import "errors"

var (
	ErrInvalidQuantum = errors.New("sink: render quantum must be positive")
	ErrInvalidFormat  = errors.New("sink: sample rate and channel count must be positive")
	ErrNotStarted     = errors.New("sink: driver not started")
	ErrClosed         = errors.New("sink: driver closed")
)
