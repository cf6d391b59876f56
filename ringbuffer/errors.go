// SPDX-License-Identifier: EPL-2.0

package ringbuffer

import "errors"

var (
	ErrInvalidChannels = errors.New("channel count must be positive")
	ErrInvalidCapacity = errors.New("capacity must be positive")
	ErrChannelMismatch = errors.New("channel count does not match buffer")
)
