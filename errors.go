// SPDX-License-Identifier: EPL-2.0

package audplay

import "errors"

var (
	ErrInvalidOption = errors.New("audplay: invalid option")
	ErrNoTrack       = errors.New("audplay: no track loaded")
	ErrClosed        = errors.New("audplay: player closed")
	// ErrRealtime is returned by Render on a player that drives an audio
	// device.
	ErrRealtime = errors.New("audplay: player has a realtime driver")
)
