// SPDX-License-Identifier: EPL-2.0

package mp3

import "errors"

var (
	ErrNoFrames        = errors.New("no MP3 frames found")
	ErrTrackTooShort   = errors.New("track shorter than minimum duration")
	ErrBadVBRITable    = errors.New("unsupported VBRI table entry size")
	ErrNotWrappedMP3   = errors.New("RIFF file does not carry MP3 data")
	ErrUnexpectedFrame = errors.New("decoder returned a short frame")
)
