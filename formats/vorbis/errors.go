// SPDX-License-Identifier: EPL-2.0

package vorbis

import "errors"

var (
	ErrNotOggFile       = errors.New("vorbis: not an ogg file")
	ErrNotVorbis        = errors.New("vorbis: first logical stream is not vorbis")
	ErrTruncatedHeaders = errors.New("vorbis: stream ends inside the header packets")
	ErrTrackTooShort    = errors.New("vorbis: track too short")
)
