// SPDX-License-Identifier: EPL-2.0

package flac

import "errors"

var (
	ErrNotFlacFile     = errors.New("flac: not a flac file")
	ErrTruncatedHeader = errors.New("flac: file ends inside the metadata blocks")
	ErrUnknownLength   = errors.New("flac: stream info does not give a sample count")
	ErrTrackTooShort   = errors.New("flac: track too short")
	ErrChannelChange   = errors.New("flac: channel count changed between frames")
)
