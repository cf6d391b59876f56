// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidBlockSize    = errors.New("block size must be multiple of channels")
	ErrInvalidChannels     = errors.New("channel count must be positive")
	ErrInvalidRate         = errors.New("sample rate must be positive")
	ErrResamplerNotStarted = errors.New("resampler not started")
	ErrOutOfMemory         = errors.New("block exceeds the resampler output limit")
)
