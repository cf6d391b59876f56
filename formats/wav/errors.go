// SPDX-License-Identifier: EPL-2.0

package wav

import "errors"

var (
	ErrNotWavFile           = errors.New("not a WAV file")
	ErrUnsupportedWavLayout = errors.New("unsupported WAV layout")
	ErrCompressedWav        = errors.New("compressed WAV data not supported")
	ErrUnsupportedBitDepth  = errors.New("unsupported WAV bit depth")
)
