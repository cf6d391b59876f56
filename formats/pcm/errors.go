// SPDX-License-Identifier: EPL-2.0

package pcm

import "errors"

var (
	ErrUnsupportedBitDepth = errors.New("unsupported PCM bit depth")
	ErrInvalidLayout       = errors.New("invalid PCM frame layout")
)
