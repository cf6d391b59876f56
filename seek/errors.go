// SPDX-License-Identifier: EPL-2.0

package seek

import "errors"

var (
	ErrUnsupportedCodec = errors.New("seeking not supported for codec")
	ErrInvalidMetadata  = errors.New("track metadata has no duration or sample rate")
)
