// SPDX-License-Identifier: EPL-2.0

package pipeline

import "errors"

var (
	ErrInvalidMetadata = errors.New("pipeline: track has no sample rate or channel count")
	ErrDestroyed       = errors.New("pipeline: destroyed")
)
