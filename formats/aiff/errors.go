// SPDX-License-Identifier: EPL-2.0

package aiff

import "errors"

var (
	// ErrNotAiffFile indicates the file is not a valid AIFF file
	ErrNotAiffFile = errors.New("not an AIFF file")

	// ErrUnsupportedCompression indicates an AIFF-C file with compressed samples
	ErrUnsupportedCompression = errors.New("unsupported AIFF-C compression")

	// ErrUnsupportedAiffLayout indicates a missing or malformed chunk
	ErrUnsupportedAiffLayout = errors.New("unsupported AIFF layout")
)
