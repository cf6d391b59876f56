// SPDX-License-Identifier: EPL-2.0

// Package aiff demuxes AIFF and uncompressed AIFF-C files.
//
// The COMM chunk is read through github.com/go-audio/aiff; the SSND chunk
// is located directly so playback can start or seek at any byte. Samples
// are decoded by the shared pcm codec.
//
// Supported AIFF-C compression types are NONE, twos, sowt (little-endian),
// fl32 and fl64.
package aiff
