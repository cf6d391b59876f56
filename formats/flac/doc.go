// SPDX-License-Identifier: EPL-2.0

// Package flac demuxes and decodes native FLAC streams with
// github.com/mewkiz/flac.
//
// Demux keeps the signature and every metadata block as
// TrackMetadata.Header, and reads the sample rate, channels, bit depth
// and sample count from STREAMINFO. Codec replays the header into
// flac.New and parses frames as bytes arrive. Samples are scaled by the
// frame's bit depth into [-1, 1).
package flac
