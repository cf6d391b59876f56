// SPDX-License-Identifier: EPL-2.0

// Package vorbis demuxes and decodes Ogg Vorbis.
//
// Demux walks the Ogg pages holding the identification, comment and setup
// packets and reads channels and sample rate from the identification
// header. The duration comes from the granule position of the last page.
// The header pages are kept in TrackMetadata.Header.
//
// Codec decodes with github.com/jfreymuth/oggvorbis. It is primed with the
// header pages and then fed one page per Decode call:
//
//	meta, err := vorbis.Demux(ctx, view)
//	codec := vorbis.NewCodec()
//	err = codec.Start(meta)
//	n, samples, err := codec.Decode(block, samples[:0])
//
// Samples of a page are released once the following page arrives. Flush
// releases the rest at end of data.
//
// Only the first logical stream is decoded, and seeking within a track is
// not supported.
package vorbis
