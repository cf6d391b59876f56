// SPDX-License-Identifier: EPL-2.0

// Package mp3 demuxes and decodes MPEG audio layer III.
//
// Demux finds the first frame (after any ID3v2 tag, or inside a RIFF/WAVE
// wrapper) and collects what seeking needs:
//
//   - a Xing or Info tag: frame count, 100 entry TOC, and the LAME encoder
//     delay and padding
//   - a VBRI tag: frame count and a byte offset table
//   - neither, CBR: duration from the bitrate
//   - neither, VBR: every frame header is scanned into a seek table
//
// Tracks shorter than metadata.MinimumDuration fail with ErrTrackTooShort.
//
// # Decoding
//
// Codec wraps github.com/hajimehoshi/go-mp3. Frames are fed one at a time,
// so the caller can hand it arbitrary byte blocks and seek by dropping the
// codec state:
//
//	meta, err := mp3.Demux(ctx, view)
//	codec := mp3.NewCodec()
//	err = codec.Start(meta)
//	n, samples, err := codec.Decode(block, samples[:0])
//
// go-mp3 always produces stereo; mono streams keep the left channel.
package mp3
