// SPDX-License-Identifier: EPL-2.0

// Package wav demuxes and writes RIFF/WAVE files.
//
// Header parsing goes through github.com/go-audio/wav. Format.Demux reports
// where the sample data lives and how it is laid out; decoding itself is
// done by the shared pcm codec, so the player can read the file in blocks
// and seek to any frame.
//
// # Supported Layouts
//
//   - integer PCM, 8 (unsigned), 16, 24 and 32 bit
//   - IEEE float, 32 and 64 bit
//   - WAVE_FORMAT_EXTENSIBLE carrying integer PCM
//   - any number of channels and any sample rate
//
// Compressed payloads (for example MP3 in a RIFF wrapper) fail with
// ErrCompressedWav; the mp3 format handles wrapped MP3 itself.
//
// # Writing
//
// Writer encodes interleaved float32 blocks through the go-audio encoder:
//
//	f, _ := os.Create("out.wav")
//	w, err := wav.NewWriter(f, 48000, 2, 16)
//	err = w.Write(block)
//	err = w.Close()
package wav
