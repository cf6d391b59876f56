// SPDX-License-Identifier: EPL-2.0

// Package audio provides the block processing stages of the playback
// pipeline.
//
// Every stage works on interleaved float32 blocks, owns its output buffer
// and reuses it between calls:
//   - Resampler converts the sample rate of a stream with cubic
//     interpolation
//   - ChannelMixer converts the channel count of a block
//   - LoudnessAnalyzer measures K-weighted loudness and derives a
//     normalization gain
//
// # Resampling
//
// A Resampler keeps a short history between blocks, so a stream must be
// fed in order and finished with Drain:
//
//	r, _ := audio.NewResampler(2, 44100, 48000)
//	r.Start()
//	for block := range blocks {
//	    out, err := r.Resample(block)
//	    ...
//	}
//	tail, err := r.Drain()
//
// The number of output frames does not depend on how the input is split
// into blocks. When both rates are equal the block is returned unchanged.
//
// # Channel Mixing
//
// ChannelMixer averages all channels when folding down to mono and
// duplicates a mono channel when spreading out. 5.1 is folded to stereo
// with the centre and surrounds at -3 dB. Any other layout keeps the
// leading channels it shares with the output and leaves the rest silent.
//
// # Loudness
//
// LoudnessAnalyzer follows ITU-R BS.1770. The gain targets -18 LUFS, never
// boosts by more than 12 dB and never lifts the stream peak above full
// scale. Once enough history has been measured the gain is established and
// callers may keep it for the rest of the stream:
//
//	if !a.HasEstablishedGain() {
//	    gain = a.Loudness(block, frames)
//	}
//	a.ApplyGain(block, frames, gain)
//
// # Sample Format
//
// Samples are float32 in the range [-1.0, 1.0]; 0.0 is silence.
package audio
