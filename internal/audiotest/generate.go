// SPDX-License-Identifier: EPL-2.0

// Package audiotest builds PCM blocks and encoded files for tests.
package audiotest

import "math"

// Waveform returns the value of sample index on channel ch.
type Waveform func(sample, ch int) float32

// Sine is a sine wave of frequency Hz at sampleRate.
func Sine(sampleRate int, frequency float64) Waveform {
	return func(sample, _ int) float32 {
		t := float64(sample) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	}
}

// Constant returns value on every channel.
func Constant(value float32) Waveform {
	return func(int, int) float32 { return value }
}

// Silence is a zero waveform.
func Silence() Waveform { return Constant(0) }

// Ramp counts frames: sample i has value i*step on every channel. Handy for
// checking ordering through buffers.
func Ramp(step float32) Waveform {
	return func(sample, _ int) float32 { return float32(sample) * step }
}

// PerChannel gives each channel its own constant value.
func PerChannel(values ...float32) Waveform {
	return func(_, ch int) float32 { return values[ch%len(values)] }
}

// Interleaved renders frames of wf.
func Interleaved(channels, frames int, wf Waveform) []float32 {
	out := make([]float32, channels*frames)
	for f := range frames {
		for c := range channels {
			out[f*channels+c] = wf(f, c)
		}
	}
	return out
}

// Planar renders frames of wf as one slice per channel.
func Planar(channels, frames int, wf Waveform) [][]float32 {
	out := make([][]float32, channels)
	for c := range channels {
		out[c] = make([]float32, frames)
		for f := range frames {
			out[c][f] = wf(f, c)
		}
	}
	return out
}

// PlanarBuffers allocates zeroed planar buffers.
func PlanarBuffers(channels, frames int) [][]float32 {
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	return out
}
