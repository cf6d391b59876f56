// SPDX-License-Identifier: EPL-2.0

// Package sink is the consumer side of playback.
//
// A Worklet drains a ring buffer one render quantum at a time. It owns the
// pause handshake: when the producer requests a pause the Worklet fades out
// along FadeOutCurve and marks the buffer paused once the requested number
// of frames has played. While the buffer is backgrounded an underrun pauses
// playback instead of rendering silence indefinitely.
//
// Process is written for the audio callback. It does not allocate, block or
// log, and it renders silence instead of failing.
//
// A Renderer chains the Worklet with a FadeIn envelope and a volume and
// produces interleaved frames for a driver. Two drivers are provided:
// OtoDriver plays on the default device through oto, and RenderWAV renders
// offline into a WAV file.
package sink
