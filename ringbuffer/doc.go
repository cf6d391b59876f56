// SPDX-License-Identifier: EPL-2.0

// Package ringbuffer implements the single-producer single-consumer planar
// PCM buffer shared between the decoding goroutine and the real-time sink.
//
// New returns two handles over the same storage. The Producer is owned by
// the pipeline goroutine and the Consumer by whichever goroutine renders
// audio. Cursors and control flags are atomics; neither side takes a lock,
// and the Consumer side never allocates.
//
//	prod, cons, err := ringbuffer.New(2, 48000)
//	n, err := prod.Write(planar, frames)
//	got := cons.Read(out, 128)
//
// # Pause requests
//
// A pause is requested by the producer and carried out by the consumer:
// RequestPause(k) asks the consumer to fade out over k frames and then mark
// the buffer paused. CancelPause withdraws a request that has not completed.
package ringbuffer
