// SPDX-License-Identifier: EPL-2.0

// Package pipeline is the producer side of playback.
//
// A Pipeline reads encoded blocks from a fileview.View, decodes them with a
// decoder.Context and pushes every flushed block through the resampler, the
// channel mixer and loudness normalization before writing it, planar, to a
// ring buffer:
//
//	p, err := pipeline.New(dec, view, meta, producer,
//	    pipeline.WithSampleRate(48000))
//	if err != nil {
//	    return err
//	}
//	defer p.Destroy()
//	err = p.Run(ctx)
//
// Writes that do not fit in the ring buffer wait on a timer until the
// consumer has made room, so Run keeps the buffer full while it plays.
// Every wait, read and decode call is a cancellation point.
package pipeline
