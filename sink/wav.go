// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"context"
	"io"

	"github.com/ik5/audplay/formats/wav"
)

// renderBitDepth is the sample size of offline renders.
const renderBitDepth = 16

// FillFunc produces more audio for an offline render. It reports done once
// the source has nothing left to produce.
type FillFunc func(ctx context.Context) (done bool, err error)

// RenderWAV renders up to frames frames from r into a WAV stream on w,
// faster than real time. When fill is set it is called whenever less than
// a quantum is buffered, and rendering stops early once fill is done and
// the buffer has drained. A non-positive frames renders until then.
// Rendering also stops when playback pauses. It returns the number of
// frames written.
func RenderWAV(ctx context.Context, w io.WriteSeeker, r *Renderer, frames int, fill FillFunc) (int, error) {
	if frames <= 0 && fill == nil {
		return 0, nil
	}

	out, err := wav.NewWriter(w, r.SampleRate(), r.Channels(), renderBitDepth)
	if err != nil {
		return 0, err
	}

	q := r.Quantum()
	samples := make([]float32, q*r.Channels())
	done := fill == nil
	written := 0

	for frames <= 0 || written < frames {
		if err := ctx.Err(); err != nil {
			_ = out.Close()
			return written, err
		}

		for !done && r.Worklet().Buffered() < q {
			if done, err = fill(ctx); err != nil {
				_ = out.Close()
				return written, err
			}
		}
		buffered := r.Worklet().Buffered()
		if fill != nil && done && buffered == 0 {
			break
		}

		audible := r.RenderQuantum(samples)
		if !audible && stopped(r.Worklet().State()) {
			break
		}
		n := q
		if frames > 0 {
			n = min(n, frames-written)
		}
		if fill != nil && done {
			n = min(n, buffered)
		}
		if err := out.Write(samples[:n*r.Channels()]); err != nil {
			_ = out.Close()
			return written, err
		}
		written += n
	}

	if err := out.Close(); err != nil {
		return written, err
	}
	return written, nil
}

func stopped(s State) bool {
	return s == StatePaused || s == StateNoSession
}
