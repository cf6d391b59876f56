// SPDX-License-Identifier: EPL-2.0

// Package seek maps a requested play time to a file offset and a number of
// decoded frames to discard.
//
// MP3 frames depend on the bit reservoir of their predecessors, so a seek
// lands up to nine frames early and the decoder discards the pre-roll.
package seek

import (
	"context"
	"fmt"
	"math"

	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
)

// preRollFrames is how many MP3 frames before the target decoding restarts
// at, enough to refill the bit reservoir.
const preRollFrames = 9

// Resolve computes where to resume decoding so output starts at t seconds.
// For VBR MP3 without a TOC it may extend meta.SeekTable by scanning view.
func Resolve(ctx context.Context, t float64, meta *metadata.TrackMetadata, view *fileview.View) (Result, error) {
	if meta.Duration <= 0 || meta.SampleRate <= 0 {
		return Result{}, ErrInvalidMetadata
	}
	t = min(max(t, 0), meta.Duration)

	switch meta.Codec {
	case metadata.CodecMP3:
		return resolveMP3(ctx, t, meta, view)
	case metadata.CodecPCM:
		return resolvePCM(t, meta)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, meta.Codec)
	}
}

func resolveMP3(ctx context.Context, t float64, meta *metadata.TrackMetadata, view *fileview.View) (Result, error) {
	spf := meta.FrameSamples()
	sr := float64(meta.SampleRate)
	frameDuration := float64(spf) / sr

	frames := math.Floor(meta.Duration * sr / float64(spf))
	frame := int(math.Round(t / meta.Duration * frames))
	t = float64(frame) * frameDuration
	targetFrame := max(0, frame-preRollFrames)
	skip := (frame - targetFrame) * spf

	var offset int64
	switch {
	case !meta.VBR:
		offset = int64(math.Floor(float64(meta.DataStart) + float64(targetFrame)*meta.AverageFrameSize))

	case len(meta.TOC) == 100:
		frame = int(math.Floor(math.Round(float64(frame)/frames*100) / 100 * frames))
		t = float64(frame+1) * frameDuration
		skip = spf
		targetFrame = frame
		idx := min(99, int(math.Round(float64(frame)/frames*100)))
		span := float64(meta.DataEnd - meta.DataStart)
		offset = int64(math.Floor(float64(meta.DataStart) + float64(meta.TOC[idx])/256*span))

	default:
		if meta.SeekTable == nil {
			meta.SeekTable = metadata.NewSeekTable()
		}
		table := meta.SeekTable
		if err := table.FillUntil(ctx, t+frameDuration, meta, view); err != nil {
			return Result{}, fmt.Errorf("seek: fill table: %w", err)
		}

		if table.FromMetadata {
			var at int
			offset, at, _ = table.OffsetOfFrame(frame)
			frame = at
			skip = spf
			t = float64(frame+1) * frameDuration
			targetFrame = frame
			break
		}

		at := 0
		if off, entry, ok := table.OffsetOfFrame(targetFrame); ok {
			offset, at = off, entry
		} else {
			offset = meta.DataStart
		}
		// A table cut short by the end of the data cannot reach the
		// target; resume from its last entry.
		if at < targetFrame {
			targetFrame = at
			frame = min(frame, at+preRollFrames)
			t = float64(frame) * frameDuration
			skip = (frame - targetFrame) * spf
		}
	}

	if targetFrame == 0 {
		skip = meta.EncoderDelay
	}
	offset = min(max(offset, meta.DataStart), meta.DataEnd)

	return Result{
		Time:          t,
		Offset:        offset,
		SamplesToSkip: skip,
		Frame:         targetFrame,
	}, nil
}

func resolvePCM(t float64, meta *metadata.TrackMetadata) (Result, error) {
	if meta.BlockAlign <= 0 {
		return Result{}, ErrInvalidMetadata
	}
	frame := int64(math.Round(t * float64(meta.SampleRate)))
	offset := meta.DataStart + frame*int64(meta.BlockAlign)
	offset = min(max(offset, meta.DataStart), meta.DataEnd)

	return Result{
		Time:   float64(frame) / float64(meta.SampleRate),
		Offset: offset,
		Frame:  int(frame),
	}, nil
}
