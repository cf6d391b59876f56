// SPDX-License-Identifier: EPL-2.0

package metadata

import (
	"context"
	"math"

	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/internal/mpeg"
)

const scanBlockSize = 16384

// SeekTable maps MP3 frame indexes to byte offsets.
type SeekTable struct {
	Frames         int
	FilledUntil    float64 // seconds covered by Table
	Table          []int64
	LastFrameSize  int
	FramesPerEntry int
	// FromMetadata marks a table decoded from a VBRI header rather than
	// scanned from the frames themselves.
	FromMetadata bool
}

// NewSeekTable returns an empty table with one frame per entry.
func NewSeekTable() *SeekTable {
	return &SeekTable{
		Table:          make([]int64, 0, 128),
		FramesPerEntry: 1,
	}
}

// ClosestFrameOf snaps frame to the table granularity.
func (t *SeekTable) ClosestFrameOf(frame int) int {
	fpe := max(1, t.FramesPerEntry)
	frame = min(t.Frames, frame)
	return int(math.Round(float64(frame)/float64(fpe))) * fpe
}

// OffsetOfFrame returns the byte offset of the entry closest to frame and
// the frame that entry starts. A frame past the end of a short table maps
// to its last entry. ok is false when the table is empty.
func (t *SeekTable) OffsetOfFrame(frame int) (offset int64, at int, ok bool) {
	if len(t.Table) == 0 {
		return 0, 0, false
	}
	fpe := max(1, t.FramesPerEntry)
	idx := t.ClosestFrameOf(frame) / fpe
	idx = min(max(idx, 0), len(t.Table)-1)
	return t.Table[idx], idx * fpe, true
}

// FillUntil scans frame headers forward from the last known frame until the
// table covers at least seconds of audio or the data ends. A table decoded
// from metadata is never extended.
func (t *SeekTable) FillUntil(ctx context.Context, seconds float64, meta *TrackMetadata, view *fileview.View) error {
	if t.FromMetadata || t.FilledUntil >= seconds {
		return nil
	}

	maxFrames := int(math.Ceil(seconds * float64(meta.SampleRate) / float64(meta.FrameSamples())))

	frames := t.Frames
	offset := meta.DataStart
	if frames > 0 {
		offset = t.Table[frames-1] + int64(t.LastFrameSize)
	}
	end := meta.DataEnd

	for offset+4 <= end && frames < maxFrames {
		block, err := view.Block(ctx, offset, scanBlockSize)
		if err != nil {
			t.commit(frames, meta)
			return err
		}
		if len(block) < 4 {
			break
		}

		i := 0
		for i+4 <= len(block) && frames < maxFrames && offset+int64(i)+4 <= end {
			h, ok := mpeg.ParseAt(block[i:])
			if !ok {
				i++
				continue
			}
			t.Table = append(t.Table[:frames], offset+int64(i))
			frames++
			t.LastFrameSize = h.FrameSize
			i += h.FrameSize
		}
		offset += int64(i)
	}

	t.commit(frames, meta)
	return nil
}

func (t *SeekTable) commit(frames int, meta *TrackMetadata) {
	t.Frames = frames
	if meta.SampleRate > 0 {
		t.FilledUntil = float64(meta.FrameSamples()) / float64(meta.SampleRate) * float64(frames)
	}
}
