// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/internal/audiotest"
)

func viewOf(b []byte) *fileview.View {
	return fileview.New(bytes.NewReader(b), int64(len(b)))
}

func TestFormat_Demux(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		bitDepth int
	}{
		{"mono 16-bit", 1, 16},
		{"stereo 16-bit", 2, 16},
		{"stereo 24-bit", 2, 24},
		{"mono 8-bit", 1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := audiotest.AIFF(44100, tt.channels, tt.bitDepth, 4410, audiotest.Silence())
			meta, err := Format{}.Demux(context.Background(), viewOf(data))
			if err != nil {
				t.Fatalf("Demux() error = %v", err)
			}

			blockAlign := tt.channels * tt.bitDepth / 8
			if meta.SampleRate != 44100 || meta.Channels != tt.channels || meta.BitDepth != tt.bitDepth {
				t.Errorf("Demux() rate, channels, depth = %d, %d, %d, want 44100, %d, %d",
					meta.SampleRate, meta.Channels, meta.BitDepth, tt.channels, tt.bitDepth)
			}
			if meta.DataStart != 54 {
				t.Errorf("DataStart = %d, want 54", meta.DataStart)
			}
			if meta.DataEnd != 54+int64(4410*blockAlign) {
				t.Errorf("DataEnd = %d, want %d", meta.DataEnd, 54+4410*blockAlign)
			}
			if !meta.BigEndian || meta.Unsigned || meta.BlockAlign != blockAlign {
				t.Errorf("layout = big %v unsigned %v align %d, want true false %d",
					meta.BigEndian, meta.Unsigned, meta.BlockAlign, blockAlign)
			}
			if math.Abs(meta.Duration-0.1) > 1e-12 {
				t.Errorf("Duration = %v, want 0.1", meta.Duration)
			}
		})
	}
}

func TestFormat_Decode(t *testing.T) {
	t.Parallel()

	wf := audiotest.PerChannel(0.25, -0.75)
	data := audiotest.AIFF(22050, 2, 16, 100, wf)

	format := Format{}
	meta, err := format.Demux(context.Background(), viewOf(data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}

	codec := format.NewCodec()
	if err := codec.Start(meta); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, got, err := codec.Decode(data[meta.DataStart:meta.DataEnd], nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 200 {
		t.Fatalf("Decode() = %d samples, want 200", len(got))
	}
	for i, v := range got {
		want := wf(i/2, i%2)
		if math.Abs(float64(v-want)) > 1.0/16384 {
			t.Fatalf("sample %d = %v, want %v", i, v, want)
		}
	}
}

func TestFormat_DemuxInvalid(t *testing.T) {
	t.Parallel()

	_, err := Format{}.Demux(context.Background(), viewOf([]byte("This is not AIFF data, only plain text")))
	if !errors.Is(err, ErrNotAiffFile) {
		t.Errorf("Demux() error = %v, want %v", err, ErrNotAiffFile)
	}
}
