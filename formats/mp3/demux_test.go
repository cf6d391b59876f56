// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/internal/audiotest"
)

const frameDuration = 1152.0 / 44100

func viewOf(b []byte) *fileview.View {
	return fileview.New(bytes.NewReader(b), int64(len(b)))
}

func TestDemux_CBR(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{Frames: 200})
	meta, err := Demux(context.Background(), viewOf(f.Data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}

	if meta.VBR {
		t.Error("VBR = true, want false")
	}
	if meta.DataStart != 0 || meta.DataEnd != int64(len(f.Data)) {
		t.Errorf("data = [%d, %d), want [0, %d)", meta.DataStart, meta.DataEnd, len(f.Data))
	}
	if meta.SampleRate != 44100 || meta.Channels != 2 || meta.SamplesPerFrame != 1152 {
		t.Errorf("rate, channels, spf = %d, %d, %d", meta.SampleRate, meta.Channels, meta.SamplesPerFrame)
	}
	if meta.EncoderDelay != 576 || meta.PaddingStartFrame != -1 {
		t.Errorf("EncoderDelay, PaddingStartFrame = %d, %d, want 576, -1", meta.EncoderDelay, meta.PaddingStartFrame)
	}
	wantDuration := float64(200*417*8) / 128000
	if math.Abs(meta.Duration-wantDuration) > 1e-9 {
		t.Errorf("Duration = %v, want %v", meta.Duration, wantDuration)
	}
	if math.Abs(meta.AverageFrameSize-417.959) > 0.001 {
		t.Errorf("AverageFrameSize = %v, want ≈417.959", meta.AverageFrameSize)
	}
}

func TestDemux_ID3AndJunk(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{Frames: 200, ID3: 300})
	// A stray sync word that is not followed by another frame.
	data := slices.Concat(f.Data[:310], []byte{0xff, 0xfb, 0x90, 0x00, 1, 2, 3}, f.Data[310:])

	meta, err := Demux(context.Background(), viewOf(data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}
	if meta.DataStart != 317 {
		t.Errorf("DataStart = %d, want 317", meta.DataStart)
	}
}

func TestDemux_ID3v1Trailer(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{Frames: 200})
	tag := make([]byte, 128)
	copy(tag, "TAG")
	data := slices.Concat(f.Data, tag)

	meta, err := Demux(context.Background(), viewOf(data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}
	if meta.DataEnd != int64(len(f.Data)) {
		t.Errorf("DataEnd = %d, want %d", meta.DataEnd, len(f.Data))
	}
}

func TestDemux_Xing(t *testing.T) {
	t.Parallel()

	toc := make([]byte, 100)
	for i := range toc {
		toc[i] = byte(i * 255 / 99)
	}
	f := audiotest.MP3(audiotest.MP3Options{
		Frames:   300,
		BitRates: []int{128000, 192000},
		Xing: &audiotest.XingOptions{
			Frames:         300,
			Bytes:          1000,
			TOC:            toc,
			Quality:        true,
			LAME:           true,
			EncoderDelay:   1105,
			EncoderPadding: 1200,
		},
	})

	meta, err := Demux(context.Background(), viewOf(f.Data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}

	if !meta.VBR {
		t.Error("VBR = false, want true")
	}
	if meta.DataStart != f.DataStart {
		t.Errorf("DataStart = %d, want %d", meta.DataStart, f.DataStart)
	}
	if meta.Frames != 300 {
		t.Errorf("Frames = %d, want 300", meta.Frames)
	}
	if math.Abs(meta.Duration-300*frameDuration) > 1e-9 {
		t.Errorf("Duration = %v, want %v", meta.Duration, 300*frameDuration)
	}
	if !bytes.Equal(meta.TOC, toc) {
		t.Error("TOC does not match the tag")
	}
	if meta.EncoderDelay != 1105 {
		t.Errorf("EncoderDelay = %d, want 1105", meta.EncoderDelay)
	}
	// 1200 - 529 = 671 samples of padding fall in the last frame.
	if meta.EncoderPadding != 671 {
		t.Errorf("EncoderPadding = %d, want 671", meta.EncoderPadding)
	}
	if meta.PaddingStartFrame != 300-1-1 {
		t.Errorf("PaddingStartFrame = %d, want 298", meta.PaddingStartFrame)
	}
	if meta.SeekTable != nil {
		t.Error("SeekTable built for a stream with a TOC")
	}
}

func TestDemux_InfoIsCBR(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{
		Frames: 200,
		Xing:   &audiotest.XingOptions{Info: true, Frames: 200},
	})

	meta, err := Demux(context.Background(), viewOf(f.Data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}
	if meta.VBR {
		t.Error("VBR = true for Info tag, want false")
	}
	if meta.DataStart != f.DataStart || meta.Frames != 200 {
		t.Errorf("DataStart, Frames = %d, %d, want %d, 200", meta.DataStart, meta.Frames, f.DataStart)
	}
}

func TestDemux_VBRI(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{
		Frames:   200,
		BitRates: []int{128000, 160000},
		VBRI:     &audiotest.VBRIOptions{FramesPerEntry: 10},
	})

	meta, err := Demux(context.Background(), viewOf(f.Data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}

	if !meta.VBR || meta.EncoderDelay != 1159 {
		t.Errorf("VBR, EncoderDelay = %v, %d, want true, 1159", meta.VBR, meta.EncoderDelay)
	}
	if meta.DataStart != f.DataStart {
		t.Errorf("DataStart = %d, want %d", meta.DataStart, f.DataStart)
	}

	table := meta.SeekTable
	if table == nil || !table.FromMetadata {
		t.Fatalf("SeekTable = %+v, want table from metadata", table)
	}
	if table.Frames != 200 || table.FramesPerEntry != 10 || len(table.Table) != 21 {
		t.Fatalf("table frames, fpe, len = %d, %d, %d, want 200, 10, 21",
			table.Frames, table.FramesPerEntry, len(table.Table))
	}
	for e, off := range table.Table[:20] {
		if off != f.FrameOffsets[e*10] {
			t.Errorf("Table[%d] = %d, want %d", e, off, f.FrameOffsets[e*10])
		}
	}
}

func TestDemux_VBRScan(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{Frames: 150, BitRates: []int{128000, 192000, 320000}})

	meta, err := Demux(context.Background(), viewOf(f.Data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}
	if !meta.VBR {
		t.Fatal("VBR = false, want true")
	}
	if meta.Frames != 150 {
		t.Errorf("Frames = %d, want 150", meta.Frames)
	}
	if meta.SeekTable == nil || meta.SeekTable.Frames != 150 {
		t.Fatalf("SeekTable = %+v, want 150 scanned frames", meta.SeekTable)
	}
	if math.Abs(meta.Duration-150*frameDuration) > 1e-9 {
		t.Errorf("Duration = %v, want %v", meta.Duration, 150*frameDuration)
	}
}

func TestDemux_Wrapped(t *testing.T) {
	t.Parallel()

	f := audiotest.MP3(audiotest.MP3Options{Frames: 200})

	fmtBody := make([]byte, 30)
	binary.LittleEndian.PutUint16(fmtBody[0:], waveFormatMPEGLayer3)
	binary.LittleEndian.PutUint16(fmtBody[2:], 2)
	binary.LittleEndian.PutUint32(fmtBody[4:], 44100)
	binary.LittleEndian.PutUint32(fmtBody[8:], 16000)
	binary.LittleEndian.PutUint16(fmtBody[12:], 1)
	binary.LittleEndian.PutUint16(fmtBody[16:], 12)
	binary.LittleEndian.PutUint16(fmtBody[24:], 417)
	binary.LittleEndian.PutUint16(fmtBody[26:], 1)
	binary.LittleEndian.PutUint16(fmtBody[28:], 1393)

	var data []byte
	data = append(data, "RIFF"...)
	data = binary.LittleEndian.AppendUint32(data, 0)
	data = append(data, "WAVE"...)
	data = append(data, "fmt "...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(fmtBody)))
	data = append(data, fmtBody...)
	data = append(data, "fact"...)
	data = binary.LittleEndian.AppendUint32(data, 4)
	data = binary.LittleEndian.AppendUint32(data, 200*1152)
	data = append(data, "data"...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(f.Data)))
	start := len(data)
	data = append(data, f.Data...)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-8))

	meta, err := Demux(context.Background(), viewOf(data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}
	if meta.DataStart != int64(start) || meta.DataEnd != int64(len(data)) {
		t.Errorf("data = [%d, %d), want [%d, %d)", meta.DataStart, meta.DataEnd, start, len(data))
	}
	if meta.EncoderDelay != 1393 || meta.AverageFrameSize != 417 || meta.BitRate != 128000 {
		t.Errorf("delay, avg, bitrate = %d, %v, %d", meta.EncoderDelay, meta.AverageFrameSize, meta.BitRate)
	}
	if math.Abs(meta.Duration-200*frameDuration) > 1e-9 {
		t.Errorf("Duration = %v, want %v", meta.Duration, 200*frameDuration)
	}
}

func TestDemux_Errors(t *testing.T) {
	t.Parallel()

	short := audiotest.MP3(audiotest.MP3Options{Frames: 50})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"no frames", bytes.Repeat([]byte("not an mp3 "), 1000), ErrNoFrames},
		{"too short", short.Data, ErrTrackTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Demux(context.Background(), viewOf(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Demux() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDemux_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := audiotest.MP3(audiotest.MP3Options{Frames: 200})
	if _, err := Demux(ctx, viewOf(f.Data)); !errors.Is(err, context.Canceled) {
		t.Errorf("Demux() error = %v, want %v", err, context.Canceled)
	}
}
