// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gowav "github.com/go-audio/wav"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/formats/pcm"
	"github.com/ik5/audplay/metadata"
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xfffe
)

// Format demuxes RIFF/WAVE files holding integer or float PCM.
type Format struct{}

func (Format) Name() metadata.CodecName { return metadata.CodecPCM }

func (Format) NewCodec() decoder.Codec { return pcm.New() }

// Demux reads the fmt chunk and locates the data chunk.
func (Format) Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := view.Section()
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrNotWavFile
	}
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}

	var float bool
	switch d.WavAudioFormat {
	case formatPCM, formatExtensible:
	case formatFloat:
		float = true
	default:
		return nil, fmt.Errorf("%w: format tag %#x", ErrCompressedWav, d.WavAudioFormat)
	}

	bitDepth := int(d.BitDepth)
	channels := int(d.NumChans)
	sampleRate := int(d.SampleRate)
	if channels == 0 || sampleRate == 0 {
		return nil, ErrUnsupportedWavLayout
	}
	if bitDepth%8 != 0 || bitDepth == 0 || bitDepth > 64 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}
	dataStart, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	tag, err := view.Block(ctx, dataStart-8, 4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(tag, []byte("data")) {
		return nil, fmt.Errorf("%w: data chunk not found", ErrUnsupportedWavLayout)
	}

	blockAlign := channels * bitDepth / 8
	dataEnd := min(dataStart+int64(d.PCMSize), view.Size())
	frames := (dataEnd - dataStart) / int64(blockAlign)

	return &metadata.TrackMetadata{
		Codec:                metadata.CodecPCM,
		Duration:             float64(frames) / float64(sampleRate),
		SampleRate:           sampleRate,
		Channels:             channels,
		SamplesPerFrame:      1,
		Frames:               int(frames),
		BitRate:              sampleRate * blockAlign * 8,
		DataStart:            dataStart,
		DataEnd:              dataStart + frames*int64(blockAlign),
		MaxByteSizePerSample: float64(blockAlign),
		BitDepth:             bitDepth,
		BlockAlign:           blockAlign,
		Float:                float,
		Unsigned:             !float && bitDepth == 8,
	}, nil
}
