// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/aiff"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/formats/pcm"
	"github.com/ik5/audplay/metadata"
)

// Format demuxes AIFF and uncompressed AIFF-C files.
type Format struct{}

func (Format) Name() metadata.CodecName { return metadata.CodecPCM }

func (Format) NewCodec() decoder.Codec { return pcm.New() }

type chunks struct {
	aifc        bool
	compression string
	ssnd        int64 // offset of the SSND chunk header, 0 if absent
	ssndSize    int64
}

// Demux reads COMM through go-audio/aiff and locates the SSND samples.
func (Format) Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := aiff.NewDecoder(view.Section())
	if !d.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	d.ReadInfo()

	format := d.Format()
	if format == nil || format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, ErrUnsupportedAiffLayout
	}

	c, err := walk(ctx, view)
	if err != nil {
		return nil, err
	}
	if c.ssnd == 0 {
		return nil, fmt.Errorf("%w: no SSND chunk", ErrUnsupportedAiffLayout)
	}

	bitDepth := int(d.BitDepth)
	var float, littleEndian bool
	if c.aifc {
		switch c.compression {
		case "NONE", "twos":
		case "sowt":
			littleEndian = true
		case "fl32", "FL32":
			float, bitDepth = true, 32
		case "fl64", "FL64":
			float, bitDepth = true, 64
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, c.compression)
		}
	}

	// Sample widths round up to whole bytes.
	bytesPerSample := (bitDepth + 7) / 8
	blockAlign := format.NumChannels * bytesPerSample

	head, err := view.Block(ctx, c.ssnd+8, 8)
	if err != nil {
		return nil, err
	}
	if len(head) < 8 {
		return nil, fmt.Errorf("%w: short SSND chunk", ErrUnsupportedAiffLayout)
	}
	dataStart := c.ssnd + 16 + int64(binary.BigEndian.Uint32(head[0:4]))
	dataEnd := min(c.ssnd+8+c.ssndSize, view.Size())
	frames := min(int64(d.NumSampleFrames), max(0, dataEnd-dataStart)/int64(blockAlign))

	return &metadata.TrackMetadata{
		Codec:                metadata.CodecPCM,
		Duration:             float64(frames) / float64(format.SampleRate),
		SampleRate:           format.SampleRate,
		Channels:             format.NumChannels,
		SamplesPerFrame:      1,
		Frames:               int(frames),
		BitRate:              format.SampleRate * blockAlign * 8,
		DataStart:            dataStart,
		DataEnd:              dataStart + frames*int64(blockAlign),
		MaxByteSizePerSample: float64(blockAlign),
		BitDepth:             bytesPerSample * 8,
		BlockAlign:           blockAlign,
		BigEndian:            !littleEndian,
		Float:                float,
	}, nil
}

func walk(ctx context.Context, view *fileview.View) (chunks, error) {
	var c chunks

	head, err := view.Block(ctx, 0, 12)
	if err != nil {
		return c, err
	}
	if len(head) < 12 || string(head[0:4]) != "FORM" {
		return c, ErrNotAiffFile
	}
	c.aifc = string(head[8:12]) == "AIFC"

	pos := int64(12)
	for pos+8 <= view.Size() {
		b, err := view.Block(ctx, pos, 8+22)
		if err != nil {
			return c, err
		}
		id := string(b[0:4])
		size := int64(binary.BigEndian.Uint32(b[4:8]))

		switch id {
		case "COMM":
			if c.aifc && len(b) >= 8+22 {
				c.compression = string(b[8+18 : 8+22])
			}
		case "SSND":
			c.ssnd, c.ssndSize = pos, size
			return c, nil
		}
		pos += 8 + size + size&1
	}
	return c, nil
}
