// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mewkiz/flac"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
)

// frameOverhead covers a frame header, subframe headers and the CRC.
const frameOverhead = 64

// Format demuxes native FLAC streams.
type Format struct{}

func (Format) Name() metadata.CodecName { return metadata.CodecFLAC }

func (Format) NewCodec() decoder.Codec { return NewCodec() }

func (Format) Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	return Demux(ctx, view)
}

// Demux walks the metadata blocks and parses STREAMINFO with mewkiz/flac.
// The signature and all metadata blocks become TrackMetadata.Header.
func Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	sig, err := view.Block(ctx, 0, 4)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	if string(sig) != "fLaC" {
		return nil, ErrNotFlacFile
	}

	offset := int64(4)
	for {
		b, err := view.Block(ctx, offset, 4)
		if err != nil {
			return nil, fmt.Errorf("flac: %w", err)
		}
		if len(b) < 4 {
			return nil, ErrTruncatedHeader
		}
		last := b[0]&0x80 != 0
		offset += 4 + (int64(b[1])<<16 | int64(b[2])<<8 | int64(b[3]))
		if offset > view.Size() {
			return nil, ErrTruncatedHeader
		}
		if last {
			break
		}
	}

	header := make([]byte, offset)
	if _, err := view.ReadAt(ctx, header, 0); err != nil {
		return nil, err
	}
	stream, err := flac.New(bytes.NewReader(header))
	if err != nil {
		return nil, fmt.Errorf("flac: stream info: %w", err)
	}
	info := stream.Info

	if info.NSamples == 0 {
		return nil, ErrUnknownLength
	}
	duration := float64(info.NSamples) / float64(info.SampleRate)
	if duration < metadata.MinimumDuration {
		return nil, fmt.Errorf("%w: %.2fs", ErrTrackTooShort, duration)
	}

	channels := int(info.NChannels)
	bps := int(info.BitsPerSample)
	maxFrame := int(info.FrameSizeMax)
	if maxFrame == 0 {
		// Verbatim subframes, one extra bit for a side channel.
		maxFrame = int(info.BlockSizeMax)*channels*(bps+1)/8 + frameOverhead
	}

	meta := &metadata.TrackMetadata{
		Codec:           metadata.CodecFLAC,
		Duration:        duration,
		SampleRate:      int(info.SampleRate),
		Channels:        channels,
		SamplesPerFrame: int(info.BlockSizeMax),
		Frames:          int(info.NSamples),
		BitDepth:        bps,
		DataStart:       offset,
		DataEnd:         view.Size(),
		MaxFrameSize:    maxFrame,
		Header:          header,
	}
	meta.BitRate = int(float64(meta.DataSize()*8) / duration)
	meta.MaxByteSizePerSample = float64(maxFrame) / float64(max(1, info.BlockSizeMin))
	return meta, nil
}
