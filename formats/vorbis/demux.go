// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
)

// Format demuxes Ogg files whose first logical stream is Vorbis.
type Format struct{}

func (Format) Name() metadata.CodecName { return metadata.CodecVorbis }

func (Format) NewCodec() decoder.Codec { return NewCodec() }

func (Format) Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	return Demux(ctx, view)
}

// Demux reads the three Vorbis header packets and the granule position of
// the last page. The header pages become TrackMetadata.Header so a codec
// can be primed before any audio page.
func Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	var (
		header  []byte
		packets int
		first   []byte
	)
	for offset := int64(0); packets < 3; {
		b, err := view.Block(ctx, offset, maxPageSize)
		if err != nil {
			return nil, fmt.Errorf("vorbis: %w", err)
		}
		p, ok := parsePage(b)
		if !ok {
			if offset == 0 {
				return nil, ErrNotOggFile
			}
			return nil, ErrTruncatedHeaders
		}
		if offset == 0 {
			first = bytes.Clone(p.body)
		}
		packets += p.packetsEnded()
		header = append(header, b[:p.size]...)
		offset += int64(p.size)
	}

	// Identification header: type 1, "vorbis", version, channels, rate,
	// bitrate maximum, nominal and minimum.
	if len(first) < 30 || first[0] != 1 || string(first[1:7]) != "vorbis" {
		return nil, ErrNotVorbis
	}
	channels := int(first[11])
	sampleRate := int(binary.LittleEndian.Uint32(first[12:16]))
	nominal := int(int32(binary.LittleEndian.Uint32(first[20:24])))
	if channels == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrNotVorbis, channels, sampleRate)
	}

	samples, err := lastGranule(ctx, view)
	if err != nil {
		return nil, err
	}
	duration := float64(samples) / float64(sampleRate)
	if duration < metadata.MinimumDuration {
		return nil, fmt.Errorf("%w: %.2fs", ErrTrackTooShort, duration)
	}

	dataStart := int64(len(header))
	meta := &metadata.TrackMetadata{
		Codec:      metadata.CodecVorbis,
		Duration:   duration,
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     int(samples),
		VBR:        true,
		BitRate:    max(0, nominal),
		DataStart:  dataStart,
		DataEnd:    view.Size(),
		Header:     header,
	}
	meta.MaxByteSizePerSample = float64(meta.DataSize()) / float64(max(1, samples)) * 4
	return meta, nil
}

// lastGranule finds the final page of the file and returns its granule
// position, the total number of samples per channel.
func lastGranule(ctx context.Context, view *fileview.View) (int64, error) {
	start := max(0, view.Size()-maxPageSize)
	b, err := view.Block(ctx, start, int(view.Size()-start))
	if err != nil {
		return 0, fmt.Errorf("vorbis: %w", err)
	}

	for i := bytes.LastIndex(b, capturePattern); i >= 0; i = bytes.LastIndex(b[:i], capturePattern) {
		if p, ok := parsePage(b[i:]); ok && p.granule > 0 {
			return p.granule, nil
		}
	}
	return 0, fmt.Errorf("%w: no audio pages", ErrTrackTooShort)
}
