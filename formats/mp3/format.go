// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"context"

	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
)

// Format registers MP3 with a decoder.Registry.
type Format struct{}

func (Format) Name() metadata.CodecName { return metadata.CodecMP3 }

func (Format) Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	return Demux(ctx, view)
}

func (Format) NewCodec() decoder.Codec { return NewCodec() }
