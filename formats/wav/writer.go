// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/audplay/utils"
)

// Writer encodes interleaved float32 samples as integer PCM WAV. The
// header sizes are patched on Close, so the destination must seek.
type Writer struct {
	enc      *gowav.Encoder
	buf      *goaudio.IntBuffer
	channels int
	bitDepth int
	frames   int
}

// NewWriter starts a WAV stream on w. bitDepth is 8, 16, 24 or 32.
func NewWriter(w io.WriteSeeker, sampleRate, channels, bitDepth int) (*Writer, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, ErrUnsupportedWavLayout
	}

	return &Writer{
		enc: gowav.NewEncoder(w, sampleRate, bitDepth, channels, formatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		channels: channels,
		bitDepth: bitDepth,
	}, nil
}

// Write appends whole frames from samples. A trailing partial frame is
// dropped.
func (w *Writer) Write(samples []float32) error {
	n := len(samples) - len(samples)%w.channels
	if n == 0 {
		return nil
	}

	data := w.buf.Data[:0]
	for _, s := range samples[:n] {
		if w.bitDepth == 8 {
			// go-audio writes 8-bit samples as given; WAV wants offset binary.
			data = append(data, utils.FloatToPCM(s, 8)+128)
			continue
		}
		data = append(data, utils.FloatToPCM(s, w.bitDepth))
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	w.frames += n / w.channels
	return nil
}

// Frames written so far.
func (w *Writer) Frames() int { return w.frames }

// Close finalizes the headers. It does not close the destination.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return nil
}
