// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/mewkiz/flac/frame"

	"github.com/ik5/audplay/internal/audiotest"
	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
)

// mockFLACStream reads fixed-size frames straight from the feed. A frame
// read past the fed bytes fails the way a starved parser would.
type mockFLACStream struct {
	r      io.Reader
	size   int
	frames int
}

func (m *mockFLACStream) ParseNext() (*frame.Frame, error) {
	b := make([]byte, m.size)
	if _, err := io.ReadFull(m.r, b); err != nil {
		return nil, err
	}
	m.frames++
	v := int32(m.frames)
	return &frame.Frame{
		Header: frame.Header{BitsPerSample: 16},
		Subframes: []*frame.Subframe{
			{Samples: []int32{v, v}},
			{Samples: []int32{-v, -v}},
		},
	}, nil
}

func mockCodec(header []byte, opens *int) *Codec {
	c := NewCodec()
	c.open = func(r io.Reader) (flacStream, error) {
		*opens++
		if _, err := io.ReadFull(r, make([]byte, len(header))); err != nil {
			return nil, err
		}
		return &mockFLACStream{r: r, size: 10}, nil
	}
	return c
}

func TestCodec_Start(t *testing.T) {
	t.Parallel()

	c := NewCodec()
	if err := c.Start(&metadata.TrackMetadata{Channels: 2}); !errors.Is(err, ErrTruncatedHeader) {
		t.Errorf("Start() error = %v, want %v", err, ErrTruncatedHeader)
	}

	err := c.Start(&metadata.TrackMetadata{Channels: 2, BitDepth: 16, SamplesPerFrame: 4096, Header: []byte("fLaC")})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if want := 4096*2*17/8 + frameOverhead; c.bound != want {
		t.Errorf("bound = %d, want %d", c.bound, want)
	}
}

func TestCodec_NeverStarves(t *testing.T) {
	t.Parallel()

	header := []byte("fLaCheader")
	// The bound is larger than the 10 byte frames, so the last frame waits
	// for Flush.
	meta := &metadata.TrackMetadata{Channels: 2, MaxFrameSize: 15, Header: header}

	var opens int
	c := mockCodec(header, &opens)
	if err := c.Start(meta); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// 10 frames of 10 bytes, handed over 3 bytes at a time.
	data := make([]byte, 100)
	var out []float32
	for len(data) > 0 {
		n, o, err := c.Decode(data[:min(3, len(data))], out)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		out = o
		data = data[n:]
	}
	if len(out) >= 10*4 {
		t.Errorf("Decode() produced %d samples before the end, want fewer than 40", len(out))
	}

	out, err := c.Flush(out)
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(out) != 10*4 {
		t.Fatalf("total samples = %d, want 40", len(out))
	}
	for i := 0; i < len(out); i += 4 {
		v := float32(i/4+1) / 32768
		if out[i] != v || out[i+1] != -v {
			t.Errorf("frame %d = %v, %v, want %v, %v", i/4, out[i], out[i+1], v, -v)
		}
	}
	if opens != 1 {
		t.Errorf("stream opened %d times, want 1", opens)
	}
}

func TestCodec_ChannelChange(t *testing.T) {
	t.Parallel()

	header := []byte("fLaC")
	var opens int
	c := mockCodec(header, &opens)
	_ = c.Start(&metadata.TrackMetadata{Channels: 1, MaxFrameSize: 10, Header: header})

	_, _, err := c.Decode(make([]byte, 30), nil)
	if !errors.Is(err, ErrChannelChange) {
		t.Errorf("Decode() error = %v, want %v", err, ErrChannelChange)
	}
}

func TestCodec_SeekRestarts(t *testing.T) {
	t.Parallel()

	header := []byte("fLaC")
	var opens int
	c := mockCodec(header, &opens)
	_ = c.Start(&metadata.TrackMetadata{Channels: 2, MaxFrameSize: 10, Header: header})

	if _, _, err := c.Decode(make([]byte, 30), nil); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := c.Seek(seek.Result{}); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if _, _, err := c.Decode(make([]byte, 30), nil); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if opens != 2 {
		t.Errorf("stream opened %d times, want 2", opens)
	}
}

func TestCodec_MewkizFLAC(t *testing.T) {
	t.Parallel()

	f := audiotest.FLAC(audiotest.FLACOptions{Frames: 300, BlockSize: 1152})
	meta, err := Demux(context.Background(), view(f.Data))
	if err != nil {
		t.Fatalf("Demux() error = %v", err)
	}

	c := NewCodec()
	if err := c.Start(meta); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var out []float32
	src := bytes.Clone(f.Data[f.DataStart:])
	for len(src) > 0 {
		n, o, err := c.Decode(src, out)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		out = o
		src = src[n:]
	}
	if out, err = c.Flush(out); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if len(out) != 300*1152*2 {
		t.Fatalf("decoded %d samples, want %d", len(out), 300*1152*2)
	}
	for _, fr := range []int{0, 1, 150, 299} {
		i := fr * 1152 * 2
		for c := range 2 {
			want := float32(audiotest.FLACValue(fr, c)) / 32768
			if out[i+c] != want {
				t.Errorf("frame %d channel %d = %v, want %v", fr, c, out[i+c], want)
			}
		}
	}
}
