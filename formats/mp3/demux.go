// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/internal/mpeg"
	"github.com/ik5/audplay/metadata"
)

const (
	blockSize = 16384
	// giveUpAfter bounds the search for the first frame.
	giveUpAfter = 5 << 20
	// maxHeaders is how many headers are compared to detect VBR.
	maxHeaders = 5

	defaultEncoderDelay = 576
	vbriEncoderDelay    = 1159

	// fullScan is the FillUntil horizon that covers any track.
	fullScan = 30 * 24 * 3600

	waveFormatMPEGLayer3 = 0x55
)

// reader serves small reads out of fileview blocks.
type reader struct {
	ctx  context.Context
	view *fileview.View
	err  error
}

// at returns n bytes at off, or nil past the end of the file or after an
// error.
func (r *reader) at(off int64, n int) []byte {
	if r.err != nil || off < 0 || off+int64(n) > r.view.Size() {
		return nil
	}
	b, err := r.view.Block(r.ctx, off, max(n, blockSize))
	if err != nil {
		r.err = err
		return nil
	}
	if len(b) < n {
		return nil
	}
	return b[:n]
}

func (r *reader) u32(off int64) (uint32, bool) {
	b := r.at(off, 4)
	if b == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

func (r *reader) tag(off int64, s string) bool {
	return string(r.at(off, len(s))) == s
}

// Demux locates the audio frames of an MP3 file and reads whatever seeking
// information the encoder left: Xing/Info TOC, LAME delay and padding, or a
// VBRI table. VBR streams without either are scanned completely.
func Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error) {
	r := &reader{ctx: ctx, view: view}

	var offset int64
	if h := r.at(0, 10); h != nil && string(h[:3]) == "ID3" {
		footer := int64(h[5]>>4&1) * 10
		size := int64(h[6])<<21 | int64(h[7])<<14 | int64(h[8])<<7 | int64(h[9])
		offset = size + 10 + footer
	}

	if r.tag(offset, "RIFF") && r.tag(offset+8, "WAVE") {
		return demuxWrapped(r, offset)
	}

	meta, err := scanHeaders(r, offset)
	if err != nil {
		return nil, err
	}

	if meta.Duration == 0 {
		spf := float64(meta.SamplesPerFrame)
		if !meta.VBR {
			meta.Duration = float64(meta.DataSize()*8) / float64(meta.BitRate)
			meta.Frames = int(float64(meta.SampleRate) * meta.Duration / spf)
		} else {
			meta.SeekTable = metadata.NewSeekTable()
			if err := meta.SeekTable.FillUntil(ctx, fullScan, meta, view); err != nil {
				return nil, fmt.Errorf("mp3: scan frames: %w", err)
			}
			meta.Frames = meta.SeekTable.Frames
			meta.Duration = float64(meta.Frames) * spf / float64(meta.SampleRate)
		}
	}

	if meta.Duration < metadata.MinimumDuration {
		return nil, fmt.Errorf("%w: %.2fs", ErrTrackTooShort, meta.Duration)
	}
	return meta, nil
}

func newMetadata(h mpeg.Header, offset, end int64) *metadata.TrackMetadata {
	return &metadata.TrackMetadata{
		Codec:                metadata.CodecMP3,
		SampleRate:           h.SampleRate,
		Channels:             h.Channels,
		SamplesPerFrame:      h.SamplesPerFrame,
		BitRate:              h.BitRate,
		DataStart:            offset,
		DataEnd:              end,
		AverageFrameSize:     mpeg.AverageFrameSize(h.BitRate, h.SampleRate, h.LSF),
		EncoderDelay:         defaultEncoderDelay,
		PaddingStartFrame:    -1,
		LSF:                  h.LSF,
		MaxByteSizePerSample: mpeg.MaxBytesPerSample(h.SampleRate, h.LSF),
	}
}

// scanHeaders finds the first frame, confirmed by the header that follows it, and
// compares up to maxHeaders headers to tell CBR from VBR.
func scanHeaders(r *reader, offset int64) (*metadata.TrackMetadata, error) {
	end := r.view.Size()
	if r.tag(end-128, "TAG") {
		end -= 128
	}
	limit := min(end, offset+giveUpAfter)

	var meta *metadata.TrackMetadata
	headers := 0
	for pos := offset; pos+4 <= limit && headers < maxHeaders; {
		word, ok := r.u32(pos)
		if !ok {
			break
		}
		h, ok := mpeg.Parse(word)
		if !ok {
			pos++
			continue
		}

		if meta == nil {
			next, _ := r.u32(pos + int64(h.FrameSize))
			if !mpeg.ProbablyHeader(next) && !r.tag(pos+36, "VBRI") {
				pos++
				continue
			}
			meta = newMetadata(h, pos, end)
			done, err := readInfoFrame(r, meta, h, pos)
			if err != nil || done {
				return meta, err
			}
		} else if h.BitRate != meta.BitRate {
			meta.BitRate = h.BitRate
			meta.VBR = true
		}

		headers++
		pos += int64(h.FrameSize)
	}

	if r.err != nil {
		return nil, fmt.Errorf("mp3: %w", r.err)
	}
	if meta == nil {
		return nil, ErrNoFrames
	}
	return meta, nil
}

// readInfoFrame parses a Xing, Info or VBRI tag in the frame at pos. When
// one is present the tag frame carries no audio, so DataStart moves to the
// frame after it.
func readInfoFrame(r *reader, meta *metadata.TrackMetadata, h mpeg.Header, pos int64) (bool, error) {
	xing := pos + 4 + int64(h.SideInfoSize())
	switch {
	case r.tag(xing, "Xing"), r.tag(xing, "Info"):
		readXing(r, meta, xing)
	case r.tag(pos+36, "VBRI"):
		if err := readVBRI(r, meta, pos+36); err != nil {
			return true, err
		}
	default:
		return false, nil
	}

	meta.DataStart = pos + int64(h.FrameSize)
	return true, r.err
}

func readXing(r *reader, meta *metadata.TrackMetadata, p int64) {
	if r.tag(p, "Xing") {
		meta.VBR = true
	}
	p += 4
	flags, _ := r.u32(p)
	p += 4

	frames := -1
	if flags&0x1 != 0 {
		n, _ := r.u32(p)
		frames = int(n)
		meta.Frames = frames
		meta.Duration = float64(frames*meta.SamplesPerFrame) / float64(meta.SampleRate)
		p += 4
	}
	if flags&0x2 != 0 {
		p += 4
	}
	if flags&0x4 != 0 {
		if toc := r.at(p, 100); toc != nil {
			meta.TOC = append([]byte(nil), toc...)
		}
		p += 100
	}
	if flags&0x8 != 0 {
		p += 4
	}

	if !r.tag(p, "LAME") {
		return
	}
	b := r.at(p+21, 3)
	if b == nil {
		return
	}
	v := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	meta.EncoderDelay = v >> 12
	padding := v & 0xfff
	if frames != -1 && padding > 0 {
		padding = max(0, padding-mpeg.DecoderDelay)
		meta.PaddingStartFrame = frames - int(math.Ceil(float64(padding)/float64(meta.SamplesPerFrame))) - 1
		meta.EncoderPadding = padding
	}
}

func readVBRI(r *reader, meta *metadata.TrackMetadata, p int64) error {
	b := r.at(p, 26)
	if b == nil {
		return fmt.Errorf("%w: truncated header", ErrBadVBRITable)
	}
	frames := int(binary.BigEndian.Uint32(b[14:18]))
	entries := int(binary.BigEndian.Uint16(b[18:20]))
	scale := int64(binary.BigEndian.Uint16(b[20:22]))
	sizePerEntry := int(binary.BigEndian.Uint16(b[22:24]))
	framesPerEntry := int(binary.BigEndian.Uint16(b[24:26]))
	if sizePerEntry < 1 || sizePerEntry > 4 {
		return fmt.Errorf("%w: %d bytes", ErrBadVBRITable, sizePerEntry)
	}

	meta.VBR = true
	meta.Frames = frames
	meta.Duration = float64(frames*meta.SamplesPerFrame) / float64(meta.SampleRate)
	meta.EncoderDelay = vbriEncoderDelay

	// The table is relative to the first audio frame, which follows the
	// VBRI frame.
	h, _ := mpeg.ParseAt(r.at(p-36, 4))
	offset := p - 36 + int64(h.FrameSize)

	raw := r.at(p+26, entries*sizePerEntry)
	if raw == nil && entries > 0 {
		return fmt.Errorf("%w: truncated table", ErrBadVBRITable)
	}
	table := make([]int64, 0, entries+1)
	table = append(table, offset)
	for j := range entries {
		var v int64
		for _, c := range raw[j*sizePerEntry : (j+1)*sizePerEntry] {
			v = v<<8 | int64(c)
		}
		offset += v * scale
		table = append(table, offset)
	}

	meta.SeekTable = &metadata.SeekTable{
		Frames:         frames,
		FilledUntil:    meta.Duration,
		Table:          table,
		FramesPerEntry: max(1, framesPerEntry),
		FromMetadata:   true,
	}
	return nil
}

// demuxWrapped reads MP3 data carried in a RIFF/WAVE container
// (WAVE_FORMAT_MPEGLAYER3).
func demuxWrapped(r *reader, offset int64) (*metadata.TrackMetadata, error) {
	head := r.at(offset, 12)
	riffEnd := min(offset+8+int64(binary.LittleEndian.Uint32(head[4:8])), r.view.Size())

	var (
		channels, sampleRate, byteRate int
		blockAlign, encoderDelay       int
		samples                        int64 = -1
		dataStart, dataEnd             int64
		haveFmt                        bool
	)

	for pos := offset + 12; pos+8 <= riffEnd && dataStart == 0; {
		ch := r.at(pos, 8)
		if ch == nil {
			break
		}
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))
		body := pos + 8

		switch string(ch[0:4]) {
		case "fmt ":
			f := r.at(body, min(int(size), 30))
			if len(f) < 16 || binary.LittleEndian.Uint16(f[0:2]) != waveFormatMPEGLayer3 {
				return nil, ErrNotWrappedMP3
			}
			channels = int(binary.LittleEndian.Uint16(f[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			byteRate = int(binary.LittleEndian.Uint32(f[8:12]))
			// MPEGLAYER3WAVEFORMAT extension: nBlockSize, nFramesPerBlock,
			// nCodecDelay.
			if len(f) >= 30 {
				blockAlign = int(binary.LittleEndian.Uint16(f[24:26]))
				encoderDelay = int(binary.LittleEndian.Uint16(f[28:30]))
			}
			haveFmt = true
		case "fact":
			if f := r.at(body, 4); f != nil {
				samples = int64(binary.LittleEndian.Uint32(f))
			}
		case "data":
			dataStart = body
			dataEnd = min(body+size, riffEnd)
		}
		pos = body + size + size&1
	}

	if r.err != nil {
		return nil, fmt.Errorf("mp3: %w", r.err)
	}
	if !haveFmt || dataStart == 0 || sampleRate == 0 || byteRate == 0 {
		return nil, ErrNotWrappedMP3
	}

	lsf := sampleRate < 32000
	spf := 1152
	if lsf {
		spf = 576
	}

	var duration float64
	if samples >= 0 {
		duration = float64(samples) / float64(sampleRate)
	} else {
		duration = float64(dataEnd-dataStart) / float64(byteRate)
	}
	if duration < metadata.MinimumDuration {
		return nil, fmt.Errorf("%w: %.2fs", ErrTrackTooShort, duration)
	}

	avg := float64(blockAlign)
	if avg == 0 {
		avg = float64(byteRate) * float64(spf) / float64(sampleRate)
	}

	return &metadata.TrackMetadata{
		Codec:                metadata.CodecMP3,
		Duration:             duration,
		SampleRate:           sampleRate,
		Channels:             channels,
		SamplesPerFrame:      spf,
		Frames:               int(duration * float64(sampleRate) / float64(spf)),
		BitRate:              byteRate * 8,
		DataStart:            dataStart,
		DataEnd:              dataEnd,
		AverageFrameSize:     avg,
		EncoderDelay:         encoderDelay,
		PaddingStartFrame:    -1,
		LSF:                  lsf,
		MaxByteSizePerSample: mpeg.MaxBytesPerSample(sampleRate, lsf),
	}, nil
}
