// SPDX-License-Identifier: EPL-2.0

package metadata

import "time"

// CodecName identifies a codec variant.
type CodecName string

const (
	CodecMP3    CodecName = "mp3"
	CodecPCM    CodecName = "pcm"
	CodecVorbis CodecName = "vorbis"
	CodecFLAC   CodecName = "flac"
)

// MinimumDuration is the shortest track, in seconds, a demuxer accepts.
const MinimumDuration = 3

// TrackMetadata describes a demuxed track. Demuxers fill the fields that
// apply to their codec; the pipeline and seeker read them.
type TrackMetadata struct {
	Codec CodecName

	Duration        float64 // seconds
	SampleRate      int
	Channels        int
	SamplesPerFrame int
	Frames          int
	VBR             bool
	BitRate         int // bits per second

	// DataStart and DataEnd bound the encoded audio in the file.
	DataStart int64
	DataEnd   int64

	// MP3 only.
	TOC               []byte // 100 entries, values are 1/256 of the data span
	AverageFrameSize  float64
	EncoderDelay      int
	EncoderPadding    int
	PaddingStartFrame int
	LSF               bool
	SeekTable         *SeekTable

	// MaxByteSizePerSample bounds how many input bytes one output sample
	// frame can cost. Used to size file reads.
	MaxByteSizePerSample float64

	// PCM layout.
	BitDepth   int
	BlockAlign int
	BigEndian  bool
	Float      bool
	Unsigned   bool // 8-bit WAV samples are offset binary

	// MaxFrameSize bounds one encoded FLAC frame in bytes.
	MaxFrameSize int

	// Header holds bytes that must be fed to the codec before any data
	// at every start or seek.
	Header []byte
}

// Length returns Duration as a time.Duration.
func (m *TrackMetadata) Length() time.Duration {
	return time.Duration(m.Duration * float64(time.Second))
}

// DataSize is the number of encoded bytes.
func (m *TrackMetadata) DataSize() int64 {
	return max(0, m.DataEnd-m.DataStart)
}

// FrameSamples is the number of samples per channel in one encoded frame.
// MP3 tracks demuxed without a header count fall back to the MPEG-1 or
// LSF frame length.
func (m *TrackMetadata) FrameSamples() int {
	switch {
	case m.SamplesPerFrame > 0:
		return m.SamplesPerFrame
	case m.LSF:
		return 576
	default:
		return 1152
	}
}
