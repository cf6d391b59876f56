// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"encoding/binary"
	"math"
)

// WAV encodes frames of wf as a canonical PCM WAV file with a 44-byte
// header. bitDepth is 8, 16, 24 or 32.
func WAV(sampleRate, channels, bitDepth, frames int, wf Waveform) []byte {
	bytesPerSample := bitDepth / 8
	blockAlign := channels * bytesPerSample
	dataSize := frames * blockAlign

	out := make([]byte, 44, 44+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitDepth))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	out = out[:44+dataSize]
	p := 44
	for f := range frames {
		for c := range channels {
			putSample(out[p:], wf(f, c), bitDepth, false)
			p += bytesPerSample
		}
	}
	return out
}

// AIFF encodes frames of wf as a big-endian AIFF file.
func AIFF(sampleRate, channels, bitDepth, frames int, wf Waveform) []byte {
	bytesPerSample := bitDepth / 8
	dataSize := frames * channels * bytesPerSample
	commSize := 18
	ssndSize := 8 + dataSize
	formSize := 4 + 8 + commSize + 8 + ssndSize

	out := make([]byte, 0, 8+formSize)
	out = append(out, "FORM"...)
	out = binary.BigEndian.AppendUint32(out, uint32(formSize))
	out = append(out, "AIFF"...)

	out = append(out, "COMM"...)
	out = binary.BigEndian.AppendUint32(out, uint32(commSize))
	out = binary.BigEndian.AppendUint16(out, uint16(channels))
	out = binary.BigEndian.AppendUint32(out, uint32(frames))
	out = binary.BigEndian.AppendUint16(out, uint16(bitDepth))
	out = append(out, extended80(float64(sampleRate))...)

	out = append(out, "SSND"...)
	out = binary.BigEndian.AppendUint32(out, uint32(ssndSize))
	out = binary.BigEndian.AppendUint32(out, 0) // offset
	out = binary.BigEndian.AppendUint32(out, 0) // block size

	p := len(out)
	out = out[:p+dataSize]
	for f := range frames {
		for c := range channels {
			putSample(out[p:], wf(f, c), bitDepth, true)
			p += bytesPerSample
		}
	}
	return out
}

func putSample(b []byte, x float32, bitDepth int, bigEndian bool) {
	x = max(-1, min(1, x))
	switch bitDepth {
	case 8:
		if bigEndian {
			b[0] = byte(int8(x * 127))
		} else {
			b[0] = byte(int(x*127) + 128)
		}
	case 16:
		v := uint16(int16(x * 32767))
		if bigEndian {
			binary.BigEndian.PutUint16(b, v)
		} else {
			binary.LittleEndian.PutUint16(b, v)
		}
	case 24:
		v := uint32(int32(x * 8388607))
		if bigEndian {
			b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
		} else {
			b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
		}
	case 32:
		v := uint32(int32(float64(x) * 2147483647))
		if bigEndian {
			binary.BigEndian.PutUint32(b, v)
		} else {
			binary.LittleEndian.PutUint32(b, v)
		}
	}
}

// extended80 encodes f as an IEEE 754 80-bit extended float.
func extended80(f float64) []byte {
	out := make([]byte, 10)
	if f == 0 {
		return out
	}
	exp := int(math.Floor(math.Log2(f)))
	mant := uint64(f / math.Pow(2, float64(exp-63)))
	binary.BigEndian.PutUint16(out[0:2], uint16(exp+16383))
	binary.BigEndian.PutUint64(out[2:10], mant)
	return out
}
