// SPDX-License-Identifier: EPL-2.0

package utils

// Clamp limits x to the nominal [-1, 1] sample range.
func Clamp(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// Float32ToInt16 converts a float sample to 16-bit PCM.
// Uses 32767 for both signs so the range stays symmetric.
func Float32ToInt16(x float32) int16 {
	return int16(Clamp(x) * 32767.0)
}

// FloatToPCM converts a float sample to a signed integer of bitDepth bits.
func FloatToPCM(x float32, bitDepth int) int {
	if bitDepth == 16 {
		return int(Float32ToInt16(x))
	}
	scale := float64(int64(1)<<(bitDepth-1)) - 1
	return int(float64(Clamp(x)) * scale)
}

// PCMToFloat converts a signed integer sample of bitDepth bits to float.
func PCMToFloat(v int, bitDepth int) float32 {
	return float32(float64(v) / float64(int64(1)<<(bitDepth-1)))
}
