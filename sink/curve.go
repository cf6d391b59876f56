// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"math"
	"sync"
)

// CurvePoints is the length of a fade curve.
const CurvePoints = 9

// Fade curves never reach zero so the step into silence is inaudible.
const fadeFloor = 0.2

// Curve returns CurvePoints volumes moving exponentially from v0 to v1.
func Curve(v0, v1 float64) [CurvePoints]float32 {
	var c [CurvePoints]float32
	for t := range c {
		c[t] = float32(v0 * math.Pow(v1/v0, float64(t)/(CurvePoints-1)))
	}
	return c
}

var (
	fadeOut = sync.OnceValue(func() [CurvePoints]float32 { return Curve(1, fadeFloor) })
	fadeIn  = sync.OnceValue(func() [CurvePoints]float32 { return Curve(fadeFloor, 1) })
)

// FadeOutCurve is the envelope applied while a pause is pending.
func FadeOutCurve() [CurvePoints]float32 { return fadeOut() }

// FadeInCurve is the envelope applied when playback resumes.
func FadeInCurve() [CurvePoints]float32 { return fadeIn() }
