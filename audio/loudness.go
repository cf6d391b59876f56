// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	referenceLUFS    = -18.0
	maxGainOffset    = 12.0
	silenceThreshold = -65.0
	absoluteGate     = -70.0
	relativeGate     = -10.0

	hopDuration = 100 * time.Millisecond
	// A momentary block spans this many hops (400 ms).
	hopsPerBlock = 4
	// Integrated loudness replaces the momentary average after this long.
	integratedAfter = 3 * time.Second

	DefaultLoudnessHistory = 8 * time.Second
)

type LoudnessOption func(*LoudnessAnalyzer)

// WithHistory sets how much audio must be measured before the gain is
// considered established.
func WithHistory(d time.Duration) LoudnessOption {
	return func(a *LoudnessAnalyzer) {
		if d > 0 {
			a.history = d
		}
	}
}

func WithNormalization(enabled bool) LoudnessOption {
	return func(a *LoudnessAnalyzer) { a.enabled = enabled }
}

// WithSilenceTrimming keeps the analyzer measuring while normalization is
// disabled so IsEntirelySilent stays meaningful.
func WithSilenceTrimming(enabled bool) LoudnessOption {
	return func(a *LoudnessAnalyzer) { a.trimming = enabled }
}

// LoudnessAnalyzer measures K-weighted loudness (ITU-R BS.1770) of a
// stream and derives the gain that brings it to -18 LUFS without clipping.
//
// The gain follows the smoothed momentary loudness for the first three
// seconds, then the gated integrated loudness of the blocks seen so far.
type LoudnessAnalyzer struct {
	enabled  bool
	trimming bool
	history  time.Duration

	channels   int
	sampleRate int

	shelf, highPass biquad
	states          [][2]biquadState

	hopFrames int
	hopFill   int
	hopSum    float64
	hops      [hopsPerBlock]float64
	hopCount  int

	// blocks holds the mean square energy of the momentary blocks of the
	// last history window, used for the gated integrated loudness.
	blocks    []float64
	maxBlocks int

	framesAdded   int64
	peak          float64
	momentaryAvg  float64
	lastMomentary float64
	measured      bool
	blockLoud     bool

	gain        float64
	appliedGain float64
}

func NewLoudnessAnalyzer(opts ...LoudnessOption) *LoudnessAnalyzer {
	a := &LoudnessAnalyzer{
		enabled: true,
		history: DefaultLoudnessHistory,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.clear()
	return a
}

// Reinitialize prepares the analyzer for a stream with a new shape and
// clears all history.
func (a *LoudnessAnalyzer) Reinitialize(channels, sampleRate int) error {
	if channels <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, sampleRate)
	}

	a.channels = channels
	a.sampleRate = sampleRate
	a.shelf, a.highPass = kWeighting(sampleRate)
	if cap(a.states) < channels {
		a.states = make([][2]biquadState, channels)
	}
	a.states = a.states[:channels]
	a.hopFrames = max(1, int(math.Round(hopDuration.Seconds()*float64(sampleRate))))
	a.maxBlocks = int(math.Ceil(float64(a.history) / float64(hopDuration)))
	if cap(a.blocks) < a.maxBlocks {
		a.blocks = make([]float64, 0, a.maxBlocks)
	}
	a.Reset()
	return nil
}

// Reset clears the measurement history while keeping the buffers.
func (a *LoudnessAnalyzer) Reset() {
	clear(a.states)
	a.blocks = a.blocks[:0]
	a.clear()
}

func (a *LoudnessAnalyzer) clear() {
	a.hopFill = 0
	a.hopSum = 0
	a.hops = [hopsPerBlock]float64{}
	a.hopCount = 0
	a.framesAdded = 0
	a.peak = 0
	a.momentaryAvg = math.NaN()
	a.lastMomentary = math.Inf(-1)
	a.measured = false
	a.blockLoud = false
	a.gain = math.NaN()
	a.appliedGain = -1
}

func (a *LoudnessAnalyzer) SetEnabled(enabled bool) { a.enabled = enabled }
func (a *LoudnessAnalyzer) Enabled() bool           { return a.enabled }

func (a *LoudnessAnalyzer) SetSilenceTrimming(enabled bool) { a.trimming = enabled }
func (a *LoudnessAnalyzer) SilenceTrimming() bool           { return a.trimming }

// Loudness measures frames of interleaved block and returns the current
// gain. It returns 1 while normalization is disabled or nothing above the
// silence threshold has been heard. Once established the gain no longer
// changes.
func (a *LoudnessAnalyzer) Loudness(block []float32, frames int) float64 {
	if a.channels == 0 || (!a.enabled && !a.trimming) {
		return 1
	}
	frames = min(frames, len(block)/a.channels)
	a.blockLoud = false

	for f := range frames {
		var sum float64
		for c := range a.channels {
			x := float64(block[f*a.channels+c])
			a.peak = max(a.peak, math.Abs(x))
			y := a.highPass.process(&a.states[c][1], a.shelf.process(&a.states[c][0], x))
			sum += y * y
		}
		a.hopSum += sum
		a.hopFill++
		if a.hopFill == a.hopFrames {
			a.completeHop()
		}
	}
	established := a.HasEstablishedGain()
	a.framesAdded += int64(frames)
	if !a.enabled {
		return 1
	}

	if !established {
		l := a.momentaryAvg
		if a.framesAdded >= int64(integratedAfter.Seconds()*float64(a.sampleRate)) {
			l = a.integrated()
		}
		if l > silenceThreshold {
			offset := min(referenceLUFS-l, maxGainOffset)
			a.gain = min(1/a.peak, math.Pow(10, offset/20))
		}
	}

	if math.IsNaN(a.gain) {
		return 1
	}
	return a.gain
}

func (a *LoudnessAnalyzer) completeHop() {
	a.hops[a.hopCount%hopsPerBlock] = a.hopSum / float64(a.hopFrames)
	a.hopCount++
	a.hopSum = 0
	a.hopFill = 0
	if a.hopCount < hopsPerBlock {
		return
	}

	var energy float64
	for _, h := range a.hops {
		energy += h
	}
	energy /= hopsPerBlock

	m := energyToLUFS(energy)
	if math.IsNaN(a.momentaryAvg) || math.IsInf(a.momentaryAvg, 0) {
		a.momentaryAvg = m
	} else {
		a.momentaryAvg = a.momentaryAvg*0.3 + m*0.7
	}
	a.measured = true
	a.lastMomentary = m
	if m > silenceThreshold {
		a.blockLoud = true
	}
	if len(a.blocks) == a.maxBlocks {
		n := copy(a.blocks, a.blocks[1:])
		a.blocks = a.blocks[:n]
	}
	a.blocks = append(a.blocks, energy)
}

// integrated is the gated loudness of all blocks: absolute gate at -70
// LUFS, then a relative gate 10 LU below the absolutely gated mean.
func (a *LoudnessAnalyzer) integrated() float64 {
	abs := lufsToEnergy(absoluteGate)
	var sum float64
	var n int
	for _, e := range a.blocks {
		if e > abs {
			sum += e
			n++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}

	rel := lufsToEnergy(energyToLUFS(sum/float64(n)) + relativeGate)
	sum, n = 0, 0
	for _, e := range a.blocks {
		if e > abs && e > rel {
			sum += e
			n++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}
	return energyToLUFS(sum / float64(n))
}

// HasEstablishedGain reports whether a full history window has been
// measured and produced a usable gain.
func (a *LoudnessAnalyzer) HasEstablishedGain() bool {
	if a.sampleRate == 0 {
		return false
	}
	window := int64(math.Ceil(a.history.Seconds() * float64(a.sampleRate)))
	return a.framesAdded >= window && !math.IsNaN(a.gain) && !math.IsInf(a.gain, 0)
}

// EstablishedGain returns the gain once established, and 1 before.
func (a *LoudnessAnalyzer) EstablishedGain() float64 {
	if !a.HasEstablishedGain() {
		return 1
	}
	return a.gain
}

// IsEntirelySilent reports whether the block passed to the last Loudness
// call stayed below the silence threshold. A block too short to complete a
// momentary measurement is judged by the latest one. It is false until a
// full momentary window has been measured.
func (a *LoudnessAnalyzer) IsEntirelySilent() bool {
	return a.measured && !a.blockLoud && a.lastMomentary <= silenceThreshold
}

// ApplyGain scales frames of block by gain, ramping linearly from the gain
// applied to the previous block.
func (a *LoudnessAnalyzer) ApplyGain(block []float32, frames int, gain float64) {
	if a.channels == 0 {
		return
	}
	frames = min(frames, len(block)/a.channels)
	from := a.appliedGain
	if from < 0 {
		from = gain
	}
	a.appliedGain = gain
	if from == 1 && gain == 1 {
		return
	}

	step := (gain - from) / float64(max(1, frames))
	for f := range frames {
		g := float32(from + step*float64(f+1))
		s := block[f*a.channels : (f+1)*a.channels]
		for c := range s {
			s[c] *= g
		}
	}
}

func energyToLUFS(e float64) float64 {
	return -0.691 + 10*math.Log10(e)
}

func lufsToEnergy(l float64) float64 {
	return math.Pow(10, (l+0.691)/10)
}
