package ppg

// Signal Conditioning and Motion Detection
//
// This file implements the first stage of the pipeline: turning one noisy raw
// intensity value per camera frame into a denoised sample suitable for peak
// detection. It includes:
//
// 1. Adaptive median filter: Removes impulse noise; the window narrows at high
//    heart rates and widens at low ones so fast beats are not smeared away.
// 2. Adaptive moving average: Same window strategy over the median output.
// 3. Exponential moving average: Final low-pass smoothing stage.
// 4. Baseline tracker: Follows the slow drift of the optical signal by pulling
//    toward the minimum of recent smoothed samples.
// 5. Harmonic enhancement: When a heart-rate estimate exists, delayed copies of
//    the signal at 1x/2x/3x the beat period are added with decreasing weights,
//    reinforcing periodic content for detection only (never for display).
// 6. Motion detector: Standard deviation of recent raw values feeds a smoothed
//    motion score; motion lowers confidence downstream, it never hard-rejects.

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

type conditioner struct {
	cfg *Config

	medianRing  *Ring // recent raw values for the median stage
	averageRing *Ring // median outputs for the moving-average stage

	smoothed     float64
	smoothedInit bool

	baseline     float64
	baselineRing *Ring // recent smoothed values for minimum tracking
	sampleCount  int

	history *Ring // smoothed values retained for harmonic delays

	motionRing   *Ring
	motionScore  float64
	motionActive bool
	rawSpan      float64 // peak-to-trough of the raw motion window
}

func newConditioner(cfg *Config) *conditioner {
	return &conditioner{
		cfg:          cfg,
		medianRing:   NewRing(cfg.MedianWindowMax),
		averageRing:  NewRing(cfg.AverageWindowMax),
		baselineRing: NewRing(cfg.BaselineWindow),
		history:      NewRing(cfg.HistoryBufferSize),
		motionRing:   NewRing(cfg.MotionWindow),
	}
}

// process runs one raw sample through the full conditioning cascade. The bpm
// argument adapts the filter windows and the harmonic delays; pass 0 when no
// estimate exists yet. It returns the smoothed display value, the enhanced
// value used for peak detection, and the motion flag.
func (c *conditioner) process(raw float64, bpm float64) (filtered, enhanced float64, motion bool) {
	c.sampleCount++

	// Stage 1: adaptive median.
	c.medianRing.Push(raw)
	medianWindow := adaptiveWindow(c.cfg.MedianWindowMin, c.cfg.MedianWindowMax, bpm, c.cfg.MinBPM, c.cfg.MaxBPM)
	med := medianOfTail(c.medianRing, medianWindow)

	// Stage 2: adaptive moving average over the median output.
	c.averageRing.Push(med)
	averageWindow := adaptiveWindow(c.cfg.AverageWindowMin, c.cfg.AverageWindowMax, bpm, c.cfg.MinBPM, c.cfg.MaxBPM)
	avg := meanOfTail(c.averageRing, averageWindow)

	// Stage 3: EMA, bootstrapped from the first sample.
	if !c.smoothedInit {
		c.smoothed = avg
		c.smoothedInit = true
	} else {
		c.smoothed = c.cfg.SmoothingAlpha*avg + (1-c.cfg.SmoothingAlpha)*c.smoothed
	}

	c.updateBaseline()
	c.history.Push(c.smoothed)

	enhanced = c.smoothed
	if c.cfg.HarmonicEnhancement && bpm > 0 {
		enhanced = c.enhance(bpm)
	}

	motion = c.updateMotion(raw)

	return c.smoothed, enhanced, motion
}

// updateBaseline tracks the slow floor of the signal. With enough samples it
// pulls toward the minimum of the recent smoothed window; earlier it chases
// the smoothed value directly so the first beats are not measured against an
// arbitrary zero.
func (c *conditioner) updateBaseline() {
	c.baselineRing.Push(c.smoothed)
	if c.sampleCount >= 10 {
		minRecent := c.baselineRing.Min()
		c.baseline = c.baseline*(1-c.cfg.BaselinePull) + minRecent*c.cfg.BaselinePull
	} else {
		c.baseline = c.baseline*0.8 + c.smoothed*0.2
	}
	if math.IsNaN(c.baseline) || math.IsInf(c.baseline, 0) {
		c.baseline = 0
	}
}

// enhance adds weighted copies of the signal delayed by whole multiples of the
// current beat period. Periodic content stacks constructively while noise does
// not. Delays without enough history are skipped.
func (c *conditioner) enhance(bpm float64) float64 {
	period := int(60.0 / bpm * c.cfg.SampleRate)
	if period < 2 {
		return c.smoothed
	}

	enhanced := c.smoothed
	n := c.history.Len()
	for i, weight := range c.cfg.HarmonicWeights {
		delay := (i + 1) * period
		if delay >= n {
			break
		}
		delayed := c.history.At(n - 1 - delay)
		enhanced += weight * (delayed - c.baseline)
	}
	return enhanced
}

// updateMotion maintains the raw-value variance estimate and the raw span
// that the low-signal watchdog keys off. The motion score is only meaningful
// once the window is full; the span is tracked from the first sample.
func (c *conditioner) updateMotion(raw float64) bool {
	c.motionRing.Push(raw)
	c.rawSpan = c.motionRing.Max() - c.motionRing.Min()
	if !c.motionRing.Full() {
		return c.motionActive
	}

	stdDev, err := stats.StandardDeviation(c.motionRing.Values())
	if err != nil || math.IsNaN(stdDev) {
		stdDev = 0
	}

	c.motionScore = c.motionScore*(1-c.cfg.MotionAlpha) + stdDev*c.cfg.MotionAlpha
	c.motionActive = c.motionScore > c.cfg.MotionThreshold
	return c.motionActive
}

func (c *conditioner) reset() {
	c.medianRing.Clear()
	c.averageRing.Clear()
	c.smoothed = 0
	c.smoothedInit = false
	c.baseline = 0
	c.baselineRing.Clear()
	c.sampleCount = 0
	c.history.Clear()
	c.motionRing.Clear()
	c.motionScore = 0
	c.motionActive = false
	c.rawSpan = 0
}

// medianOfTail computes the median of the newest window values in the ring.
func medianOfTail(r *Ring, window int) float64 {
	tail := r.Tail(window)
	if len(tail) == 0 {
		return 0
	}
	sort.Float64s(tail)
	mid := len(tail) / 2
	if len(tail)%2 == 1 {
		return tail[mid]
	}
	return (tail[mid-1] + tail[mid]) / 2
}

// meanOfTail computes the mean of the newest window values in the ring.
func meanOfTail(r *Ring, window int) float64 {
	tail := r.Tail(window)
	if len(tail) == 0 {
		return 0
	}
	var sum float64
	for _, v := range tail {
		sum += v
	}
	return sum / float64(len(tail))
}
