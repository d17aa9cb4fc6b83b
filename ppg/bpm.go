package ppg

// BPM Estimation
//
// Accepted peak-to-peak intervals become instantaneous BPM values after two
// rejection stages: a hard physiological band derived from MinBPM/MaxBPM with
// slack, and a robust median/MAD filter that catches intervals which pass the
// hard band but are statistically anomalous given the recent rhythm. The
// smoothed BPM blends the previous value with the MEDIAN of the instantaneous
// history (median resists single-sample spikes where a mean would not). A
// stability score in [0,1] summarizes how tight the recent history is.

import (
	"math"

	"github.com/montanaflynn/stats"
)

type bpmEstimator struct {
	cfg *Config

	history  *Ring // instantaneous BPM values
	rr       *Ring // accepted RR intervals in milliseconds
	smoothed float64
	seeded   bool // smoothed came from the spectral warmup seed only
}

func newBPMEstimator(cfg *Config) *bpmEstimator {
	return &bpmEstimator{
		cfg:     cfg,
		history: NewRing(cfg.BPMHistorySize),
		rr:      NewRing(cfg.RRHistorySize),
	}
}

// addInterval validates and folds one RR interval in milliseconds. It returns
// whether the interval was accepted into the history. Rejection is silent by
// contract: implausible intervals are never stored and later filtered.
func (b *bpmEstimator) addInterval(ms float64) bool {
	if math.IsNaN(ms) || ms <= 0 {
		return false
	}

	// Hard physiological band with slack on both ends.
	minMs := 60000.0 / b.cfg.MaxBPM * (1 - b.cfg.IntervalSlack)
	maxMs := 60000.0 / b.cfg.MinBPM * (1 + b.cfg.IntervalSlack)
	if ms < minMs || ms > maxMs {
		return false
	}

	// Robust median/MAD filter once enough prior rhythm exists. A zero MAD
	// (identical intervals) disables the filter rather than rejecting all.
	if b.rr.Len() >= b.cfg.MADMinSamples {
		values := b.rr.Values()
		median, errM := stats.Median(values)
		mad, errD := stats.MedianAbsoluteDeviation(values)
		if errM == nil && errD == nil && mad > 1e-9 {
			if math.Abs(ms-median) > b.cfg.MADFactor*mad {
				return false
			}
		}
	}

	b.rr.Push(ms)
	instant := 60000.0 / ms
	b.history.Push(instant)

	median, err := stats.Median(b.history.Values())
	if err != nil || math.IsNaN(median) {
		median = instant
	}
	if b.smoothed == 0 || b.seeded {
		b.smoothed = median
		b.seeded = false
	} else {
		b.smoothed = b.cfg.BPMAlpha*median + (1-b.cfg.BPMAlpha)*b.smoothed
	}

	return true
}

// seed installs an initial smoothed BPM (from the spectral warmup estimate)
// without contributing to the history. The first accepted interval replaces
// it outright.
func (b *bpmEstimator) seed(bpm float64) {
	if b.smoothed == 0 && bpm >= b.cfg.MinBPM && bpm <= b.cfg.MaxBPM {
		b.smoothed = bpm
		b.seeded = true
	}
}

// current returns the smoothed BPM, 0 when nothing is known yet.
func (b *bpmEstimator) current() float64 { return b.smoothed }

// stability scores how tight the instantaneous history is, decaying toward 0
// when the history is sparse.
func (b *bpmEstimator) stability() float64 {
	n := b.history.Len()
	if n < 3 {
		return 0.2 * float64(n)
	}
	stdDev, err := stats.StandardDeviation(b.history.Values())
	if err != nil || math.IsNaN(stdDev) {
		return 0
	}
	score := 1 - math.Pow(stdDev/b.cfg.StabilityStdDevLimit, 0.8)
	return clamp01(score)
}

// report returns the BPM to surface. During warmup or while the history is
// sparse the estimator reports the neutral default (0, rendered as "no
// reading") rather than an unstable number. Reported values are clamped to
// the physiological band.
func (b *bpmEstimator) report(inWarmup bool) uint32 {
	if inWarmup || b.history.Len() < 3 || b.smoothed <= 0 {
		return 0
	}
	bpm := b.smoothed
	if bpm < b.cfg.MinBPM {
		bpm = b.cfg.MinBPM
	}
	if bpm > b.cfg.MaxBPM {
		bpm = b.cfg.MaxBPM
	}
	return uint32(bpm + 0.5)
}

// rrValues snapshots the accepted interval history, oldest first.
func (b *bpmEstimator) rrValues() []float64 { return b.rr.Values() }

func (b *bpmEstimator) reset() {
	b.history.Clear()
	b.rr.Clear()
	b.smoothed = 0
	b.seeded = false
}
