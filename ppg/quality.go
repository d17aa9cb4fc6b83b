package ppg

// Quality and SNR Estimation
//
// The quality score combines two bounded components: how far the normalized
// signal rises above the adaptive threshold (amplitude) and how stable the
// recent inter-beat intervals are (rhythm). The combination is smoothed with
// an EMA so isolated frames cannot flip the score. An SNR proxy in [0,1] is
// derived from the quality score and the inverse motion score; it drives the
// adaptive detection threshold and confidence penalties downstream.

import (
	"math"

	"github.com/montanaflynn/stats"
)

type qualityEstimator struct {
	cfg *Config

	score   float64
	started bool
	history *Ring // recent scores for the instability flag
}

func newQualityEstimator(cfg *Config) *qualityEstimator {
	return &qualityEstimator{
		cfg:     cfg,
		history: NewRing(cfg.QualityHistorySize),
	}
}

// update ingests the current normalized value, the adaptive threshold, the RR
// history, and the smoothed motion score. It returns the smoothed quality
// score, the SNR proxy, and whether quality is currently unstable.
func (q *qualityEstimator) update(normValue, threshold float64, rr []float64, motionScore float64) (quality, snr float64, unstable bool) {
	amplitude := 0.0
	if threshold > 0 {
		amplitude = clamp01(normValue / (2 * threshold))
	}

	rrStability := 0.5 // neutral until enough intervals exist
	if len(rr) >= 5 {
		mean, errM := stats.Mean(rr)
		stdDev, errS := stats.StandardDeviation(rr)
		if errM == nil && errS == nil && !math.IsNaN(stdDev) && mean > 0 {
			rel := stdDev / mean
			rrStability = clamp01(1 - 2*rel)
		}
	}

	local := q.cfg.AmplitudeWeight*amplitude + q.cfg.RRStabilityWeight*rrStability
	if math.IsNaN(local) {
		local = 0
	}

	if !q.started {
		q.score = local
		q.started = true
	} else {
		q.score = q.cfg.QualityAlpha*local + (1-q.cfg.QualityAlpha)*q.score
	}
	q.score = clamp01(q.score)

	q.history.Push(q.score)
	unstable = !q.history.Full() ||
		math.Abs(q.history.At(0)-q.score) > q.cfg.QualityDeltaUnstable

	inverseMotion := 1.0
	if q.cfg.MotionThreshold > 0 {
		inverseMotion = clamp01(1 - motionScore/(2*q.cfg.MotionThreshold))
	}
	snr = (q.score + inverseMotion) / 2

	return q.score, snr, unstable
}

func (q *qualityEstimator) reset() {
	q.score = 0
	q.started = false
	q.history.Clear()
}
