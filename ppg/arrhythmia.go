package ppg

// Arrhythmia Analysis
//
// A pure function over the accepted RR-interval history, recomputed from
// scratch whenever a new interval arrives. It derives three statistics:
//
//   - recency-weighted mean RR (newer intervals count more)
//   - RMSSD over the most recent intervals (heart-rate-variability metric)
//   - relative variation of the last interval against the mean
//
// Classification is first-match-wins: bradycardia, tachycardia, extrasystole,
// irregular. Bradycardia/tachycardia are judged on the rhythm-level rate (the
// weighted mean), not the single last interval, so an isolated premature beat
// classifies as extrasystole instead of masquerading as tachycardia. An
// interval already attributed to an extrasystole is excluded from the RMSSD
// window while it remains in range, so a single premature beat does not echo
// as a trail of irregular events once the cooldown lapses. A cooldown
// suppresses repeat emissions; only the cross-session tallies and the
// cooldown timestamp persist between calls.

import (
	"math"
	"time"
)

type arrhythmiaAnalyzer struct {
	cfg *Config

	lastEmit time.Time
	flagAge  int // intervals since the last extrasystole, -1 when none
	tallies  map[ArrhythmiaType]int
}

func newArrhythmiaAnalyzer(cfg *Config) *arrhythmiaAnalyzer {
	return &arrhythmiaAnalyzer{
		cfg:     cfg,
		flagAge: -1,
		tallies: make(map[ArrhythmiaType]int),
	}
}

// analyze classifies the rhythm given the RR history in milliseconds, oldest
// first. It returns nil when no classification fires or the cooldown is
// active.
func (a *arrhythmiaAnalyzer) analyze(rr []float64, now time.Time) *ArrhythmiaEvent {
	if len(rr) < 3 {
		return nil
	}

	last := rr[len(rr)-1]
	if last <= 0 {
		return nil
	}

	// One new interval arrives per call, so the flagged interval ages by one
	// position each time until it leaves the RMSSD window.
	if a.flagAge >= 0 {
		a.flagAge++
		if a.flagAge >= a.cfg.RMSSDSpan || a.flagAge >= len(rr) {
			a.flagAge = -1
		}
	}

	meanRR := weightedMeanRR(rr)
	if meanRR <= 0 {
		return nil
	}

	rhythmBPM := 60000.0 / meanRR
	rmssd := rmssdOf(a.withoutFlagged(rr), a.cfg.RMSSDSpan)
	relVariation := math.Abs(last-meanRR) / meanRR

	var kind ArrhythmiaType
	switch {
	case rhythmBPM < a.cfg.BradycardiaBPM:
		kind = Bradycardia
	case rhythmBPM > a.cfg.TachycardiaBPM:
		kind = Tachycardia
	case last < meanRR*a.cfg.ExtrasystoleFactor:
		kind = Extrasystole
	case rmssd > a.cfg.RMSSDLimit ||
		(rmssd > a.cfg.RMSSDSoftLimit && relVariation > a.cfg.RRVariationLimit):
		kind = Irregular
	default:
		return nil
	}

	// The premature interval is attributed even when the cooldown suppresses
	// the emission, so its HRV echo cannot resurface as irregular.
	if kind == Extrasystole {
		a.flagAge = 0
	}

	if !a.lastEmit.IsZero() && now.Sub(a.lastEmit) < a.cfg.EventCooldown {
		return nil
	}
	a.lastEmit = now
	a.tallies[kind]++

	return &ArrhythmiaEvent{
		Type:      kind,
		Timestamp: now,
		BPM:       rhythmBPM,
		RRMs:      last,
	}
}

// counts returns a copy of the per-type tallies accumulated since the last
// full reset.
func (a *arrhythmiaAnalyzer) counts() map[ArrhythmiaType]int {
	out := make(map[ArrhythmiaType]int, len(a.tallies))
	for k, v := range a.tallies {
		out[k] = v
	}
	return out
}

// withoutFlagged returns the RR history with the interval last attributed to
// an extrasystole spliced out, merging its neighbors for the successive-
// difference statistics.
func (a *arrhythmiaAnalyzer) withoutFlagged(rr []float64) []float64 {
	if a.flagAge < 0 {
		return rr
	}
	idx := len(rr) - 1 - a.flagAge
	if idx < 0 {
		return rr
	}
	out := make([]float64, 0, len(rr)-1)
	out = append(out, rr[:idx]...)
	out = append(out, rr[idx+1:]...)
	return out
}

// reset clears the cooldown; tallies survive a session reset. The interval
// history goes with the session, so the flagged position clears too.
func (a *arrhythmiaAnalyzer) reset() {
	a.lastEmit = time.Time{}
	a.flagAge = -1
}

// fullReset additionally clears the cross-session tallies.
func (a *arrhythmiaAnalyzer) fullReset() {
	a.reset()
	a.tallies = make(map[ArrhythmiaType]int)
}

// weightedMeanRR favors recent intervals with linearly increasing weights.
func weightedMeanRR(rr []float64) float64 {
	var sum, weightSum float64
	for i, v := range rr {
		w := float64(i + 1)
		sum += v * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// rmssdOf computes the root-mean-square of successive differences over the
// newest span intervals.
func rmssdOf(rr []float64, span int) float64 {
	if span < 2 {
		span = 2
	}
	start := len(rr) - span
	if start < 0 {
		start = 0
	}
	window := rr[start:]
	if len(window) < 2 {
		return 0
	}

	var sumSq float64
	for i := 1; i < len(window); i++ {
		diff := window[i] - window[i-1]
		sumSq += diff * diff
	}
	rmssd := math.Sqrt(sumSq / float64(len(window)-1))
	if math.IsNaN(rmssd) {
		return 0
	}
	return rmssd
}
