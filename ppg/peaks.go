package ppg

// Peak Candidate Detection
//
// A small state machine over the enhanced, baseline-normalized signal. It is
// idle while the refractory period since the last accepted peak has not
// elapsed, and armed otherwise. A candidate fires when the normalized value
// exceeds the SNR-adaptive threshold, the 3-point second derivative is
// negative (concave, at or just past the apex), and the previous value was
// positive and below the current one (the rising flank). Candidates inside the
// refractory window are suppressed outright, never merely scored lower.

import "time"

type peakDetector struct {
	cfg *Config

	lastAccepted time.Time
	prev         float64
	prev2        float64
	seen         int
}

func newPeakDetector(cfg *Config) *peakDetector {
	return &peakDetector{cfg: cfg}
}

// minPeakInterval is the refractory period, bounded by the maximum
// physiological heart rate.
func (p *peakDetector) minPeakInterval() time.Duration {
	return time.Duration(60000.0/p.cfg.MaxBPM) * time.Millisecond
}

// detect evaluates one normalized sample against the adaptive threshold and
// returns whether a candidate fired together with its raw detector
// confidence, a bounded measure of how far the value clears the threshold.
func (p *peakDetector) detect(now time.Time, norm, threshold float64) (candidate bool, baseConfidence float64) {
	defer func() {
		p.prev2 = p.prev
		p.prev = norm
		p.seen++
	}()

	if p.seen < 2 || threshold <= 0 {
		return false, 0
	}

	if !p.lastAccepted.IsZero() && now.Sub(p.lastAccepted) < p.minPeakInterval() {
		return false, 0 // refractory: suppressed outright
	}

	if norm <= threshold {
		return false, 0
	}

	secondDerivative := norm - 2*p.prev + p.prev2
	if secondDerivative >= 0 {
		return false, 0
	}

	if p.prev <= 0 || p.prev >= norm {
		return false, 0
	}

	return true, clamp01(norm / (2 * threshold))
}

// markAccepted records the timestamp of an accepted peak; only accepted peaks
// advance the refractory gate.
func (p *peakDetector) markAccepted(ts time.Time) {
	p.lastAccepted = ts
}

func (p *peakDetector) reset() {
	p.lastAccepted = time.Time{}
	p.prev = 0
	p.prev2 = 0
	p.seen = 0
}
