package ppg

// Peak Validation and Confidence Fusion
//
// A raw candidate from the detector is converted into an accept/reject
// decision with a continuous confidence in [0,1]. Four independent
// sub-validators each carry their own rejection gate:
//
// 1. Shape: local symmetry and steepness of the rise/fall flanks around the
//    apex; non-local-maxima are rejected outright.
// 2. Consistency: candidate amplitude and interval against the running means
//    of recently accepted peaks, checked against a loose band (reject) and a
//    strict band (full score).
// 3. Prominence: height of the apex above the minimum of a preceding window
//    sized to a fraction of the current beat period.
// 4. Template correlation: Pearson correlation against the running peak
//    template; auto-passes at a neutral score until a template exists.
//
// The per-beat evidence is the weighted sum of the raw detector confidence
// and the four sub-scores, reduced by the motion penalty. A peak is accepted
// only if every gate passes AND the evidence clears the acceptance threshold;
// the reported confidence additionally scales with the global BPM stability.
//
// Validation runs a few samples past the apex, so all windows are causal: the
// apex sits near the end of the signal snapshot and flank radii shrink to what
// has actually been observed.

import "math"

type validationScores struct {
	Base        float64
	Shape       float64
	Consistency float64
	Prominence  float64
	Template    float64
	Confidence  float64
}

type peakValidator struct {
	cfg *Config

	template   *peakTemplate
	amplitudes *Ring // accepted peak amplitudes
	intervals  *Ring // accepted RR intervals, validator's own consistency view
}

func newPeakValidator(cfg *Config) *peakValidator {
	return &peakValidator{
		cfg:        cfg,
		template:   newPeakTemplate(cfg.TemplateWidth, cfg.TemplateDepth),
		amplitudes: NewRing(cfg.AmplitudeHistorySize),
		intervals:  NewRing(cfg.AmplitudeHistorySize),
	}
}

// validate scores one candidate. signal is the normalized recent signal,
// newest last, with the apex near the end. rrMs is 0 for the very first peak
// of a session. periodSamples is the current beat-period estimate (0 when
// unknown). Rejected candidates still return a much-reduced confidence so the
// display layer has something honest to show.
func (v *peakValidator) validate(signal []float64, amplitude, rrMs float64, periodSamples int, baseConf, snr, stability, threshold float64, motion bool) (accepted bool, scores validationScores) {
	scores.Base = baseConf

	// Confidence floor: implausibly weak candidates skip the expensive gates.
	if baseConf < 0.1 {
		scores.Confidence = clamp01(baseConf * 0.3)
		return false, scores
	}

	apex := locateApex(signal, v.cfg.ShapeRadius+2)
	if apex < 0 {
		scores.Confidence = clamp01(baseConf * 0.3)
		return false, scores
	}

	lowAmplitude := amplitude < 1.5*threshold

	// Consistency works on the threshold-relative amplitude so that slow
	// changes of the absolute signal scale (gain, enhancement coming online)
	// do not poison the history against all future beats.
	relAmp := amplitude
	if threshold > 0 {
		relAmp = amplitude / threshold
	}

	shape, shapeOK := v.shapeScore(signal, apex, amplitude, lowAmplitude)
	scores.Shape = shape
	consistency, consistencyOK := v.consistencyScore(relAmp, rrMs)
	scores.Consistency = consistency
	prominence, prominenceOK := v.prominenceScore(signal, apex, periodSamples, threshold)
	scores.Prominence = prominence
	template, templateOK := v.templateScore(signal, lowAmplitude)
	scores.Template = template

	evidence := v.cfg.DetectorWeight*baseConf +
		v.cfg.ShapeWeight*shape +
		v.cfg.ConsistencyWeight*consistency +
		v.cfg.ProminenceWeight*prominence +
		v.cfg.TemplateWeight*template
	if motion {
		evidence *= v.cfg.MotionPenalty
	}
	evidence = clamp01(evidence)

	// Acceptance judges the per-beat evidence only. The BPM-stability
	// multiplier shapes the reported confidence but must not gate acceptance,
	// otherwise the first beats of a session could never raise stability in
	// the first place. The floor keeps early confidences non-zero.
	confidence := evidence * (v.cfg.StabilityFloor + (1-v.cfg.StabilityFloor)*clamp01(stability))

	accept := v.cfg.AcceptConfidence
	if !v.template.ready() {
		accept = v.cfg.BootstrapConfidence
	}

	if !shapeOK || !consistencyOK || !prominenceOK || !templateOK || evidence < accept {
		scores.Confidence = clamp01(confidence * 0.3)
		return false, scores
	}

	scores.Confidence = clamp01(confidence)
	v.recordAccepted(signal, relAmp, rrMs, scores.Confidence)
	return true, scores
}

// recordAccepted updates the rolling histories and, for high-confidence peaks,
// the template. While no template exists every accepted window contributes so
// the correlation gate can come online quickly.
func (v *peakValidator) recordAccepted(signal []float64, relAmp, rrMs, confidence float64) {
	v.amplitudes.Push(relAmp)
	if rrMs > 0 {
		v.intervals.Push(rrMs)
	}
	if !v.template.ready() || confidence >= v.cfg.TemplateUpdateConfidence {
		if window, ok := v.templateWindow(signal); ok {
			v.template.update(window)
		}
	}
}

// shapeScore measures the symmetry and steepness of the flanks around the
// apex. The right flank may still be shorter than the configured radius when
// the signal snapshot itself is short.
func (v *peakValidator) shapeScore(signal []float64, apex int, amplitude float64, lowAmplitude bool) (float64, bool) {
	left := v.cfg.ShapeRadius
	if apex < left {
		left = apex
	}
	right := v.cfg.ShapeRadius
	if avail := len(signal) - 1 - apex; avail < right {
		right = avail
	}
	if left < 1 || right < 1 {
		return 0, false
	}

	peakValue := signal[apex]
	for i := apex - left; i <= apex+right; i++ {
		if i != apex && signal[i] > peakValue {
			return 0, false // not a local maximum
		}
	}

	rise := (peakValue - signal[apex-left]) / float64(left)
	fall := (peakValue - signal[apex+right]) / float64(right)
	if rise <= 0 || fall <= 0 {
		return 0, false
	}

	larger := math.Max(rise, fall)
	symmetry := 1 - clamp01(math.Abs(rise-fall)/larger)

	idealSlope := amplitude / float64(v.cfg.ShapeRadius)
	steepness := 0.0
	if idealSlope > 0 {
		steepness = clamp01((rise + fall) / (2 * idealSlope))
	}

	score := 0.6*symmetry + 0.4*steepness

	required := v.cfg.MinShapeScore
	if lowAmplitude {
		required = v.cfg.LowAmplitudeShapeScore
	}
	return score, score >= required
}

// consistencyScore checks the candidate against the running amplitude and
// interval means. With insufficient history the gate auto-passes at a neutral
// score rather than blocking the session bootstrap.
func (v *peakValidator) consistencyScore(amplitude, rrMs float64) (float64, bool) {
	if v.amplitudes.Len() < 2 {
		return 0.7, true
	}

	loose := v.cfg.ConsistencyLooseBand
	strict := v.cfg.ConsistencyStrictBand

	meanAmp := v.amplitudes.Mean()
	if meanAmp <= 0 {
		return 0.7, true
	}
	ampDev := math.Abs(amplitude-meanAmp) / meanAmp
	if ampDev > loose {
		return 0, false
	}
	ampScore := clamp01(1 - ampDev/loose)

	rrScore := ampScore
	rrDev := 0.0
	if rrMs > 0 && v.intervals.Len() >= 2 {
		meanRR := v.intervals.Mean()
		if meanRR > 0 {
			rrDev = math.Abs(rrMs-meanRR) / meanRR
			if rrDev > loose {
				return 0, false
			}
			rrScore = clamp01(1 - rrDev/loose)
		}
	}

	score := (ampScore + rrScore) / 2
	if ampDev <= strict && rrDev <= strict && score < 0.8 {
		score = 0.8
	}
	return score, true
}

// prominenceScore measures the apex height above the minimum of the preceding
// window, sized to a fraction of the current beat period.
func (v *peakValidator) prominenceScore(signal []float64, apex, periodSamples int, threshold float64) (float64, bool) {
	window := int(float64(periodSamples) * v.cfg.ProminenceWindowFraction)
	if window < 3 {
		window = int(v.cfg.SampleRate / 2) // half a second when no estimate
	}
	start := apex - window
	if start < 0 {
		start = 0
	}
	if start >= apex {
		return 0, false
	}

	minPre := signal[start]
	for i := start + 1; i < apex; i++ {
		if signal[i] < minPre {
			minPre = signal[i]
		}
	}

	prominence := signal[apex] - minPre
	required := threshold * v.cfg.MinProminenceFactor
	if required <= 0 || prominence < required {
		return 0, false
	}
	return clamp01(prominence / (2 * required)), true
}

// templateScore correlates the candidate window against the running template.
// Before a template exists the gate auto-passes at the neutral score.
func (v *peakValidator) templateScore(signal []float64, lowAmplitude bool) (float64, bool) {
	if !v.template.ready() {
		return v.cfg.TemplateNeutralScore, true
	}
	window, ok := v.templateWindow(signal)
	if !ok {
		return 0, false
	}
	correlation := v.template.correlate(window)

	required := v.cfg.MinTemplateCorrelation
	if lowAmplitude {
		required = v.cfg.LowAmplitudeCorrelation
	}
	return clamp01(correlation), correlation >= required
}

// templateWindow snapshots the newest TemplateWidth samples. Detection fires
// at a fixed phase of the waveform, so windows taken the same way line up with
// each other without explicit apex centering.
func (v *peakValidator) templateWindow(signal []float64) ([]float64, bool) {
	if len(signal) < v.cfg.TemplateWidth {
		return nil, false
	}
	window := make([]float64, v.cfg.TemplateWidth)
	copy(window, signal[len(signal)-v.cfg.TemplateWidth:])
	return window, true
}

func (v *peakValidator) reset() {
	v.template.reset()
	v.amplitudes.Clear()
	v.intervals.Clear()
}

// locateApex finds the index of the maximum within the newest span samples.
// Returns -1 when the signal is too short to judge.
func locateApex(signal []float64, span int) int {
	if len(signal) < 3 {
		return -1
	}
	start := len(signal) - span
	if start < 0 {
		start = 0
	}
	apex := start
	for i := start + 1; i < len(signal); i++ {
		if signal[i] > signal[apex] {
			apex = i
		}
	}
	return apex
}
