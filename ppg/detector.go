package ppg

// Detector wires the pipeline stages together: conditioning, quality/SNR
// estimation, candidate detection, validation, BPM estimation, and arrhythmia
// analysis. One Detector owns one monitoring session; callers must serialize
// ProcessSample calls (single-producer framing at 20-30 Hz, no internal
// locking). Every call returns a well-formed Result regardless of signal
// quality.
//
// Candidates fire on the concave rising flank, so the true apex may still be
// ahead when a candidate appears. The detector therefore holds a pending
// candidate and keeps promoting it while the signal rises; validation runs
// once enough post-apex samples exist to measure the falling flank over the
// same span as the rising one. Detection latency is bounded by the shape
// radius (a few frames), the pipeline stays causal, and beat timing always
// refers to the apex timestamp, not the resolution tick.

import (
	"math"
	"time"
)

type pendingPeak struct {
	active    bool
	timestamp time.Time
	value     float64 // normalized apex value
	baseConf  float64
	fallCount int // samples observed below the apex since the last promotion
}

// Detector is the per-session heartbeat detection state machine.
type Detector struct {
	cfg Config

	conditioner *conditioner
	quality     *qualityEstimator
	peaks       *peakDetector
	validator   *peakValidator
	bpm         *bpmEstimator
	arrhythmia  *arrhythmiaAnalyzer

	filtered *Ring // smoothed display values
	norm     *Ring // baseline-normalized enhanced values

	pending        pendingPeak
	ampEstimate    float64
	threshold      float64
	lastPeakTime   time.Time
	lastConfidence float64
	lowSignalCount int
	spectralSeeded bool

	monitoring  bool
	warmupStart time.Time

	beeper       Beeper
	onArrhythmia func(ArrhythmiaEvent)
}

// NewDetector creates a detector for a fresh monitoring session. Monitoring
// starts enabled; the warmup clock begins at the first processed sample.
func NewDetector(cfg Config) *Detector {
	d := &Detector{
		cfg:         cfg,
		conditioner: newConditioner(&cfg),
		quality:     newQualityEstimator(&cfg),
		peaks:       newPeakDetector(&cfg),
		validator:   newPeakValidator(&cfg),
		bpm:         newBPMEstimator(&cfg),
		arrhythmia:  newArrhythmiaAnalyzer(&cfg),
		filtered:    NewRing(cfg.SignalBufferSize),
		norm:        NewRing(cfg.SignalBufferSize),
		monitoring:  true,
	}
	return d
}

// SetBeeper installs the audio-feedback collaborator.
func (d *Detector) SetBeeper(b Beeper) { d.beeper = b }

// OnArrhythmia installs the observer invoked for each classified event.
func (d *Detector) OnArrhythmia(fn func(ArrhythmiaEvent)) { d.onArrhythmia = fn }

// Config returns the session configuration.
func (d *Detector) Config() Config { return d.cfg }

// ProcessSample processes one raw frame stamped with the current time.
func (d *Detector) ProcessSample(value float64) Result {
	return d.ProcessSampleAt(value, time.Now())
}

// ProcessSampleAt processes one raw frame with an explicit acquisition
// timestamp. The acquisition layer supplies frame timestamps when it has
// them; tests use this for determinism.
func (d *Detector) ProcessSampleAt(value float64, now time.Time) Result {
	if !d.monitoring {
		return Result{}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	if d.warmupStart.IsZero() {
		d.warmupStart = now
	}

	currentBPM := d.bpm.current()
	filtered, enhanced, motion := d.conditioner.process(value, currentBPM)
	d.filtered.Push(filtered)
	normValue := enhanced - d.conditioner.baseline
	d.norm.Push(normValue)

	d.trackAmplitude()

	// Quality sees the previous adaptive threshold; the refreshed threshold
	// then folds in the new SNR.
	_, snr, unstable := d.quality.update(normValue, d.threshold, d.bpm.rrValues(), d.conditioner.motionScore)
	base := d.cfg.BaseThresholdFraction * d.ampEstimate
	scale := d.cfg.ThresholdScaleLowSNR - (d.cfg.ThresholdScaleLowSNR-d.cfg.ThresholdScaleHighSNR)*snr
	d.threshold = base * scale

	inWarmup := now.Sub(d.warmupStart) < d.cfg.WarmupDuration
	if inWarmup && !d.spectralSeeded && d.filtered.Full() {
		if seed := estimateSpectralBPM(d.filtered.Values(), d.cfg.SampleRate, d.cfg.MinBPM, d.cfg.MaxBPM); seed > 0 {
			d.bpm.seed(seed)
		}
		d.spectralSeeded = true
	}

	if d.lowSignal() {
		return Result{
			FilteredValue:   filtered,
			MotionDetected:  motion,
			QualityUnstable: true,
		}
	}

	isPeak := d.advancePeaks(now, normValue, snr)

	d.lastConfidence = clamp01(d.lastConfidence * 0.99)

	return Result{
		BPM:             d.bpm.report(inWarmup),
		Confidence:      d.lastConfidence,
		IsPeak:          isPeak,
		FilteredValue:   filtered,
		MotionDetected:  motion,
		QualityUnstable: unstable,
		BPMStability:    d.bpm.stability(),
	}
}

// trackAmplitude follows the peak-to-trough span of the recent normalized
// signal with a slow EMA; the detection threshold is a fraction of it.
func (d *Detector) trackAmplitude() {
	window := int(2 * d.cfg.SampleRate) // ~2 s
	tail := d.norm.Tail(window)
	if len(tail) < 3 {
		return
	}
	lo, hi := tail[0], tail[0]
	for _, v := range tail[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if d.ampEstimate == 0 {
		d.ampEstimate = span
	} else {
		d.ampEstimate = d.cfg.AmplitudeAlpha*span + (1-d.cfg.AmplitudeAlpha)*d.ampEstimate
	}
	if math.IsNaN(d.ampEstimate) {
		d.ampEstimate = 0
	}
}

// lowSignal counts consecutive weak frames and soft-resets the detection
// state (not the signal buffers) when the configured run length is exceeded.
// Weakness is judged on the instantaneous raw span, which collapses within
// one motion window of the finger coming off; the slow amplitude EMA would
// keep a stale reading alive for seconds. Any pulse flank resets the count.
// The session stays alive and recovers on its own once amplitude returns.
func (d *Detector) lowSignal() bool {
	if d.norm.Len() >= 3 && d.conditioner.rawSpan < d.cfg.LowSignalAmplitude {
		d.lowSignalCount++
		if d.lowSignalCount >= d.cfg.LowSignalFrames {
			d.softReset()
			return true
		}
		return false
	}
	d.lowSignalCount = 0
	return false
}

// advancePeaks runs the pending-candidate state machine for one sample and
// reports whether a peak was accepted at this tick. The underlying detector
// sees every sample so its derivative history never goes stale; its candidates
// are ignored while one is already held.
func (d *Detector) advancePeaks(now time.Time, normValue, snr float64) bool {
	candidate, baseConf := d.peaks.detect(now, normValue, d.threshold)

	if d.pending.active {
		if normValue >= d.pending.value {
			// Still rising: the apex is ahead, keep promoting.
			d.pending.timestamp = now
			d.pending.value = normValue
			d.pending.fallCount = 0
			if d.threshold > 0 {
				d.pending.baseConf = clamp01(normValue / (2 * d.threshold))
			}
			return false
		}
		d.pending.fallCount++
		if d.pending.fallCount < d.cfg.ShapeRadius {
			return false
		}
		accepted := d.resolvePending(now, snr)
		d.pending.active = false
		return accepted
	}

	if candidate {
		d.pending = pendingPeak{
			active:    true,
			timestamp: now,
			value:     normValue,
			baseConf:  baseConf,
		}
	}
	return false
}

// resolvePending validates the held candidate now that a post-apex sample
// exists.
func (d *Detector) resolvePending(now time.Time, snr float64) bool {
	rrMs := 0.0
	if !d.lastPeakTime.IsZero() {
		rrMs = float64(d.pending.timestamp.Sub(d.lastPeakTime)) / float64(time.Millisecond)
	}

	periodSamples := 0
	if bpm := d.bpm.current(); bpm > 0 {
		periodSamples = int(60.0 / bpm * d.cfg.SampleRate)
	}

	motion := d.conditioner.motionActive
	accepted, scores := d.validator.validate(
		d.norm.Values(),
		d.pending.value,
		rrMs,
		periodSamples,
		d.pending.baseConf,
		snr,
		d.bpm.stability(),
		d.threshold,
		motion,
	)
	d.lastConfidence = scores.Confidence

	if !accepted {
		return false
	}

	d.peaks.markAccepted(d.pending.timestamp)
	d.lastPeakTime = d.pending.timestamp

	if rrMs > 0 && d.bpm.addInterval(rrMs) {
		if event := d.arrhythmia.analyze(d.bpm.rrValues(), now); event != nil && d.onArrhythmia != nil {
			d.onArrhythmia(*event)
		}
	}

	if d.beeper != nil && scores.Confidence >= d.cfg.BeepConfidence {
		d.beeper.PlayBeep(scores.Confidence)
	}
	return true
}

// RRIntervals returns a snapshot of the accepted inter-beat intervals and the
// last accepted peak time.
func (d *Detector) RRIntervals() RRSnapshot {
	values := d.bpm.rrValues()
	intervals := make([]uint32, len(values))
	for i, v := range values {
		intervals[i] = uint32(v + 0.5)
	}
	snapshot := RRSnapshot{Intervals: intervals}
	if !d.lastPeakTime.IsZero() {
		t := d.lastPeakTime
		snapshot.LastPeakTime = &t
	}
	return snapshot
}

// ArrhythmiaCounts returns the per-type event tallies accumulated since the
// last full reset.
func (d *Detector) ArrhythmiaCounts() map[ArrhythmiaType]int {
	return d.arrhythmia.counts()
}

// SetMonitoring starts or stops the session. Starting restarts the warmup
// clock; stopping resets the detection state so a later start begins clean.
func (d *Detector) SetMonitoring(enabled bool) {
	if enabled == d.monitoring {
		return
	}
	d.monitoring = enabled
	d.Reset()
}

// Monitoring reports whether the session is active.
func (d *Detector) Monitoring() bool { return d.monitoring }

// softReset clears detection state after a signal dropout: peaks, RR, BPM and
// template state go, the conditioning buffers stay so the filters do not have
// to re-converge.
func (d *Detector) softReset() {
	d.peaks.reset()
	d.validator.reset()
	d.bpm.reset()
	d.arrhythmia.reset()
	d.pending = pendingPeak{}
	d.ampEstimate = 0
	d.threshold = 0
	d.lastPeakTime = time.Time{}
	d.lastConfidence = 0
	d.lowSignalCount = 0
	d.spectralSeeded = false
}

// Reset returns the session to its initial state: every buffer and counter
// clears, so two sessions fed the same samples from time zero produce the
// same outputs. Cross-session tallies survive; see FullReset.
func (d *Detector) Reset() {
	d.softReset()
	d.conditioner.reset()
	d.quality.reset()
	d.filtered.Clear()
	d.norm.Clear()
	d.warmupStart = time.Time{}
}

// FullReset clears everything Reset does plus cross-session counters such as
// the arrhythmia tallies.
func (d *Detector) FullReset() {
	d.Reset()
	d.arrhythmia.fullReset()
}
