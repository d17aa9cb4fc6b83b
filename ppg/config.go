package ppg

import "time"

// Config centralizes every tunable constant of the detection pipeline so the
// fusion formulas stay pure and the constants remain swappable for tuning.
// Most values are empirically chosen; the scenario tests in this package pin
// their combined behaviour rather than any individual value.
type Config struct {
	// SampleRate is the expected acquisition rate in frames per second.
	SampleRate float64

	// Physiological band. Every reported BPM lies inside it.
	MinBPM float64
	MaxBPM float64

	// Signal conditioning.
	MedianWindowMin     int     // adaptive median filter bounds (odd sizes)
	MedianWindowMax     int
	AverageWindowMin    int     // adaptive moving-average bounds (odd sizes)
	AverageWindowMax    int
	SmoothingAlpha      float64 // EMA coefficient after median + average stages
	BaselineWindow      int     // smoothed samples considered for the minimum
	BaselinePull        float64 // exponential pull toward the recent minimum
	HarmonicEnhancement bool
	HarmonicWeights     []float64 // weights for 1x, 2x, 3x period delays
	MotionWindow        int       // raw samples for the variance estimate
	MotionAlpha         float64   // smoothing of the motion score
	MotionThreshold     float64   // raw-value stddev above which motion is flagged

	// Buffers.
	SignalBufferSize  int // recent filtered samples (~3 s at 30 Hz)
	HistoryBufferSize int // enhanced-signal history for harmonic delays

	// Quality / SNR estimation.
	QualityAlpha         float64
	QualityHistorySize   int
	QualityDeltaUnstable float64
	AmplitudeWeight      float64
	RRStabilityWeight    float64

	// Peak candidate detection.
	BaseThresholdFraction float64 // of the tracked pulse amplitude
	AmplitudeAlpha        float64 // pulse-amplitude tracker EMA
	ThresholdScaleLowSNR  float64 // threshold multiplier at SNR 0
	ThresholdScaleHighSNR float64 // threshold multiplier at SNR 1

	// Peak validation.
	ShapeRadius              int
	MinShapeScore            float64
	LowAmplitudeShapeScore   float64 // stricter shape gate under low amplitude
	ConsistencyLooseBand     float64
	ConsistencyStrictBand    float64
	ProminenceWindowFraction float64 // of the current beat period
	MinProminenceFactor      float64 // of the adaptive threshold
	TemplateWidth            int
	TemplateDepth            int
	MinTemplateCorrelation   float64
	LowAmplitudeCorrelation  float64 // raised correlation gate under low amplitude
	TemplateNeutralScore     float64 // auto-pass score before a template exists
	AmplitudeHistorySize     int

	// Confidence fusion.
	DetectorWeight           float64
	ShapeWeight              float64
	ConsistencyWeight        float64
	ProminenceWeight         float64
	TemplateWeight           float64
	AcceptConfidence         float64 // acceptance gate once a template exists
	BootstrapConfidence      float64 // acceptance gate while no template exists
	TemplateUpdateConfidence float64 // template refresh gate
	MotionPenalty            float64
	StabilityFloor           float64 // floor of the BPM-stability multiplier

	// BPM estimation.
	BPMHistorySize       int
	RRHistorySize        int
	BPMAlpha             float64
	IntervalSlack        float64 // widening of the hard physiological band
	MADFactor            float64
	MADMinSamples        int // prior RR samples required for the robust filter
	StabilityStdDevLimit float64
	WarmupDuration       time.Duration

	// Arrhythmia analysis.
	BradycardiaBPM     float64
	TachycardiaBPM     float64
	ExtrasystoleFactor float64
	RMSSDLimit         float64
	RMSSDSoftLimit     float64
	RRVariationLimit   float64
	RMSSDSpan          int // successive intervals considered for RMSSD
	EventCooldown      time.Duration

	// Degraded-signal handling.
	LowSignalAmplitude float64
	LowSignalFrames    int
	BeepConfidence     float64
}

// DefaultConfig returns the tuned defaults for fingertip camera PPG at
// 20-30 Hz. Input scale is arbitrary; every threshold that touches raw values
// is either relative to the tracked pulse amplitude or exposed here.
func DefaultConfig() Config {
	return Config{
		SampleRate: 30.0,

		MinBPM: 40,
		MaxBPM: 200,

		MedianWindowMin:     3,
		MedianWindowMax:     7,
		AverageWindowMin:    5,
		AverageWindowMax:    11,
		SmoothingAlpha:      0.3,
		BaselineWindow:      15,
		BaselinePull:        0.1,
		HarmonicEnhancement: true,
		HarmonicWeights:     []float64{0.5, 0.3, 0.2},
		MotionWindow:        15,
		MotionAlpha:         0.3,
		MotionThreshold:     25.0,

		SignalBufferSize:  90,
		HistoryBufferSize: 150, // covers 3x the beat period at MinBPM

		QualityAlpha:         0.2,
		QualityHistorySize:   5,
		QualityDeltaUnstable: 0.25,
		AmplitudeWeight:      0.6,
		RRStabilityWeight:    0.4,

		BaseThresholdFraction: 0.35,
		AmplitudeAlpha:        0.1,
		ThresholdScaleLowSNR:  1.3,
		ThresholdScaleHighSNR: 0.7,

		ShapeRadius:              5,
		MinShapeScore:            0.4,
		LowAmplitudeShapeScore:   0.55,
		ConsistencyLooseBand:     0.4,
		ConsistencyStrictBand:    0.2,
		ProminenceWindowFraction: 0.6,
		MinProminenceFactor:      0.5,
		TemplateWidth:            31,
		TemplateDepth:            5,
		MinTemplateCorrelation:   0.5,
		LowAmplitudeCorrelation:  0.6,
		TemplateNeutralScore:     0.5,
		AmplitudeHistorySize:     5,

		DetectorWeight:           0.20,
		ShapeWeight:              0.15,
		ConsistencyWeight:        0.15,
		ProminenceWeight:         0.15,
		TemplateWeight:           0.35,
		AcceptConfidence:         0.70,
		BootstrapConfidence:      0.40,
		TemplateUpdateConfidence: 0.80,
		MotionPenalty:            0.75,
		StabilityFloor:           0.6,

		BPMHistorySize:       8,
		RRHistorySize:        16,
		BPMAlpha:             0.2,
		IntervalSlack:        0.2,
		MADFactor:            2.5,
		MADMinSamples:        4,
		StabilityStdDevLimit: 10.0,
		WarmupDuration:       3 * time.Second,

		BradycardiaBPM:     50,
		TachycardiaBPM:     120,
		ExtrasystoleFactor: 0.7,
		RMSSDLimit:         150,
		RMSSDSoftLimit:     100,
		RRVariationLimit:   0.25,
		RMSSDSpan:          5,
		EventCooldown:      1200 * time.Millisecond,

		LowSignalAmplitude: 1.0,
		LowSignalFrames:    60,
		BeepConfidence:     0.8,
	}
}

// adaptiveWindow interpolates a window size between min and max bounds from
// the current heart rate: narrower at high BPM (shorter beats need a faster
// filter), wider at low BPM. The result is rounded to the nearest odd value so
// the median stays centered. A non-positive bpm yields the midpoint.
func adaptiveWindow(minSize, maxSize int, bpm, minBPM, maxBPM float64) int {
	if minSize > maxSize {
		minSize, maxSize = maxSize, minSize
	}
	t := 0.5
	if bpm > 0 && maxBPM > minBPM {
		t = (bpm - minBPM) / (maxBPM - minBPM)
		t = clamp01(t)
	}
	size := float64(maxSize) - t*float64(maxSize-minSize)

	rounded := int(size + 0.5)
	if rounded%2 == 0 {
		// Round to the nearest odd value without leaving the bounds.
		if float64(rounded) > size {
			rounded--
		} else {
			rounded++
		}
	}
	if rounded < minSize {
		rounded = minSize
	}
	if rounded > maxSize {
		rounded = maxSize
	}
	return rounded
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
