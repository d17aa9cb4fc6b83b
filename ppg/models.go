package ppg

import "time"

// Result is the per-sample output of the detector. Exactly one Result is
// produced per processed frame; the contract is "always well-formed", even
// under degraded signal.
type Result struct {
	BPM             uint32  `json:"bpm"`
	Confidence      float64 `json:"confidence"`
	IsPeak          bool    `json:"isPeak"`
	FilteredValue   float64 `json:"filteredValue"`
	MotionDetected  bool    `json:"isMotionDetected"`
	QualityUnstable bool    `json:"isQualityUnstable"`
	BPMStability    float64 `json:"bpmStabilityScore"`
}

// RRSnapshot is a read-only copy of the accepted inter-beat interval history.
type RRSnapshot struct {
	Intervals    []uint32   `json:"intervals"` // milliseconds, oldest first
	LastPeakTime *time.Time `json:"lastPeakTime,omitempty"`
}

// ArrhythmiaType labels a rhythm-irregularity classification.
type ArrhythmiaType string

const (
	Bradycardia  ArrhythmiaType = "bradycardia"
	Tachycardia  ArrhythmiaType = "tachycardia"
	Irregular    ArrhythmiaType = "irregular"
	Extrasystole ArrhythmiaType = "extrasystole"
)

// ArrhythmiaEvent is emitted when a newly accepted RR interval triggers a
// classification. Events are delivered to the observer, never stored here.
type ArrhythmiaEvent struct {
	Type      ArrhythmiaType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	BPM       float64        `json:"bpm"`
	RRMs      float64        `json:"rr"`
}

// Beeper is the audio-feedback collaborator. PlayBeep is fire-and-forget; the
// detector makes no assumption about whether or how the sound is rendered.
type Beeper interface {
	PlayBeep(intensity float64)
}
