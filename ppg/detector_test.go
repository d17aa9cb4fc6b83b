package ppg

import (
	"math"
	"testing"
	"time"
)

// The scenario tests in this file drive the full pipeline with synthetic
// pulse trains at a fixed 30 Hz frame clock so every run is deterministic.

func TestDetectorConvergesOnSteadyRhythm(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	results := feedSignal(d, pulseTrain(72, 40, 30), 30)

	last := results[len(results)-1]
	if last.BPM < 67 || last.BPM > 77 {
		t.Fatalf("expected BPM near 72 after convergence, got %d", last.BPM)
	}
	if last.BPMStability < 0.8 {
		t.Fatalf("expected stability > 0.8 on a steady rhythm, got %.3f", last.BPMStability)
	}

	peaks := 0
	for _, r := range results {
		if r.IsPeak {
			peaks++
		}
	}
	// 40 s at 72 BPM is 48 beats; allow for warmup and bootstrap losses.
	if peaks < 20 {
		t.Fatalf("expected at least 20 accepted peaks, got %d", peaks)
	}
}

func TestDetectorReportsNothingDuringWarmup(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	d := NewDetector(cfg)
	signal := pulseTrain(72, 10, 30)

	start := time.Unix(0, 0)
	for i, v := range signal {
		ts := start.Add(time.Duration(float64(i) / 30 * float64(time.Second)))
		r := d.ProcessSampleAt(v, ts)
		if ts.Sub(start) < cfg.WarmupDuration && r.BPM != 0 {
			t.Fatalf("BPM reported during warmup at sample %d: %d", i, r.BPM)
		}
	}
}

func TestDetectorRefractoryBoundsIntervals(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	d := NewDetector(cfg)
	feedSignal(d, pulseTrain(72, 30, 30), 30)

	snapshot := d.RRIntervals()
	if len(snapshot.Intervals) == 0 {
		t.Fatal("expected accepted intervals on a clean signal")
	}
	minMs := uint32(60000 / cfg.MaxBPM * (1 - cfg.IntervalSlack))
	for _, rr := range snapshot.Intervals {
		if rr < minMs {
			t.Fatalf("interval %d ms violates the refractory bound %d ms", rr, minMs)
		}
	}
	if snapshot.LastPeakTime == nil {
		t.Fatal("expected a last peak time after accepted beats")
	}
}

func TestDetectorBPMStaysInPhysiologicalBand(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	d := NewDetector(cfg)
	signal := pulseTrain(72, 30, 30)
	// Deterministic pseudo-noise on top of the clean train.
	for i := range signal {
		signal[i] += 4 * math.Sin(float64(i)*1.7) * math.Cos(float64(i)*0.31)
	}

	for _, r := range feedSignal(d, signal, 30) {
		if r.BPM != 0 && (float64(r.BPM) < cfg.MinBPM || float64(r.BPM) > cfg.MaxBPM) {
			t.Fatalf("reported BPM %d outside [%v, %v]", r.BPM, cfg.MinBPM, cfg.MaxBPM)
		}
	}
}

func TestDetectorHandlesFlatSignal(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	signal := make([]float64, 300)
	for i := range signal {
		signal[i] = 100
	}

	for i, r := range feedSignal(d, signal, 30) {
		assertWellFormed(t, i, r)
		if r.BPM != 0 {
			t.Fatalf("flat signal produced BPM %d at sample %d", r.BPM, i)
		}
		if r.IsPeak {
			t.Fatalf("flat signal produced a peak at sample %d", i)
		}
	}
}

func TestDetectorHandlesNaNAndInf(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	signal := pulseTrain(72, 10, 30)
	for i := range signal {
		switch i % 7 {
		case 2:
			signal[i] = math.NaN()
		case 5:
			signal[i] = math.Inf(1)
		}
	}

	for i, r := range feedSignal(d, signal, 30) {
		assertWellFormed(t, i, r)
	}
}

func TestDetectorResetRestoresInitialState(t *testing.T) {
	t.Parallel()

	signal := pulseTrain(72, 20, 30)

	fresh := NewDetector(DefaultConfig())
	want := feedSignal(fresh, signal, 30)

	d := NewDetector(DefaultConfig())
	feedSignal(d, pulseTrain(95, 12, 30), 30)
	d.Reset()
	got := feedSignal(d, signal, 30)

	if len(got) != len(want) {
		t.Fatalf("result count mismatch: %d vs %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("sample %d diverged after reset: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestDetectorRecoversStateAfterLowSignal(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	d := NewDetector(cfg)

	// Continuous 30 Hz clock across both phases: clean pulses, then the
	// finger comes off and only the flat pedestal remains.
	signal := pulseTrain(72, 15, 30)
	start := time.Unix(0, 0)
	frame := 0
	tick := func() time.Time {
		ts := start.Add(time.Duration(float64(frame) / 30 * float64(time.Second)))
		frame++
		return ts
	}
	for _, v := range signal {
		d.ProcessSampleAt(v, tick())
	}

	// The weak-sample counter may only start once the raw window has drained
	// the last pulse, so zeroing is due within the frame count plus one
	// motion window.
	deadline := cfg.LowSignalFrames + cfg.MotionWindow
	zeroedAt := -1
	for i := 0; i < 300; i++ {
		r := d.ProcessSampleAt(100, tick())
		if zeroedAt < 0 && r.BPM == 0 && r.Confidence == 0 {
			zeroedAt = i
		}
	}
	if zeroedAt < 0 {
		t.Fatal("BPM and confidence never cleared after sustained low signal")
	}
	if zeroedAt > deadline {
		t.Fatalf("stale reading survived %d flat frames, want zeroed within %d", zeroedAt, deadline)
	}
	if len(d.RRIntervals().Intervals) != 0 {
		t.Fatal("expected interval history to clear after sustained low signal")
	}

	// The session must recover on its own once the signal returns.
	for _, v := range pulseTrain(72, 30, 30) {
		d.ProcessSampleAt(v, tick())
	}
	snapshot := d.RRIntervals()
	if len(snapshot.Intervals) == 0 {
		t.Fatal("expected new accepted intervals after the signal returned")
	}
}

func TestDetectorMonitoringToggle(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	feedSignal(d, pulseTrain(72, 10, 30), 30)

	d.SetMonitoring(false)
	if d.Monitoring() {
		t.Fatal("expected monitoring off")
	}
	if r := d.ProcessSample(150); r != (Result{}) {
		t.Fatalf("expected zero result while stopped, got %+v", r)
	}
	if len(d.RRIntervals().Intervals) != 0 {
		t.Fatal("expected detection state to clear on stop")
	}

	d.SetMonitoring(true)
	results := feedSignal(d, pulseTrain(72, 30, 30), 30)
	last := results[len(results)-1]
	if last.BPM < 67 || last.BPM > 77 {
		t.Fatalf("expected re-convergence after restart, got BPM %d", last.BPM)
	}
}

func TestDetectorFullResetClearsTallies(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	feedSignal(d, pulseTrain(130, 40, 30), 30)

	d.Reset()
	// Session reset keeps the cross-session tallies.
	total := 0
	for _, n := range d.ArrhythmiaCounts() {
		total += n
	}
	if total == 0 {
		t.Skip("no arrhythmia events were emitted for this profile")
	}

	d.FullReset()
	if len(d.ArrhythmiaCounts()) != 0 {
		t.Fatal("expected tallies to clear on full reset")
	}
}

func TestDetectorBeepsOnConfidentBeats(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	beeper := &recordingBeeper{}
	d.SetBeeper(beeper)

	feedSignal(d, pulseTrain(72, 40, 30), 30)

	if len(beeper.intensities) == 0 {
		t.Fatal("expected beeps on a clean converged signal")
	}
	for _, intensity := range beeper.intensities {
		if intensity < 0.8 || intensity > 1 {
			t.Fatalf("beep intensity %.3f outside [0.8, 1]", intensity)
		}
	}
}

func TestDetectorRRSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	feedSignal(d, pulseTrain(72, 30, 30), 30)

	first := d.RRIntervals()
	if len(first.Intervals) == 0 {
		t.Fatal("expected intervals")
	}
	first.Intervals[0] = 1

	second := d.RRIntervals()
	if second.Intervals[0] == 1 {
		t.Fatal("snapshot shares memory with the detector")
	}
}

func assertWellFormed(t *testing.T, i int, r Result) {
	t.Helper()
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		t.Fatalf("sample %d: confidence %v out of range", i, r.Confidence)
	}
	if math.IsNaN(r.BPMStability) || r.BPMStability < 0 || r.BPMStability > 1 {
		t.Fatalf("sample %d: stability %v out of range", i, r.BPMStability)
	}
	if math.IsNaN(r.FilteredValue) || math.IsInf(r.FilteredValue, 0) {
		t.Fatalf("sample %d: filtered value %v not finite", i, r.FilteredValue)
	}
}

// pulseTrain synthesizes a fingertip-style PPG trace: a DC pedestal with one
// Gaussian systolic pulse per beat.
func pulseTrain(bpm float64, seconds, rate float64) []float64 {
	period := 60.0 / bpm
	sigma := 0.1 // pulse width in seconds
	n := int(seconds * rate)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		phase := math.Mod(t, period) - period/2
		out[i] = 100 + 25*math.Exp(-phase*phase/(2*sigma*sigma))
	}
	return out
}

// feedSignal drives the detector at a fixed frame clock starting at the Unix
// epoch and collects every result.
func feedSignal(d *Detector, signal []float64, rate float64) []Result {
	start := time.Unix(0, 0)
	results := make([]Result, len(signal))
	for i, v := range signal {
		ts := start.Add(time.Duration(float64(i) / rate * float64(time.Second)))
		results[i] = d.ProcessSampleAt(v, ts)
	}
	return results
}

type recordingBeeper struct {
	intensities []float64
}

func (b *recordingBeeper) PlayBeep(intensity float64) {
	b.intensities = append(b.intensities, intensity)
}
