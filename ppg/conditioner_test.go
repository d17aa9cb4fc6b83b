package ppg

import (
	"math"
	"testing"
)

func TestAdaptiveWindowTracksHeartRate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cases := []struct {
		name string
		bpm  float64
	}{
		{"unknown rate", 0},
		{"resting", 45},
		{"normal", 72},
		{"elevated", 120},
		{"maximal", 200},
	}
	for _, tc := range cases {
		got := adaptiveWindow(cfg.MedianWindowMin, cfg.MedianWindowMax, tc.bpm, cfg.MinBPM, cfg.MaxBPM)
		if got%2 == 0 {
			t.Errorf("%s: window %d is even", tc.name, got)
		}
		if got < cfg.MedianWindowMin || got > cfg.MedianWindowMax {
			t.Errorf("%s: window %d outside [%d, %d]", tc.name, got, cfg.MedianWindowMin, cfg.MedianWindowMax)
		}
	}

	slow := adaptiveWindow(cfg.AverageWindowMin, cfg.AverageWindowMax, cfg.MinBPM, cfg.MinBPM, cfg.MaxBPM)
	fast := adaptiveWindow(cfg.AverageWindowMin, cfg.AverageWindowMax, cfg.MaxBPM, cfg.MinBPM, cfg.MaxBPM)
	if slow != cfg.AverageWindowMax || fast != cfg.AverageWindowMin {
		t.Fatalf("expected widest window at MinBPM and narrowest at MaxBPM, got %d and %d", slow, fast)
	}
}

func TestMedianOfTail(t *testing.T) {
	t.Parallel()

	r := NewRing(7)
	for _, v := range []float64{10, 12, 500, 11, 9} {
		r.Push(v)
	}
	if got := medianOfTail(r, 5); got != 11 {
		t.Fatalf("expected median 11 despite the impulse, got %v", got)
	}
	if got := medianOfTail(r, 4); got != 11.5 {
		t.Fatalf("expected even-window median 11.5, got %v", got)
	}
}

func TestConditionerSuppressesImpulseNoise(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := newConditioner(&cfg)

	var maxFiltered float64
	for i := 0; i < 60; i++ {
		v := 100.0
		if i == 30 {
			v = 1000 // single-frame impulse
		}
		filtered, _, _ := c.process(v, 0)
		if filtered > maxFiltered {
			maxFiltered = filtered
		}
	}
	if maxFiltered > 200 {
		t.Fatalf("impulse leaked through the filter cascade: max filtered %v", maxFiltered)
	}
}

func TestConditionerBaselineFollowsSignalFloor(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := newConditioner(&cfg)

	for i := 0; i < 120; i++ {
		c.process(100, 0)
	}
	if math.Abs(c.baseline-100) > 5 {
		t.Fatalf("baseline did not converge to the signal floor: %v", c.baseline)
	}
}

func TestConditionerMotionDetection(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := newConditioner(&cfg)

	sawMotion := false
	for i := 0; i < 60; i++ {
		v := 100.0
		if i%2 == 0 {
			v = 300 // violent frame-to-frame swings
		}
		if _, _, motion := c.process(v, 0); motion {
			sawMotion = true
		}
	}
	if !sawMotion {
		t.Fatal("expected motion on large raw swings")
	}

	for i := 0; i < 120; i++ {
		if _, _, motion := c.process(100, 0); !motion && i > 60 {
			return // score decayed, flag released
		}
	}
	t.Fatal("motion flag never released on a steady signal")
}

func TestConditionerHarmonicEnhancementNeedsHistory(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := newConditioner(&cfg)

	// With no accumulated history the delayed copies must be skipped and the
	// enhanced value equals the smoothed one.
	filtered, enhanced, _ := c.process(100, 72)
	if filtered != enhanced {
		t.Fatalf("enhancement applied without history: filtered %v enhanced %v", filtered, enhanced)
	}
}

func TestConditionerResetClearsState(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := newConditioner(&cfg)
	for i := 0; i < 50; i++ {
		c.process(float64(100+i), 72)
	}
	c.reset()

	if c.baseline != 0 || c.sampleCount != 0 || c.motionScore != 0 {
		t.Fatal("reset left residual state")
	}
	if c.history.Len() != 0 || c.medianRing.Len() != 0 {
		t.Fatal("reset left residual buffers")
	}
}
