package ppg

import (
	"math"
	"testing"
)

func TestBPMEstimatorRejectsImplausibleIntervals(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)

	cases := []struct {
		name string
		ms   float64
	}{
		{"nan", math.NaN()},
		{"zero", 0},
		{"negative", -800},
		{"too short", 100},
		{"too long", 4000},
	}
	for _, tc := range cases {
		if b.addInterval(tc.ms) {
			t.Errorf("interval %q (%v ms) was accepted", tc.name, tc.ms)
		}
	}
	if got := b.report(false); got != 0 {
		t.Fatalf("expected no BPM after rejected intervals, got %d", got)
	}
}

func TestBPMEstimatorMADFilterRejectsOutlier(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)

	for _, ms := range []float64{800, 810, 795, 805} {
		if !b.addInterval(ms) {
			t.Fatalf("steady interval %v ms rejected", ms)
		}
	}

	// 1600 ms passes the hard physiological band but is a clear statistical
	// outlier against the established rhythm.
	if b.addInterval(1600) {
		t.Fatal("outlier interval 1600 ms was accepted")
	}
	if !b.addInterval(800) {
		t.Fatal("steady interval rejected after the outlier")
	}

	got := b.report(false)
	if got < 73 || got > 77 {
		t.Fatalf("expected BPM near 75, got %d", got)
	}
}

func TestBPMEstimatorMADFilterDisabledOnIdenticalRhythm(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)

	// Identical intervals make the MAD zero; the filter must step aside
	// instead of rejecting everything that differs.
	for i := 0; i < 6; i++ {
		if !b.addInterval(800) {
			t.Fatal("identical interval rejected")
		}
	}
	if !b.addInterval(850) {
		t.Fatal("plausible interval rejected under zero MAD")
	}
}

func TestBPMEstimatorStability(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	steady := newBPMEstimator(&cfg)
	for i := 0; i < 6; i++ {
		steady.addInterval(800)
	}
	if s := steady.stability(); s < 0.95 {
		t.Fatalf("expected stability near 1 on identical intervals, got %.3f", s)
	}

	erratic := newBPMEstimator(&cfg)
	for _, ms := range []float64{600, 1000, 700, 950, 650, 990} {
		erratic.addInterval(ms)
	}
	if s := erratic.stability(); s >= steady.stability() {
		t.Fatalf("erratic rhythm should score below steady: %.3f", s)
	}
}

func TestBPMEstimatorStabilityGrowsWithHistory(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)

	if s := b.stability(); s != 0 {
		t.Fatalf("expected zero stability with no history, got %.3f", s)
	}
	b.addInterval(800)
	one := b.stability()
	b.addInterval(800)
	two := b.stability()
	if one <= 0 || two <= one {
		t.Fatalf("expected stability to grow with sparse history: %.3f then %.3f", one, two)
	}
}

func TestBPMEstimatorSeedIsReplacedByMeasurement(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)

	b.seed(100)
	if got := b.current(); got != 100 {
		t.Fatalf("expected seeded BPM 100, got %.1f", got)
	}

	// The first measured interval replaces the seed outright instead of
	// blending with it.
	b.addInterval(833)
	if got := b.current(); math.Abs(got-72) > 0.5 {
		t.Fatalf("expected measured BPM near 72 after seeding, got %.2f", got)
	}
}

func TestBPMEstimatorSeedIgnoredOutOfBand(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)

	b.seed(250)
	if got := b.current(); got != 0 {
		t.Fatalf("out-of-band seed was installed: %.1f", got)
	}
}

func TestBPMEstimatorReportClampsAndHoldsDuringWarmup(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	b := newBPMEstimator(&cfg)
	for i := 0; i < 5; i++ {
		b.addInterval(833)
	}

	if got := b.report(true); got != 0 {
		t.Fatalf("expected no report during warmup, got %d", got)
	}
	got := b.report(false)
	if got < uint32(cfg.MinBPM) || got > uint32(cfg.MaxBPM) {
		t.Fatalf("reported BPM %d outside the physiological band", got)
	}
}
