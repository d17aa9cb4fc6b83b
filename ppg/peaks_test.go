package ppg

import (
	"math"
	"testing"
	"time"
)

func TestPeakDetectorFiresOnConcaveRise(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p := newPeakDetector(&cfg)

	now := time.Unix(0, 0)
	threshold := 10.0

	// Rising but decelerating: 5, 9, 12 has a negative second derivative at
	// the last step, with the value clear of the threshold.
	values := []float64{5, 9, 12}
	var candidate bool
	var baseConf float64
	for i, v := range values {
		now = now.Add(33 * time.Millisecond)
		candidate, baseConf = p.detect(now, v, threshold)
		if i < len(values)-1 && candidate {
			t.Fatalf("sample %d: premature candidate", i)
		}
	}
	if !candidate {
		t.Fatal("expected a candidate on the decelerating rise")
	}
	want := 12.0 / (2 * threshold)
	if math.Abs(baseConf-want) > 1e-9 {
		t.Errorf("base confidence = %.3f, want %.3f", baseConf, want)
	}
}

func TestPeakDetectorRejectsAcceleratingRise(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p := newPeakDetector(&cfg)

	now := time.Unix(0, 0)
	for _, v := range []float64{2, 3, 5, 9, 17} {
		now = now.Add(33 * time.Millisecond)
		if candidate, _ := p.detect(now, v, 1.0); candidate {
			t.Fatalf("accelerating rise at %.0f should not produce a candidate", v)
		}
	}
}

func TestPeakDetectorRefractorySuppression(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p := newPeakDetector(&cfg)

	start := time.Unix(0, 0)
	p.markAccepted(start)

	// Same concave rise twice: once inside the refractory window, once after.
	inside := start.Add(p.minPeakInterval() / 2)
	for i, v := range []float64{5, 9, 12} {
		if candidate, _ := p.detect(inside.Add(time.Duration(i)*33*time.Millisecond), v, 10.0); candidate {
			t.Fatal("candidate fired inside the refractory window")
		}
	}

	after := start.Add(p.minPeakInterval() + time.Second)
	var candidate bool
	for i, v := range []float64{5, 9, 12} {
		candidate, _ = p.detect(after.Add(time.Duration(i)*33*time.Millisecond), v, 10.0)
	}
	if !candidate {
		t.Error("expected a candidate once the refractory window elapsed")
	}
}

func TestPeakDetectorNeedsHistory(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p := newPeakDetector(&cfg)

	now := time.Unix(0, 0)
	for i := 0; i < 2; i++ {
		if candidate, _ := p.detect(now.Add(time.Duration(i)*33*time.Millisecond), 100, 1.0); candidate {
			t.Fatalf("sample %d: candidate before the derivative history exists", i)
		}
	}
}

func TestPeakDetectorIgnoresZeroThreshold(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p := newPeakDetector(&cfg)

	now := time.Unix(0, 0)
	for i, v := range []float64{5, 9, 12} {
		if candidate, _ := p.detect(now.Add(time.Duration(i)*33*time.Millisecond), v, 0); candidate {
			t.Fatal("candidate fired with no threshold established")
		}
	}
}

func TestPeakDetectorReset(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p := newPeakDetector(&cfg)

	now := time.Unix(0, 0)
	for i, v := range []float64{5, 9, 12} {
		p.detect(now.Add(time.Duration(i)*33*time.Millisecond), v, 10.0)
	}
	p.markAccepted(now)
	p.reset()

	if !p.lastAccepted.IsZero() || p.seen != 0 {
		t.Error("reset should clear the refractory gate and history")
	}
}
