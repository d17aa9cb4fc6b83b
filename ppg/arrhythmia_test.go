package ppg

import (
	"testing"
	"time"
)

func TestArrhythmiaNoEventOnSteadyRhythm(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	rr := []float64{800, 800, 800, 800, 800, 800}
	if event := a.analyze(rr, time.Unix(10, 0)); event != nil {
		t.Fatalf("steady 75 BPM rhythm produced %s", event.Type)
	}
}

func TestArrhythmiaBradycardia(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	rr := []float64{1500, 1500, 1500, 1500}
	event := a.analyze(rr, time.Unix(10, 0))
	if event == nil || event.Type != Bradycardia {
		t.Fatalf("expected bradycardia at 40 BPM, got %+v", event)
	}
	if event.BPM > cfg.BradycardiaBPM {
		t.Fatalf("event BPM %.1f above the bradycardia limit", event.BPM)
	}
}

func TestArrhythmiaTachycardia(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	rr := []float64{400, 400, 400, 400}
	event := a.analyze(rr, time.Unix(10, 0))
	if event == nil || event.Type != Tachycardia {
		t.Fatalf("expected tachycardia at 150 BPM, got %+v", event)
	}
}

func TestArrhythmiaExtrasystole(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	// A single premature beat inside an otherwise steady 75 BPM rhythm. The
	// rhythm-level rate stays in the normal band, so this must classify as an
	// extrasystole rather than tachycardia.
	rr := []float64{800, 800, 800, 800, 300}
	event := a.analyze(rr, time.Unix(10, 0))
	if event == nil {
		t.Fatal("expected an event for the premature beat")
	}
	if event.Type != Extrasystole {
		t.Fatalf("expected extrasystole, got %s", event.Type)
	}
	if event.RRMs != 300 {
		t.Fatalf("expected the premature interval on the event, got %.0f", event.RRMs)
	}
}

func TestArrhythmiaSinglePrematureBeatEmitsExactlyOnce(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	// One abrupt short interval inside a steady rhythm, analyzed beat by beat
	// at real spacing. The premature beat must yield a single extrasystole:
	// its RMSSD echo persists past the cooldown and must not surface as a
	// trailing irregular event.
	intervals := []float64{800, 800, 800, 800, 300, 800, 800}

	base := time.Unix(10, 0)
	elapsed := 0.0
	var history []float64
	var events []ArrhythmiaEvent
	for _, rr := range intervals {
		history = append(history, rr)
		elapsed += rr
		now := base.Add(time.Duration(elapsed) * time.Millisecond)
		if event := a.analyze(history, now); event != nil {
			events = append(events, *event)
		}
	}

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %+v", len(events), events)
	}
	if events[0].Type != Extrasystole {
		t.Fatalf("expected extrasystole, got %s", events[0].Type)
	}
	if events[0].RRMs != 300 {
		t.Fatalf("expected the premature interval on the event, got %.0f", events[0].RRMs)
	}
}

func TestArrhythmiaCooldownSuppressesRepeats(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	rr := []float64{1500, 1500, 1500}
	base := time.Unix(10, 0)

	if event := a.analyze(rr, base); event == nil {
		t.Fatal("expected the first bradycardia event")
	}
	within := base.Add(cfg.EventCooldown / 2)
	if event := a.analyze(rr, within); event != nil {
		t.Fatalf("cooldown violated: second event %s after %v", event.Type, cfg.EventCooldown/2)
	}
	after := base.Add(cfg.EventCooldown + time.Millisecond)
	if event := a.analyze(rr, after); event == nil {
		t.Fatal("expected a new event once the cooldown expired")
	}

	if got := a.counts()[Bradycardia]; got != 2 {
		t.Fatalf("expected 2 tallied bradycardia events, got %d", got)
	}
}

func TestArrhythmiaNeedsMinimumHistory(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	if event := a.analyze([]float64{1500, 1500}, time.Unix(10, 0)); event != nil {
		t.Fatalf("classified with only two intervals: %s", event.Type)
	}
}

func TestArrhythmiaIrregularRhythm(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	// Large successive swings around a normal mean rate: neither brady, tachy
	// nor a single premature beat, but well past the RMSSD limit.
	rr := []float64{600, 1000, 620, 990, 610}
	event := a.analyze(rr, time.Unix(10, 0))
	if event == nil || event.Type != Irregular {
		t.Fatalf("expected irregular rhythm, got %+v", event)
	}
}

func TestArrhythmiaTalliesSurviveSessionReset(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	a := newArrhythmiaAnalyzer(&cfg)

	a.analyze([]float64{1500, 1500, 1500}, time.Unix(10, 0))
	a.reset()
	if got := a.counts()[Bradycardia]; got != 1 {
		t.Fatalf("tallies lost on session reset: %d", got)
	}

	// The cooldown clears on reset, so the next event emits immediately.
	if event := a.analyze([]float64{1500, 1500, 1500}, time.Unix(10, 1)); event == nil {
		t.Fatal("expected an event right after reset")
	}

	a.fullReset()
	if len(a.counts()) != 0 {
		t.Fatal("expected tallies to clear on full reset")
	}
}
