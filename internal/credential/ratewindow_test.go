package credential

import (
	"testing"
	"time"
)

func TestObserveDegenerateRates(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w := newRateWindow(RateHorizon)
	if got := w.observe(base); got != 1 {
		t.Errorf("observe with single sample = %v, want 1", got)
	}

	// Two samples at the same instant have zero span.
	w = newRateWindow(RateHorizon)
	w.observe(base)
	if got := w.observe(base); got != 2 {
		t.Errorf("observe with zero span = %v, want 2", got)
	}
}

func TestObserveAverageRate(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w := newRateWindow(RateHorizon)
	w.observe(base)
	if got := w.observe(base.Add(time.Minute)); got != 1.0 {
		t.Errorf("2 samples over 1m = %v calls/min, want 1.0", got)
	}

	// Third sample 30s later: 3 samples over 1.5 minutes.
	if got := w.observe(base.Add(90 * time.Second)); got != 2.0/1.5 {
		t.Errorf("3 samples over 1.5m = %v calls/min, want %v", got, 2.0/1.5)
	}
}

func TestObservePrunesBeyondHorizon(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w := newRateWindow(RateHorizon)
	w.observe(base)
	w.observe(base.Add(time.Second))

	// Both earlier samples fall outside the 120s horizon of this observation.
	if got := w.observe(base.Add(RateHorizon + 2*time.Second)); got != 1 {
		t.Errorf("observe after horizon elapsed = %v, want 1", got)
	}
	if len(w.timestamps) != 1 {
		t.Errorf("retained %d timestamps, want 1", len(w.timestamps))
	}
}
