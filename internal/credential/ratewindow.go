package credential

import "time"

// RateHorizon is how far back call timestamps are retained for rate estimation.
const RateHorizon = 120 * time.Second

// rateWindow is a bounded-duration queue of call timestamps for one credential.
// Entries older than the horizon are evicted lazily on each observation.
type rateWindow struct {
	horizon    time.Duration
	timestamps []time.Time
}

func newRateWindow(horizon time.Duration) *rateWindow {
	return &rateWindow{horizon: horizon}
}

// observe appends now, prunes stale entries, and returns the average calls per
// minute across the retained samples. With fewer than two samples (or a zero
// span) the raw sample count is returned as a degenerate rate.
func (w *rateWindow) observe(now time.Time) float64 {
	w.timestamps = append(w.timestamps, now)

	cutoff := now.Add(-w.horizon)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	count := len(w.timestamps)
	if count < 2 {
		return float64(count)
	}

	span := w.timestamps[count-1].Sub(w.timestamps[0]).Minutes()
	if span <= 0 {
		return float64(count)
	}
	return float64(count-1) / span
}
