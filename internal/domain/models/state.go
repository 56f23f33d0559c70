package models

import "time"

// TrendPoint is one {value, timestamp} sample in a trend window.
type TrendPoint struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// TrendWindow is a bounded FIFO of trend points. Not safe for concurrent
// use; the scheduler's single-writer discipline covers it.
type TrendWindow struct {
	points []TrendPoint
	max    int
}

// NewTrendWindow creates a window holding at most max points.
func NewTrendWindow(max int) *TrendWindow {
	if max < 1 {
		max = 1
	}
	return &TrendWindow{max: max}
}

// Push appends a point, evicting the oldest when full.
func (w *TrendWindow) Push(p TrendPoint) {
	if len(w.points) == w.max {
		copy(w.points, w.points[1:])
		w.points = w.points[:len(w.points)-1]
	}
	w.points = append(w.points, p)
}

// Values returns the window values oldest-first.
func (w *TrendWindow) Values() []float64 {
	out := make([]float64, len(w.points))
	for i, p := range w.points {
		out[i] = p.Value
	}
	return out
}

// Len returns the number of points currently held.
func (w *TrendWindow) Len() int { return len(w.points) }

// AlertLog remembers recently emitted alert keys for deduplication.
// Entries expire after the configured window.
type AlertLog struct {
	seen   map[string]time.Time
	window time.Duration
	max    int
}

// NewAlertLog creates a log suppressing repeats within window, holding at
// most max keys.
func NewAlertLog(window time.Duration, max int) *AlertLog {
	if max < 1 {
		max = 64
	}
	return &AlertLog{seen: make(map[string]time.Time), window: window, max: max}
}

// Observe records key at now and reports whether it was already seen
// within the dedup window.
func (l *AlertLog) Observe(key string, now time.Time) bool {
	if at, ok := l.seen[key]; ok && now.Sub(at) < l.window {
		return true
	}
	if len(l.seen) >= l.max {
		l.prune(now)
	}
	l.seen[key] = now
	return false
}

func (l *AlertLog) prune(now time.Time) {
	for k, at := range l.seen {
		if now.Sub(at) >= l.window {
			delete(l.seen, k)
		}
	}
	// still full of live entries: drop the oldest
	if len(l.seen) >= l.max {
		var oldestKey string
		var oldest time.Time
		for k, at := range l.seen {
			if oldestKey == "" || at.Before(oldest) {
				oldestKey, oldest = k, at
			}
		}
		delete(l.seen, oldestKey)
	}
}

// TrackingState is the per-instrument scheduling and history state.
// Mutated only by the scheduler after a cycle completes for that
// instrument; never concurrently for the same instrument.
type TrackingState struct {
	Tier                Tier
	Interval            time.Duration
	ConsecutiveFailures int
	LastTracked         time.Time
	Paused              bool

	ShortWindow  *TrendWindow
	MediumWindow *TrendWindow
	LongWindow   *TrendWindow
	VolumeWindow *TrendWindow

	RecentAlerts *AlertLog
	Baseline     Baseline
	Targets      PriceTargets
}
