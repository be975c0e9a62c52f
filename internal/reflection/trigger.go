package reflection

import (
	"sync"
	"time"
)

// TriggerKind distinguishes how a trigger was sourced.
type TriggerKind string

const (
	TriggerScheduled       TriggerKind = "scheduled"
	TriggerPerformanceDrop TriggerKind = "performance-drop"
	TriggerAnomaly         TriggerKind = "anomaly"
	TriggerManual          TriggerKind = "manual"
)

// Trigger is one condition the periodic checker evaluates.
type Trigger struct {
	Kind      TriggerKind
	Name      string
	Enabled   bool
	Cooldown  time.Duration
	Condition func(window *Window) bool

	lastFired time.Time
	fireCount int
}

// TriggerEngine holds the collection of triggers and evaluates them on a
// periodic cadence.
type TriggerEngine struct {
	mu       sync.Mutex
	triggers []*Trigger
}

// NewTriggerEngine creates a trigger engine preloaded with the four
// built-in triggers.
func NewTriggerEngine() *TriggerEngine {
	e := &TriggerEngine{}
	e.triggers = []*Trigger{
		{
			Kind:     TriggerScheduled,
			Name:     "scheduled",
			Enabled:  true,
			Cooldown: 30 * time.Minute,
			Condition: func(w *Window) bool {
				return true // always fires once cooldown has elapsed
			},
		},
		{
			Kind:     TriggerPerformanceDrop,
			Name:     "performance-drop",
			Enabled:  true,
			Cooldown: 5 * time.Minute,
			Condition: func(w *Window) bool {
				d := w.Derive()
				return d.RecentSuccessRate < 0.9 || d.Trend == TrendDegrading || d.RecentAverageMs > 2000
			},
		},
		{
			Kind:     TriggerAnomaly,
			Name:     "anomaly",
			Enabled:  true,
			Cooldown: 10 * time.Minute,
			Condition: func(w *Window) bool {
				d := w.Derive()
				if d.ConsecutiveFailures >= 3 {
					return true
				}
				if w.RecentErrorCount(10) >= 5 {
					return true
				}
				return highSeverityAnomaly(w)
			},
		},
		{
			Kind:     TriggerManual,
			Name:     "manual",
			Enabled:  true,
			Cooldown: 0,
			Condition: func(w *Window) bool {
				return false // only ever fired explicitly via FireManual
			},
		},
	}
	return e
}

// highSeverityAnomaly reports a "high" severity anomaly: response time
// exceeding 3x the window average, or success rate below 0.5 with at
// least 5 samples.
func highSeverityAnomaly(w *Window) bool {
	samples := w.Snapshot()
	if len(samples) < 5 {
		return false
	}
	d := w.Derive()
	avg := avgResponse(samples)
	if avg <= 0 {
		return false
	}
	if d.RecentAverageMs > avg*3 {
		return true
	}
	if d.RecentSuccessRate < 0.5 {
		return true
	}
	return false
}

// Fired is one trigger's firing result.
type Fired struct {
	Trigger *Trigger
	At      time.Time
}

// Check evaluates every enabled trigger whose cooldown has elapsed
// against window, returning those that fired. Firing updates last-fired
// time and increments fire count.
func (e *TriggerEngine) Check(window *Window) []Fired {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	var fired []Fired
	for _, t := range e.triggers {
		if !t.Enabled {
			continue
		}
		if now.Sub(t.lastFired) < t.Cooldown {
			continue
		}
		if t.Condition(window) {
			t.lastFired = now
			t.fireCount++
			fired = append(fired, Fired{Trigger: t, At: now})
		}
	}
	return fired
}

// FireManual forces the manual trigger to fire regardless of its
// (always-false) condition, used by explicit operator requests.
func (e *TriggerEngine) FireManual() Fired {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	for _, t := range e.triggers {
		if t.Kind == TriggerManual {
			t.lastFired = now
			t.fireCount++
			return Fired{Trigger: t, At: now}
		}
	}
	return Fired{}
}

// Triggers returns a copy of the registered triggers for inspection.
func (e *TriggerEngine) Triggers() []*Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Trigger, len(e.triggers))
	copy(out, e.triggers)
	return out
}
