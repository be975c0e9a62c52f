// Package hormone implements the agent's bounded scalar mood state: five
// named levels that decay toward a baseline, interact through declared
// cross-effects, and gate task admission in the scheduler.
package hormone

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"codenerd-cognitive/internal/logging"
)

// Type identifies one of the five hormone levels.
type Type string

const (
	Alert     Type = "alert"
	Stress    Type = "stress"
	Reward    Type = "reward"
	Stability Type = "stability"
	Curiosity Type = "curiosity"
)

var allTypes = []Type{Alert, Stress, Reward, Stability, Curiosity}

// Valid reports whether t is one of the five known hormone types.
func (t Type) Valid() bool {
	switch t {
	case Alert, Stress, Reward, Stability, Curiosity:
		return true
	default:
		return false
	}
}

// ValidationError reports an invalid hormone type or out-of-range input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hormone: invalid %s: %s", e.Field, e.Msg)
}

// HistoryEntry records one adjustment or set applied to a hormone level.
type HistoryEntry struct {
	Timestamp time.Time
	Type      Type
	Delta      float64
	Reason    string
}

// Advice is one prioritized recommendation surfaced by the field.
type Advice struct {
	Severity float64
	Type     Type
	Message  string
}

// TaskRecommendation summarizes how the current hormone state should
// shape task admission and selection.
type TaskRecommendation struct {
	AcceptNew     bool
	PreferredKinds []string
	AvoidKinds     []string
}

const defaultHistoryCap = 1000

type levelConfig struct {
	baseline float64
	decay    float64 // fraction moved toward baseline per decay_tick
}

// Field is the sole writer of hormone levels; callers observe through
// Snapshot or by reading emitted change events.
type Field struct {
	mu       sync.RWMutex
	levels   map[Type]float64
	configs  map[Type]levelConfig
	history  []HistoryEntry
	histCap  int
	onChange func(t Type, old, new float64, reason string)
}

// New creates a hormone field at baseline levels.
func New() *Field {
	f := &Field{
		levels: map[Type]float64{
			Alert:     0.3,
			Stress:    0.2,
			Reward:    0.3,
			Stability: 0.6,
			Curiosity: 0.4,
		},
		configs: map[Type]levelConfig{
			Alert:     {baseline: 0.3, decay: 0.1},
			Stress:    {baseline: 0.2, decay: 0.08},
			Reward:    {baseline: 0.3, decay: 0.15},
			Stability: {baseline: 0.6, decay: 0.05},
			Curiosity: {baseline: 0.4, decay: 0.1},
		},
		histCap: defaultHistoryCap,
	}
	return f
}

// OnChange registers a callback invoked synchronously after every
// committed adjustment, used by the composition root to bridge into the
// event bus's hormone:changed topic.
func (f *Field) OnChange(cb func(t Type, old, new float64, reason string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = cb
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Adjust applies delta to type t, clamps to [0,1], records history,
// applies cross-effects, and returns the new level.
func (f *Field) Adjust(t Type, delta float64, reason string) (float64, error) {
	if !t.Valid() {
		return 0, &ValidationError{Field: "type", Msg: string(t)}
	}

	f.mu.Lock()
	old := f.levels[t]
	newLevel := clamp01(old + delta)
	f.levels[t] = newLevel
	f.recordLocked(t, delta, reason)
	f.applyCrossEffectsLocked()
	cb := f.onChange
	f.mu.Unlock()

	logging.HormoneDebug("adjust %s %+.3f -> %.3f (%s)", t, delta, newLevel, reason)
	if cb != nil {
		cb(t, old, newLevel, reason)
	}
	return newLevel, nil
}

// Set overwrites type t to value, clamped, used for reset/calibration.
func (f *Field) Set(t Type, value float64, reason string) (float64, error) {
	if !t.Valid() {
		return 0, &ValidationError{Field: "type", Msg: string(t)}
	}

	f.mu.Lock()
	old := f.levels[t]
	newLevel := clamp01(value)
	f.levels[t] = newLevel
	f.recordLocked(t, newLevel-old, reason)
	cb := f.onChange
	f.mu.Unlock()

	logging.Hormone("set %s = %.3f (%s)", t, newLevel, reason)
	if cb != nil {
		cb(t, old, newLevel, reason)
	}
	return newLevel, nil
}

func (f *Field) recordLocked(t Type, delta float64, reason string) {
	f.history = append(f.history, HistoryEntry{
		Timestamp: time.Now(),
		Type:      t,
		Delta:     delta,
		Reason:    reason,
	})
	if len(f.history) > f.histCap {
		f.history = f.history[len(f.history)-f.histCap:]
	}
}

// applyCrossEffectsLocked implements the declared cross-effects. Must be
// called with f.mu held.
func (f *Field) applyCrossEffectsLocked() {
	if f.levels[Alert] > 0.6 {
		f.levels[Stress] = clamp01(f.levels[Stress] * 0.95)
	}
	if f.levels[Reward] > 0.7 {
		f.levels[Stability] = clamp01(f.levels[Stability] + 0.02)
	}
	if f.levels[Stability] > 0.6 {
		f.levels[Stress] = clamp01(f.levels[Stress] * 0.95)
	}
	// curiosity > 0.7 affects fatigue if tracked; fatigue is not one of
	// the five core levels in this implementation, so this cross-effect
	// is a no-op hook preserved for parity with the decay/admission math
	// that otherwise references a fatigue level via config.
}

// DecayTick moves every level toward its baseline by its configured rate,
// never crossing the baseline. Each call applies one full step whatever
// the time since the previous call: calling twice moves a level off its
// baseline further than calling once. Only levels already at baseline are
// left unchanged.
func (f *Field) DecayTick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range allTypes {
		cfg := f.configs[t]
		cur := f.levels[t]
		if cur == cfg.baseline {
			continue
		}
		delta := (cfg.baseline - cur) * cfg.decay
		next := cur + delta
		// never cross the baseline
		if (cur < cfg.baseline && next > cfg.baseline) || (cur > cfg.baseline && next < cfg.baseline) {
			next = cfg.baseline
		}
		f.levels[t] = next
	}
}

// Levels is an immutable snapshot of all five hormone levels.
type Levels struct {
	Alert     float64
	Stress    float64
	Reward    float64
	Stability float64
	Curiosity float64
}

// Snapshot returns an immutable copy of the current levels.
func (f *Field) Snapshot() Levels {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Levels{
		Alert:     f.levels[Alert],
		Stress:    f.levels[Stress],
		Reward:    f.levels[Reward],
		Stability: f.levels[Stability],
		Curiosity: f.levels[Curiosity],
	}
}

// History returns a copy of the bounded history ring, most recent last.
func (f *Field) History() []HistoryEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]HistoryEntry, len(f.history))
	copy(out, f.history)
	return out
}

// Advice returns a prioritized list of recommendations derived from the
// current levels, most severe first.
func (f *Field) Advice() []Advice {
	snap := f.Snapshot()
	var advice []Advice

	if snap.Stress >= 0.8 {
		advice = append(advice, Advice{Severity: snap.Stress, Type: Stress, Message: "stress critical: reject non-critical work"})
	} else if snap.Stress >= 0.6 {
		advice = append(advice, Advice{Severity: snap.Stress * 0.7, Type: Stress, Message: "stress elevated: prefer lighter tasks"})
	}
	if snap.Alert >= 0.6 {
		advice = append(advice, Advice{Severity: snap.Alert, Type: Alert, Message: "alert elevated: prioritize reactive work"})
	}
	if snap.Curiosity >= 0.7 {
		advice = append(advice, Advice{Severity: snap.Curiosity * 0.5, Type: Curiosity, Message: "curiosity high: favor exploration"})
	}
	if snap.Stability < 0.3 {
		advice = append(advice, Advice{Severity: 1 - snap.Stability, Type: Stability, Message: "stability low: avoid further disruption"})
	}

	sort.Slice(advice, func(i, j int) bool { return advice[i].Severity > advice[j].Severity })
	return advice
}

// TaskRecommendation returns admission/selection guidance derived from
// the current hormone state.
func (f *Field) TaskRecommendation() TaskRecommendation {
	snap := f.Snapshot()

	switch {
	case snap.Stress >= 0.8:
		return TaskRecommendation{
			AcceptNew:      false,
			AvoidKinds:     []string{"complex", "exploration"},
		}
	case snap.Alert >= 0.6:
		return TaskRecommendation{
			AcceptNew:      true,
			PreferredKinds: []string{"critical", "reactive"},
		}
	case snap.Curiosity >= 0.7:
		return TaskRecommendation{
			AcceptNew:      true,
			PreferredKinds: []string{"exploration", "learning"},
		}
	default:
		return TaskRecommendation{AcceptNew: true}
	}
}
