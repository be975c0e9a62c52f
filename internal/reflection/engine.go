package reflection

import (
	"time"

	"codenerd-cognitive/internal/eventbus"
	"codenerd-cognitive/internal/logging"
)

// StatsProvider supplies the memory statistics the analyzer needs,
// decoupling this package from the memory package's concrete Store.
type StatsProvider func() MemoryStats

// Engine wires the trigger checker, performance window, analyzer, and
// proposal lifecycle into a single periodic reflection pass.
type Engine struct {
	window    *Window
	triggers  *TriggerEngine
	lifecycle *Lifecycle
	bus       *eventbus.Bus
	stats     StatsProvider
	mode      ApprovalMode

	stopCh  chan struct{}
	stopped bool
}

// New creates a reflection engine. mode governs how new proposals enter
// the lifecycle; mutator applies an approved action's effect.
func New(bus *eventbus.Bus, stats StatsProvider, mode ApprovalMode, mutator Mutator) *Engine {
	return &Engine{
		window:    NewWindow(0),
		triggers:  NewTriggerEngine(),
		lifecycle: NewLifecycle(mutator),
		bus:       bus,
		stats:     stats,
		mode:      mode,
		stopCh:    make(chan struct{}),
	}
}

// RecordSample feeds one task outcome into the performance window. The
// composition root calls this from the scheduler's outcome events.
func (e *Engine) RecordSample(responseMs float64, success bool) {
	e.window.Record(responseMs, success)
}

// Run starts the periodic reflection checker at the given interval;
// blocks until Stop is called.
func (e *Engine) Run(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Tick()
		case <-e.stopCh:
			return
		}
	}
}

// Tick checks all triggers once and, for each that fired, runs the
// analyzer and creates a proposal.
func (e *Engine) Tick() {
	fired := e.triggers.Check(e.window)
	for _, f := range fired {
		e.bus.Publish(eventbus.ReflectionFired, map[string]interface{}{
			"trigger": string(f.Trigger.Kind), "name": f.Trigger.Name,
		})

		var stats MemoryStats
		if e.stats != nil {
			stats = e.stats()
		}

		insights, actions := Analyze(e.window, stats)
		if len(actions) == 0 {
			continue
		}

		p := e.lifecycle.Create(f.Trigger.Kind, insights, actions, e.mode)
		e.bus.Publish(eventbus.ReflectionProposed, map[string]interface{}{
			"proposal_id": p.ID, "state": string(p.State), "action_count": len(p.Actions),
		})
		logging.Reflection("proposal %s created state=%s trigger=%s", p.ID, p.State, f.Trigger.Kind)

		if p.State == StateApproved {
			if err := e.lifecycle.Execute(p.ID); err != nil {
				logging.ReflectionWarn("proposal %s execution failed: %v", p.ID, err)
			} else {
				e.bus.Publish(eventbus.ReflectionExecuted, map[string]interface{}{"proposal_id": p.ID})
			}
		}
	}
}

// FireManual forces a reflection pass outside the normal cadence.
func (e *Engine) FireManual() {
	f := e.triggers.FireManual()
	if f.Trigger == nil {
		return
	}

	var stats MemoryStats
	if e.stats != nil {
		stats = e.stats()
	}
	insights, actions := Analyze(e.window, stats)
	if len(actions) == 0 {
		return
	}
	p := e.lifecycle.Create(f.Trigger.Kind, insights, actions, e.mode)
	e.bus.Publish(eventbus.ReflectionProposed, map[string]interface{}{"proposal_id": p.ID, "state": string(p.State)})
	if p.State == StateApproved {
		if err := e.lifecycle.Execute(p.ID); err == nil {
			e.bus.Publish(eventbus.ReflectionExecuted, map[string]interface{}{"proposal_id": p.ID})
		}
	}
}

// Acknowledge resolves a queued proposal (human approval path).
func (e *Engine) Acknowledge(proposalID string, approve bool) error {
	if err := e.lifecycle.Acknowledge(proposalID, approve); err != nil {
		return err
	}
	if approve {
		return e.lifecycle.Execute(proposalID)
	}
	return nil
}

// Lifecycle exposes the underlying proposal lifecycle for inspection and
// snapshotting.
func (e *Engine) Lifecycle() *Lifecycle {
	return e.lifecycle
}

// Window exposes the underlying performance window for inspection.
func (e *Engine) Window() *Window {
	return e.window
}

// Stop halts the periodic checker loop.
func (e *Engine) Stop() {
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.stopCh)
}
