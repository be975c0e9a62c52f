// Package agent is the composition root: it owns every component,
// wires their callbacks into the event bus, and runs the single
// cooperative stepper that drives the cognitive runtime.
package agent

import (
	"context"
	"sync"
	"time"

	"codenerd-cognitive/internal/assembler"
	"codenerd-cognitive/internal/body"
	"codenerd-cognitive/internal/capability"
	"codenerd-cognitive/internal/clock"
	"codenerd-cognitive/internal/config"
	"codenerd-cognitive/internal/confidence"
	"codenerd-cognitive/internal/eventbus"
	"codenerd-cognitive/internal/hormone"
	"codenerd-cognitive/internal/logging"
	"codenerd-cognitive/internal/memory"
	"codenerd-cognitive/internal/memory/sqlitestore"
	"codenerd-cognitive/internal/persistence"
	"codenerd-cognitive/internal/reflection"
	"codenerd-cognitive/internal/safety"
	"codenerd-cognitive/internal/scheduler"
)

// Agent wires the twelve cognitive-runtime components together and
// owns their lifecycle.
type Agent struct {
	cfg *config.Config

	Clock      *clock.Probe
	Hormones   *hormone.Field
	Body       *body.Schema
	Confidence *confidence.Store
	Memory     *memory.Store
	Capability *capability.Registry
	Scheduler  *scheduler.Scheduler
	Reflection *reflection.Engine
	Assembler  *assembler.Assembler
	Safety     *safety.Envelope
	Bus        *eventbus.Bus
	Persist    *persistence.Store

	watcher *config.Watcher

	mu           sync.Mutex
	taskStarted  map[string]time.Time
	stopCh       chan struct{}
}

// New builds every component from cfg and wires their cross-cutting
// callbacks, but does not yet start any background loop.
func New(cfg *config.Config) (*Agent, error) {
	bus := eventbus.New()
	probe := clock.NewProbe(time.Second, cfg.CoreLimits.MaxTotalMemoryMB)
	hormones := hormone.New()
	confStore := confidence.New()
	capRegistry := capability.New(confStore)
	bodySchema := body.New(probe, capabilityToolCheck(capRegistry), []string{"PATH", "HOME"})

	repo, err := sqlitestore.Open(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, err
	}

	memStore, err := memory.New(memory.Options{
		Repository:        repo,
		SalienceConstants:  config.DefaultSalienceConstants(),
		ConsolidationRule:  config.DefaultConsolidationRule(),
		RetrievalWeights:   cfg.Memory.RetrievalWeight,
		MaxCount:           cfg.Memory.MaxCount,
		PruneThreshold:     cfg.Memory.PruneThreshold,
	})
	if err != nil {
		return nil, err
	}

	maxConcurrent := cfg.Scheduler.MaxConcurrent
	if cfg.CoreLimits.MaxConcurrentTasks > 0 && cfg.CoreLimits.MaxConcurrentTasks < maxConcurrent {
		maxConcurrent = cfg.CoreLimits.MaxConcurrentTasks
	}
	sched := scheduler.New(scheduler.Config{
		AsyncLoopInterval:  time.Duration(cfg.Scheduler.AsyncLoopIntervalMs) * time.Millisecond,
		DefaultTimeout:     cfg.GetSchedulerTimeout(),
		MaxConcurrent:      maxConcurrent,
		HomeostasisEnable:  cfg.Scheduler.HomeostasisEnable,
		CPUThresholdPct:    cfg.Scheduler.CPUThresholdPct,
		MemoryThresholdPct: cfg.Scheduler.MemoryThresholdPct,
		FatigueThreshold:   cfg.Scheduler.FatigueThreshold,
	}, hormones, probe, bus)

	capRegistry.SetMaxCapacity(cfg.CoreLimits.MaxCapabilities)
	memStore.SetHardCap(cfg.CoreLimits.MaxMemoryRecords)

	abManager := assembler.NewABManager(cfg.AB.MinSamplesForComparison)
	abManager.Register(assembler.NamespaceSystemPrompt, "baseline")
	abManager.Register(assembler.NamespaceSelfDescription, "baseline")

	asm := assembler.New(
		cfg.Assembler.MaxContextWindow,
		assembler.Fractions{
			System:  cfg.Assembler.BudgetFractions.System,
			Self:    cfg.Assembler.BudgetFractions.Self,
			Memory:  cfg.Assembler.BudgetFractions.Memory,
			Working: cfg.Assembler.BudgetFractions.Working,
			Reserve: cfg.Assembler.BudgetFractions.Reserve,
		},
		abManager,
		cfg.Assembler.CapabilityMinConfidence,
		cfg.Assembler.MaxReflectionInsights,
	)

	envelope := safety.New(safety.Config{
		StrictMode:        cfg.Safety.StrictMode,
		AutoMitigate:      cfg.Safety.AutoMitigate,
		BlockThreshold:    cfg.Safety.BlockThreshold,
		Sensitivity:       safety.SensitivityMedium,
		ImmortalityLimits: safety.ImmortalityThresholds{CPUPercent: cfg.Scheduler.CPUThresholdPct, MemoryPercent: cfg.Scheduler.MemoryThresholdPct},
	}, probe)

	persist, err := persistence.NewStore("data/snapshots")
	if err != nil {
		return nil, err
	}

	// A safety envelope running in strict mode wants its full audit trail
	// regardless of the configured global log level; a reflection engine
	// gated to human approval wants every proposal visible for review,
	// while auto mode only needs its anomalies surfaced.
	if cfg.Safety.StrictMode {
		logging.SetCategoryFloor(logging.CategorySafety, logging.LevelDebug)
	}
	switch cfg.Reflection.ApprovalMode {
	case "human":
		logging.SetCategoryFloor(logging.CategoryReflection, logging.LevelDebug)
	case "auto":
		logging.SetCategoryFloor(logging.CategoryReflection, logging.LevelWarn)
	}

	a := &Agent{
		cfg:         cfg,
		Clock:       probe,
		Hormones:    hormones,
		Body:        bodySchema,
		Confidence:  confStore,
		Memory:      memStore,
		Capability:  capRegistry,
		Scheduler:   sched,
		Assembler:   asm,
		Safety:      envelope,
		Bus:         bus,
		Persist:     persist,
		taskStarted: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
	}

	approvalMode := reflection.ApprovalMode(cfg.Reflection.ApprovalMode)
	a.Reflection = reflection.New(bus, a.memoryStats, approvalMode, a.applyProposalAction)

	a.wireEvents()
	a.loadSnapshot()
	return a, nil
}

func capabilityToolCheck(reg *capability.Registry) func() map[string]bool {
	return func() map[string]bool {
		out := make(map[string]bool)
		for _, c := range reg.All() {
			out[c.ID] = true
		}
		return out
	}
}

// wireEvents bridges component-level callbacks (hormone changes, memory
// lifecycle) into the shared event bus, and subscribes the reflection
// engine's performance window to task outcomes.
func (a *Agent) wireEvents() {
	a.Hormones.OnChange(func(t hormone.Type, old, new float64, reason string) {
		a.Bus.Publish(eventbus.HormoneChanged, map[string]interface{}{
			"type": string(t), "old": old, "new": new, "reason": reason,
		})
		logging.Audit().HormoneChange(string(t), old, new, reason)
	})

	a.Memory.OnConsolidated(func(episodicID, semanticID string) {
		a.Bus.Publish(eventbus.MemoryConsolidated, map[string]interface{}{
			"episodic_id": episodicID, "semantic_id": semanticID,
		})
		logging.Audit().MemoryConsolidated(episodicID, semanticID)
	})
	a.Memory.OnForgotten(func(id string) {
		a.Bus.Publish(eventbus.MemoryForgotten, map[string]interface{}{"id": id})
		logging.Audit().MemoryForgotten(id)
	})

	a.Bus.Subscribe(eventbus.TaskStarted, func(evt eventbus.Event) {
		payload, _ := evt.Payload.(map[string]interface{})
		id, _ := payload["id"].(string)
		a.mu.Lock()
		a.taskStarted[id] = time.Now()
		a.mu.Unlock()
	})

	recordOutcome := func(success bool, auditType logging.AuditEventType) func(eventbus.Event) {
		return func(evt eventbus.Event) {
			payload, _ := evt.Payload.(map[string]interface{})
			id, _ := payload["id"].(string)
			a.mu.Lock()
			start, ok := a.taskStarted[id]
			delete(a.taskStarted, id)
			a.mu.Unlock()

			latencyMs := 0.0
			if ok {
				latencyMs = float64(time.Since(start).Milliseconds())
			}
			a.Reflection.RecordSample(latencyMs, success)
			logging.Audit().TaskOutcome(id, auditType, latencyMs)
		}
	}
	a.Bus.Subscribe(eventbus.TaskCompleted, recordOutcome(true, logging.AuditTaskCompleted))
	a.Bus.Subscribe(eventbus.TaskFailed, recordOutcome(false, logging.AuditTaskFailed))
	a.Bus.Subscribe(eventbus.TaskTimeout, recordOutcome(false, logging.AuditTaskTimeout))
	a.Bus.Subscribe(eventbus.TaskCancelled, recordOutcome(false, logging.AuditTaskCancelled))
}

// memoryStats supplies the reflection analyzer's current memory
// statistics, sampling recent content lengths for a token-size estimate.
func (a *Agent) memoryStats() reflection.MemoryStats {
	forgettable := a.Memory.ForgettableCount()

	recent := a.Memory.Query(memory.QueryFilter{})
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	total := 0
	for _, r := range recent {
		total += assembler.EstimateTokens(r.Content)
	}
	avg := 0.0
	if len(recent) > 0 {
		avg = float64(total) / float64(len(recent))
	}

	return reflection.MemoryStats{ForgettableCount: forgettable, AveragePromptTokens: avg}
}

// applyProposalAction is the reflection lifecycle's mutator: it applies
// an approved action's proposed value to the live configuration.
func (a *Agent) applyProposalAction(action reflection.Action) (interface{}, error) {
	if action.TargetPath == "" {
		logging.Audit().ReflectionTransition(action.Description, logging.AuditReflectionExecuted)
		return action.ProposedValue, nil
	}
	if err := a.cfg.Set(action.TargetPath, action.ProposedValue); err != nil {
		logging.ReflectionWarn("action targeting %s could not be applied: %v", action.TargetPath, err)
		logging.Audit().ReflectionTransition(action.Description, logging.AuditReflectionRejected)
		return nil, err
	}
	a.applyHotConfig(action.TargetPath)
	logging.Audit().ReflectionTransition(action.Description, logging.AuditReflectionExecuted)
	return action.ProposedValue, nil
}

// applyHotConfig runs after Set has stored a config field. Components read
// their own Config snapshots rather than the shared *config.Config, and
// none of the listed keys has a live update path: nothing is pushed, and
// the new value takes effect when the owning component is next built.
func (a *Agent) applyHotConfig(path string) {
	switch path {
	case "scheduler.max_concurrent", "scheduler.fatigue_threshold":
		// scheduler reads cfg.Scheduler.* copies at construction time;
		// a live resize is out of scope for this reflection action and
		// is instead picked up on the next restart.
	case "safety.strict_mode", "safety.block_threshold":
		// rebuilt at next envelope construction; current safe_execute
		// calls keep using the envelope's already-resolved thresholds.
	}
}

func (a *Agent) loadSnapshot() {
	var hormoneSnap hormone.Levels
	if err := a.Persist.Load("hormone", &hormoneSnap); err == nil {
		a.Hormones.Set(hormone.Alert, hormoneSnap.Alert, "snapshot restore")
		a.Hormones.Set(hormone.Stress, hormoneSnap.Stress, "snapshot restore")
		a.Hormones.Set(hormone.Reward, hormoneSnap.Reward, "snapshot restore")
		a.Hormones.Set(hormone.Stability, hormoneSnap.Stability, "snapshot restore")
		a.Hormones.Set(hormone.Curiosity, hormoneSnap.Curiosity, "snapshot restore")
	}

	var betas []confidence.SerializedBeta
	if err := a.Persist.Load("confidence", &betas); err == nil {
		a.Confidence.Import(betas)
	}
}

// Snapshot persists every mutable root to the snapshot store.
func (a *Agent) Snapshot() error {
	return a.Persist.SaveAll(map[string]interface{}{
		"hormone":    a.Hormones.Snapshot(),
		"confidence": a.Confidence.Export(),
		"reflection": a.Reflection.Lifecycle().Pending(),
		"history":    a.Reflection.Lifecycle().History(),
	})
}

// Run starts the scheduler's stepper, the hormone decay ticker, the
// reflection engine's periodic checker, and a periodic snapshot loop. It
// blocks until ctx is cancelled or Stop is called, and stops the agent
// before returning.
func (a *Agent) Run(ctx context.Context) {
	go a.Scheduler.Run()
	go a.Reflection.Run(a.cfg.GetReflectionInterval())
	go a.decayLoop()
	go a.snapshotLoop()
	go a.sessionLimitLoop()

	if cfgPath := a.cfg.SourcePath; cfgPath != "" {
		if w, err := config.NewWatcher(cfgPath); err == nil {
			a.watcher = w
			_ = w.Start(func(newCfg *config.Config) {
				a.cfg = newCfg
			})
		}
	}

	select {
	case <-ctx.Done():
	case <-a.stopCh:
	}
	a.Stop()
}

func (a *Agent) decayLoop() {
	interval := a.cfg.GetHormoneDecayTick()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.Hormones.DecayTick()
		case <-a.stopCh:
			return
		}
	}
}

func (a *Agent) snapshotLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.Snapshot(); err != nil {
				logging.BootWarn("periodic snapshot failed: %v", err)
			}
		case <-a.stopCh:
			return
		}
	}
}

// sessionLimitLoop force-checkpoints and stops the agent once
// CoreLimits.MaxSessionDuration minutes have elapsed since Run started,
// a no-op when the limit is unset.
func (a *Agent) sessionLimitLoop() {
	if a.cfg.CoreLimits.MaxSessionDuration <= 0 {
		return
	}
	timer := time.NewTimer(time.Duration(a.cfg.CoreLimits.MaxSessionDuration) * time.Minute)
	defer timer.Stop()
	select {
	case <-timer.C:
		logging.Boot("max session duration reached, forcing checkpoint and shutdown")
		if err := a.Snapshot(); err != nil {
			logging.BootWarn("session-limit snapshot failed: %v", err)
		}
		a.Stop()
	case <-a.stopCh:
	}
}

// Stop halts every background loop and the scheduler, taking a final
// snapshot.
func (a *Agent) Stop() {
	select {
	case <-a.stopCh:
		return
	default:
		close(a.stopCh)
	}
	a.Scheduler.Stop()
	a.Reflection.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if err := a.Snapshot(); err != nil {
		logging.BootWarn("final snapshot failed: %v", err)
	}
}
