package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"codenerd-cognitive/internal/clock"
	"codenerd-cognitive/internal/eventbus"
	"codenerd-cognitive/internal/hormone"
	"codenerd-cognitive/internal/logging"
)

// CapacityError reports that the scheduler rejected work due to
// exhausted capacity. Callers may retry.
type CapacityError struct {
	Reason string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("scheduler: capacity exhausted: %s", e.Reason)
}

// Config governs scheduler admission and cadence. Mirrors
// config.SchedulerConfig without importing it directly, keeping this
// package free of a dependency on the config package.
type Config struct {
	AsyncLoopInterval  time.Duration
	DefaultTimeout     time.Duration
	MaxConcurrent      int
	HomeostasisEnable  bool
	CPUThresholdPct    float64
	MemoryThresholdPct float64
	FatigueThreshold   float64
}

// Scheduler drains the reactive and regulatory queues on a single
// cooperative stepper, applying hormone-gated admission before executing
// each task.
type Scheduler struct {
	cfg      Config
	reactive *priorityQueue
	regulatory *priorityQueue

	hormones *hormone.Field
	probe    *clock.Probe
	bus      *eventbus.Bus

	slots *semaphore.Weighted // concurrency gate, weight = MaxConcurrent

	mu       sync.Mutex
	running  map[string]*Task
	fatigue  float64
	stopCh   chan struct{}
	stopped  bool
	wg       sync.WaitGroup
}

// New creates a scheduler wired to the hormone field, metrics probe, and
// event bus it will coordinate with.
func New(cfg Config, hormones *hormone.Field, probe *clock.Probe, bus *eventbus.Bus) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.AsyncLoopInterval <= 0 {
		cfg.AsyncLoopInterval = 100 * time.Millisecond
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	return &Scheduler{
		cfg:        cfg,
		reactive:   newPriorityQueue(),
		regulatory: newPriorityQueue(),
		hormones:   hormones,
		probe:      probe,
		bus:        bus,
		slots:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		running:    make(map[string]*Task),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) submit(queue QueueClass, priority Priority, closure Closure, timeout time.Duration, metadata map[string]interface{}) string {
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	t := &Task{
		ID:        NewID(),
		Queue:     queue,
		Priority:  priority,
		Closure:   closure,
		Deadline:  timeout,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}
	t.setState(StateEnqueued)

	switch queue {
	case Reactive:
		s.reactive.push(t)
	default:
		s.regulatory.push(t)
	}

	s.bus.Publish(eventbus.TaskSubmitted, map[string]interface{}{
		"id": t.ID, "queue": string(queue), "priority": priority.String(),
	})
	logging.SchedulerDebug("submitted %s queue=%s priority=%s", t.ID, queue, priority)
	return t.ID
}

// SubmitReactive enqueues a fast-path task.
func (s *Scheduler) SubmitReactive(closure Closure, priority Priority, timeout time.Duration, metadata map[string]interface{}) string {
	return s.submit(Reactive, priority, closure, timeout, metadata)
}

// SubmitRegulatory enqueues a slow-path task.
func (s *Scheduler) SubmitRegulatory(closure Closure, priority Priority, timeout time.Duration, metadata map[string]interface{}) string {
	return s.submit(Regulatory, priority, closure, timeout, metadata)
}

// SubmitHumanInteraction is shorthand for reactive/high priority with a
// "source=human" metadata tag.
func (s *Scheduler) SubmitHumanInteraction(closure Closure, timeout time.Duration, metadata map[string]interface{}) string {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["source"] = "human"
	return s.submit(Reactive, PriorityHigh, closure, timeout, metadata)
}

// SubmitBackground is shorthand for regulatory/background priority.
func (s *Scheduler) SubmitBackground(closure Closure, timeout time.Duration, metadata map[string]interface{}) string {
	return s.submit(Regulatory, PriorityBackground, closure, timeout, metadata)
}

// Cancel cancels a running task via its handle, or removes it from
// whichever queue holds it. Returns whether it had any effect.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	if t, ok := s.running[id]; ok {
		cancel := t.cancel
		s.mu.Unlock()
		if cancel != nil {
			t.markCancelled()
			cancel()
		}
		return true
	}
	s.mu.Unlock()

	if s.reactive.remove(id) {
		return true
	}
	return s.regulatory.remove(id)
}

// Run starts the cooperative stepper loop; blocks until Stop is called.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.cfg.AsyncLoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Step()
		case <-s.stopCh:
			return
		}
	}
}

// Step runs one iteration of the stepper: capacity gate, homeostasis
// gate, dequeue, admission gate, and execution dispatch.
func (s *Scheduler) Step() {
	// 1. capacity gate
	s.mu.Lock()
	runningCount := len(s.running)
	s.mu.Unlock()
	if runningCount >= s.cfg.MaxConcurrent {
		return
	}

	// 2. homeostasis gate
	if s.cfg.HomeostasisEnable && s.probe != nil {
		m := s.probe.Sample()
		if m.CPUPercent > s.cfg.CPUThresholdPct || m.MemoryPercent > s.cfg.MemoryThresholdPct {
			s.bus.Publish(eventbus.HomeostasisAlert, map[string]interface{}{
				"cpu_pct": m.CPUPercent, "memory_pct": m.MemoryPercent,
			})
			return
		}
	}

	// dequeue: reactive head first, then regulatory head
	t, ok := s.reactive.pop()
	fromQueue := s.reactive
	if !ok {
		t, ok = s.regulatory.pop()
		fromQueue = s.regulatory
	}
	if !ok {
		return
	}

	// 3. admission gate
	if !s.admit(t.Priority) {
		fromQueue.pushFront(t)
		return
	}

	s.execute(t)
}

// admit applies the hormone-gated admission rule.
func (s *Scheduler) admit(p Priority) bool {
	if s.hormones == nil {
		return true
	}
	snap := s.hormones.Snapshot()

	if snap.Stress > 0.8 && p.weakerThan(PriorityHigh) {
		return false
	}

	s.mu.Lock()
	fatigue := s.fatigue
	s.mu.Unlock()
	if fatigue > s.cfg.FatigueThreshold && p.weakerThan(PriorityHigh) {
		if rand.Float64() < 0.5 {
			return false
		}
	}

	if snap.Alert > 0.6 && p <= PriorityHigh {
		return true
	}

	return true
}

func (s *Scheduler) execute(t *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), t.Deadline)
	t.cancel = cancel
	t.setState(StateRunning)

	s.mu.Lock()
	s.running[t.ID] = t
	s.mu.Unlock()

	_ = s.slots.Acquire(context.Background(), 1)
	s.wg.Add(1)

	s.bus.Publish(eventbus.TaskStarted, map[string]interface{}{"id": t.ID})

	go func() {
		defer s.wg.Done()
		defer s.slots.Release(1)
		defer cancel()

		resultCh := make(chan interface{}, 1)
		errCh := make(chan error, 1)

		go func() {
			defer func() {
				if r := recover(); r != nil {
					errCh <- fmt.Errorf("task panic: %v", r)
				}
			}()
			result, err := t.Closure(ctx)
			if err != nil {
				errCh <- err
				return
			}
			resultCh <- result
		}()

		var outcomeTopic eventbus.Topic
		var payload map[string]interface{}

		select {
		case result := <-resultCh:
			outcomeTopic = eventbus.TaskCompleted
			payload = map[string]interface{}{"id": t.ID, "result": result}
			if s.hormones != nil {
				s.hormones.Adjust(hormone.Reward, 0.05, "task success")
			}
		case err := <-errCh:
			outcomeTopic = eventbus.TaskFailed
			payload = map[string]interface{}{"id": t.ID, "error": err.Error()}
			if s.hormones != nil {
				s.hormones.Adjust(hormone.Alert, 0.1, "task failure")
				s.hormones.Adjust(hormone.Stress, 0.08, "task failure")
			}
		case <-ctx.Done():
			if t.wasCancelled() {
				outcomeTopic = eventbus.TaskCancelled
			} else {
				outcomeTopic = eventbus.TaskTimeout
			}
			payload = map[string]interface{}{"id": t.ID}
		}

		t.setState(StateTerminal)
		s.mu.Lock()
		delete(s.running, t.ID)
		s.fatigue += 0.01
		s.mu.Unlock()

		s.bus.Publish(outcomeTopic, payload)
		logging.SchedulerDebug("task %s terminal: %s", t.ID, outcomeTopic)
	}()
}

// BackpressureStatus reports the scheduler's current queue depth and
// capacity utilization, used by callers deciding whether to submit more
// reactive work.
type BackpressureStatus struct {
	ReactiveDepth   int
	RegulatoryDepth int
	RunningCount    int
	MaxConcurrent   int
}

// Status returns the current backpressure snapshot.
func (s *Scheduler) Status() BackpressureStatus {
	s.mu.Lock()
	running := len(s.running)
	s.mu.Unlock()
	return BackpressureStatus{
		ReactiveDepth:   s.reactive.depth(),
		RegulatoryDepth: s.regulatory.depth(),
		RunningCount:    running,
		MaxConcurrent:   s.cfg.MaxConcurrent,
	}
}

// Stop cancels all running tasks, clears both queues, and halts the
// stepper loop. Running tasks emit their own task:cancelled from
// execute's ctx.Done() branch; Stop only publishes task:cancelled
// directly for tasks still sitting in a queue, which never reach execute.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)

	for _, t := range s.running {
		if t.cancel != nil {
			t.markCancelled()
			t.cancel()
		}
	}
	s.mu.Unlock()

	for _, t := range s.reactive.drain() {
		s.bus.Publish(eventbus.TaskCancelled, map[string]interface{}{"id": t.ID})
	}
	for _, t := range s.regulatory.drain() {
		s.bus.Publish(eventbus.TaskCancelled, map[string]interface{}{"id": t.ID})
	}

	s.wg.Wait()
}
