package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"codenerd-cognitive/internal/clock"
	"codenerd-cognitive/internal/eventbus"
	"codenerd-cognitive/internal/hormone"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestScheduler(t *testing.T) (*Scheduler, *hormone.Field, *eventbus.Bus) {
	t.Helper()
	hormones := hormone.New()
	probe := clock.NewProbe(time.Second, 4096)
	bus := eventbus.New()
	s := New(Config{
		AsyncLoopInterval: time.Millisecond,
		DefaultTimeout:    time.Second,
		MaxConcurrent:     2,
		FatigueThreshold:  0.99,
	}, hormones, probe, bus)
	t.Cleanup(s.Stop)
	return s, hormones, bus
}

func TestPriorityQueueOrdering(t *testing.T) {
	q := newPriorityQueue()
	low := &Task{ID: "low", Priority: PriorityLow}
	high := &Task{ID: "high", Priority: PriorityHigh}
	critical := &Task{ID: "critical", Priority: PriorityCritical}

	q.push(low)
	q.push(high)
	q.push(critical)

	first, _ := q.pop()
	second, _ := q.pop()
	third, _ := q.pop()

	if first.ID != "critical" || second.ID != "high" || third.ID != "low" {
		t.Errorf("expected critical, high, low order; got %s, %s, %s", first.ID, second.ID, third.ID)
	}
}

func TestPriorityQueueFIFOWithinBand(t *testing.T) {
	q := newPriorityQueue()
	q.push(&Task{ID: "a", Priority: PriorityNormal})
	q.push(&Task{ID: "b", Priority: PriorityNormal})

	first, _ := q.pop()
	if first.ID != "a" {
		t.Errorf("expected FIFO order within same priority band, got %s first", first.ID)
	}
}

func TestPriorityQueuePushFrontBypassesBand(t *testing.T) {
	q := newPriorityQueue()
	q.push(&Task{ID: "a", Priority: PriorityNormal})
	q.pushFront(&Task{ID: "retry", Priority: PriorityBackground})

	first, _ := q.pop()
	if first.ID != "retry" {
		t.Errorf("expected pushFront task to dequeue first regardless of priority, got %s", first.ID)
	}
}

func TestSubmitReactiveRunsAndPublishesCompleted(t *testing.T) {
	s, _, bus := newTestScheduler(t)

	done := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskCompleted, func(e eventbus.Event) { done <- e })

	s.SubmitReactive(func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, PriorityHigh, 0, nil)

	go s.Run()

	select {
	case evt := <-done:
		payload := evt.Payload.(map[string]interface{})
		if payload["result"] != "ok" {
			t.Errorf("expected result 'ok', got %v", payload["result"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task completion")
	}
}

func TestSubmitFailingTaskPublishesFailed(t *testing.T) {
	s, _, bus := newTestScheduler(t)

	failed := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskFailed, func(e eventbus.Event) { failed <- e })

	s.SubmitReactive(func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	}, PriorityHigh, 0, nil)

	go s.Run()

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task failure")
	}
}

func TestSubmitTimeoutPublishesTaskTimeout(t *testing.T) {
	s, _, bus := newTestScheduler(t)

	timedOut := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskTimeout, func(e eventbus.Event) { timedOut <- e })

	s.SubmitReactive(func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, PriorityHigh, 5*time.Millisecond, nil)

	go s.Run()

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task:timeout event")
	}
}

func TestHighStressBlocksLowPriorityAdmission(t *testing.T) {
	s, hormones, _ := newTestScheduler(t)
	hormones.Set(hormone.Stress, 0.9, "test")

	if s.admit(PriorityLow) {
		t.Error("expected low-priority admission to be blocked under critical stress")
	}
	if !s.admit(PriorityHigh) {
		t.Error("expected high-priority admission to still pass under critical stress")
	}
}

func TestSubmitHumanInteractionTagsMetadata(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	id := s.SubmitHumanInteraction(func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, time.Second, nil)
	if id == "" {
		t.Error("expected a non-empty task id")
	}
}

func TestCancelRemovesQueuedTask(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	// Don't start Run, so the task stays queued.
	id := s.SubmitRegulatory(func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, PriorityLow, time.Second, nil)

	if !s.Cancel(id) {
		t.Error("expected cancel to find and remove the queued task")
	}
	if s.Cancel(id) {
		t.Error("expected second cancel of the same id to report no effect")
	}
}

func TestStatusReportsQueueDepths(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.SubmitRegulatory(func(ctx context.Context) (interface{}, error) { return nil, nil }, PriorityLow, time.Second, nil)
	s.SubmitRegulatory(func(ctx context.Context) (interface{}, error) { return nil, nil }, PriorityLow, time.Second, nil)

	status := s.Status()
	if status.RegulatoryDepth != 2 {
		t.Errorf("expected regulatory depth 2, got %d", status.RegulatoryDepth)
	}
	if status.MaxConcurrent != 2 {
		t.Errorf("expected max concurrent 2, got %d", status.MaxConcurrent)
	}
}

func TestStopIsIdempotentAndCancelsRunning(t *testing.T) {
	s, _, bus := newTestScheduler(t)
	go s.Run()

	cancelled := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskCancelled, func(e eventbus.Event) { cancelled <- e })
	timedOut := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskTimeout, func(e eventbus.Event) { timedOut <- e })

	started := make(chan struct{})
	s.SubmitReactive(func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, PriorityHigh, time.Second, nil)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task never started")
	}

	s.Stop()
	s.Stop() // must not panic or block

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected task:cancelled for a task stopped before its deadline")
	}
	select {
	case <-timedOut:
		t.Fatal("expected Stop to never publish task:timeout for the task it cancelled")
	default:
	}
}

// TestCancelOfRunningTaskPublishesCancelledNotTimeout guards against the
// ctx.Done() branch in execute conflating an explicit Cancel with a
// deadline expiry: both share the same context, so only the cancelled
// flag set by Cancel before it calls t.cancel() distinguishes them.
func TestCancelOfRunningTaskPublishesCancelledNotTimeout(t *testing.T) {
	s, _, bus := newTestScheduler(t)
	go s.Run()

	cancelled := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskCancelled, func(e eventbus.Event) { cancelled <- e })
	timedOut := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TaskTimeout, func(e eventbus.Event) { timedOut <- e })

	started := make(chan struct{})
	id := s.SubmitReactive(func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, PriorityHigh, 10*time.Second, nil)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task never started")
	}

	if !s.Cancel(id) {
		t.Fatal("expected Cancel to report it affected a running task")
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected task:cancelled for an explicitly cancelled task")
	}
	select {
	case <-timedOut:
		t.Fatal("expected Cancel to never produce task:timeout for a task with a long deadline")
	default:
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
