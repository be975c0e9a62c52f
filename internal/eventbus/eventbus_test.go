package eventbus

import (
	"testing"
)

func TestPublishInvokesSubscribersInOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe(TaskStarted, func(Event) { order = append(order, 1) })
	b.Subscribe(TaskStarted, func(Event) { order = append(order, 2) })
	b.Subscribe(TaskStarted, func(Event) { order = append(order, 3) })

	b.Publish(TaskStarted, nil)

	if len(order) != 3 {
		t.Fatalf("expected 3 handler invocations, got %d", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Errorf("expected registration order, got %v", order)
			break
		}
	}
}

func TestPublishPassesThroughPayloadAndTopic(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe(HormoneChanged, func(e Event) { got = e })

	b.Publish(HormoneChanged, map[string]interface{}{"type": "stress"})

	if got.Topic != HormoneChanged {
		t.Errorf("expected topic %v, got %v", HormoneChanged, got.Topic)
	}
	payload, ok := got.Payload.(map[string]interface{})
	if !ok || payload["type"] != "stress" {
		t.Errorf("expected payload to pass through unmodified, got %v", got.Payload)
	}
	if got.TimestampMs <= 0 {
		t.Error("expected a populated timestamp")
	}
}

func TestPublishWithNoSubscribersIsNoOp(t *testing.T) {
	b := New()
	b.Publish(TaskCompleted, "irrelevant") // must not panic
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := New()
	var secondRan bool
	b.Subscribe(TaskFailed, func(Event) { panic("boom") })
	b.Subscribe(TaskFailed, func(Event) { secondRan = true })

	b.Publish(TaskFailed, nil) // must not panic out of Publish

	if !secondRan {
		t.Error("expected second handler to still run after first panicked")
	}
}

func TestSubscribersOnDifferentTopicsAreIsolated(t *testing.T) {
	b := New()
	var aFired, bFired bool
	b.Subscribe(TaskStarted, func(Event) { aFired = true })
	b.Subscribe(TaskCompleted, func(Event) { bFired = true })

	b.Publish(TaskStarted, nil)

	if !aFired {
		t.Error("expected TaskStarted subscriber to fire")
	}
	if bFired {
		t.Error("expected TaskCompleted subscriber not to fire")
	}
}
