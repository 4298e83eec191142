package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func receiveEvent(t *testing.T, ch <-chan RunEvent) RunEvent {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before receive")
		}
		return ev
	case <-timer.C:
		t.Fatal("timed out waiting for event")
	}

	return RunEvent{}
}

func waitForClosed(t *testing.T, ch <-chan RunEvent) {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestValidType(t *testing.T) {
	valid := []string{TypeResearchUpdate, TypeQueryCompletion, TypeRunCompleted, TypeRunFailed, "run.cancelled"}
	for _, typ := range valid {
		if !ValidType(typ) {
			t.Fatalf("expected %q to be valid", typ)
		}
	}

	invalid := []string{"", "Research.Update", "research_update", "research update", " research.update"}
	for _, typ := range invalid {
		if ValidType(typ) {
			t.Fatalf("expected %q to be invalid", typ)
		}
	}
}

func TestSubscribe_CleanupOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "run-1")
	b.mu.RLock()
	count := len(b.subs["run-1"])
	b.mu.RUnlock()
	if count != 1 {
		t.Fatalf("expected 1 subscriber, got %d", count)
	}

	cancel()
	waitForClosed(t, ch)

	b.mu.RLock()
	_, exists := b.subs["run-1"]
	b.mu.RUnlock()
	if exists {
		t.Fatal("subscriber not removed")
	}
}

func TestPublish_SingleSubscriber(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "run-1")
	event := RunEvent{RunID: "run-1", Seq: 1, Type: TypeResearchUpdate, Ts: "now", Source: "worker"}

	b.Publish(event)
	received := receiveEvent(t, ch)
	if received.Type != event.Type || received.Seq != event.Seq {
		t.Fatalf("unexpected event: %+v", received)
	}

	cancel()
	waitForClosed(t, ch)
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "run-1")
	for i := 0; i < subscriberBuffer; i++ {
		b.Publish(RunEvent{RunID: "run-1", Seq: int64(i + 1)})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected full buffer, got %d", len(ch))
	}
	b.Publish(RunEvent{RunID: "run-1", Seq: int64(subscriberBuffer + 1)})
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected dropped event, got %d", len(ch))
	}

	cancel()
	waitForClosed(t, ch)
}

func TestPublish_MultipleSubscribers(t *testing.T) {
	b := NewBroker()
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	ch1 := b.Subscribe(ctx1, "run-1")
	ch2 := b.Subscribe(ctx2, "run-1")

	b.Publish(RunEvent{RunID: "run-1", Seq: 1, Type: TypeQueryCompletion})
	_ = receiveEvent(t, ch1)
	_ = receiveEvent(t, ch2)

	cancel1()
	cancel2()
	waitForClosed(t, ch1)
	waitForClosed(t, ch2)
}

func TestPublish_IgnoresOtherRuns(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "run-2")
	b.Publish(RunEvent{RunID: "run-1", Seq: 1})

	select {
	case <-ch:
		t.Fatal("unexpected event for different run")
	default:
	}

	cancel()
	waitForClosed(t, ch)
}

func TestConcurrent_SubscribePublish(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	chans := make([]<-chan RunEvent, 0, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			ch := b.Subscribe(ctx, "run-1")
			mu.Lock()
			chans = append(chans, ch)
			mu.Unlock()
			b.Publish(RunEvent{RunID: "run-1", Seq: int64(seq)})
		}(i)
	}

	wg.Wait()
	cancel()

	for _, ch := range chans {
		waitForClosed(t, ch)
	}

	b.mu.RLock()
	count := len(b.subs)
	b.mu.RUnlock()
	if count != 0 {
		t.Fatalf("expected no subscribers, got %d", count)
	}
}
