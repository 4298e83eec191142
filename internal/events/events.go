// Package events carries the per-run event stream between the research
// worker, the store, and SSE subscribers.
package events

import (
	"context"
	"strings"
	"sync"
)

// Event types produced by research runs. Types are lowercase and
// dot-separated; the ingest endpoint rejects anything else.
const (
	TypeResearchUpdate  = "research.update"
	TypeQueryCompletion = "query.completion"
	TypeRunStarted      = "run.started"
	TypeRunCompleted    = "run.completed"
	TypeRunFailed       = "run.failed"
	TypeRunCancelled    = "run.cancelled"
)

// RunEvent is one ordered event on a run's stream. Seq is assigned by the
// store at append time and is unique per run.
type RunEvent struct {
	RunID   string         `json:"run_id"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Ts      string         `json:"ts"`
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

// ValidType reports whether an event type is well formed: non-empty,
// already normalized, and free of underscores or spaces.
func ValidType(eventType string) bool {
	if eventType == "" {
		return false
	}
	if eventType != NormalizeType(eventType) {
		return false
	}
	return !strings.ContainsAny(eventType, "_ ")
}

const subscriberBuffer = 16

// Broker fans run events out to live subscribers. Slow subscribers drop
// events rather than blocking the publisher; missed events are recovered
// from the store via Last-Event-ID replay.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan RunEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan RunEvent]struct{}{}}
}

// Subscribe registers a listener for one run. The channel closes when ctx
// is cancelled.
func (b *Broker) Subscribe(ctx context.Context, runID string) <-chan RunEvent {
	ch := make(chan RunEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan RunEvent]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subs[runID] != nil {
			delete(b.subs[runID], ch)
			if len(b.subs[runID]) == 0 {
				delete(b.subs, runID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers an event to every subscriber of its run.
func (b *Broker) Publish(event RunEvent) {
	b.mu.RLock()
	subs := b.subs[event.RunID]
	chans := make([]chan RunEvent, 0, len(subs))
	for ch := range subs {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}
