// Package memory is the in-process store used for tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fathomhq/fathom/control-plane/internal/store"
)

type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]store.Run
	events      map[string][]store.RunEvent
	annotations map[string]map[string]store.Annotation
	results     map[string]store.ResearchResult
	seq         map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		runs:        map[string]store.Run{},
		events:      map[string][]store.RunEvent{},
		annotations: map[string]map[string]store.Annotation{},
		results:     map[string]store.ResearchResult{},
		seq:         map[string]int64{},
	}
}

func (m *MemoryStore) CreateRun(ctx context.Context, run store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(run.Status) == "" {
		run.Status = "pending"
	}
	if strings.TrimSpace(run.Depth) == "" {
		run.Depth = "basic"
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	cloned := run
	return &cloned, nil
}

func (m *MemoryStore) ListRuns(ctx context.Context) ([]store.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Run, 0, len(m.runs))
	for _, run := range m.runs {
		results = append(results, run)
	}
	sort.Slice(results, func(i, j int) bool {
		left := parseTime(results[i].UpdatedAt)
		right := parseTime(results[j].UpdatedAt)
		return left.After(right)
	})
	return results, nil
}

func (m *MemoryStore) UpdateRunStatus(ctx context.Context, runID string, status string, completionReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil
	}
	if strings.TrimSpace(status) != "" {
		run.Status = status
	}
	if strings.TrimSpace(completionReason) != "" {
		run.CompletionReason = completionReason
	}
	run.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	m.runs[runID] = run
	return nil
}

func (m *MemoryStore) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	delete(m.events, runID)
	delete(m.annotations, runID)
	delete(m.results, runID)
	delete(m.seq, runID)
	return nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[runID] += 1
	return m.seq[runID], nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Type = normalizeEventType(event.Type)
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	m.events[event.RunID] = append(m.events[event.RunID], event)
	m.applyAnnotationLocked(event)
	m.applyRunStateLocked(event)
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[runID]
	if afterSeq <= 0 {
		return append([]store.RunEvent{}, events...), nil
	}
	filtered := []store.RunEvent{}
	for _, event := range events {
		if event.Seq > afterSeq {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func (m *MemoryStore) ListAnnotations(ctx context.Context, runID string) ([]store.Annotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := m.annotations[runID]
	if len(byID) == 0 {
		return []store.Annotation{}, nil
	}
	annotations := make([]store.Annotation, 0, len(byID))
	for _, ann := range byID {
		cloned := ann
		cloned.Data = cloneMap(ann.Data)
		annotations = append(annotations, cloned)
	}
	sort.Slice(annotations, func(i, j int) bool {
		if annotations[i].Seq == annotations[j].Seq {
			return annotations[i].ID < annotations[j].ID
		}
		return annotations[i].Seq < annotations[j].Seq
	})
	return annotations, nil
}

func (m *MemoryStore) SaveResult(ctx context.Context, result store.ResearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result.CreatedAt == "" {
		result.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	result.Output = cloneMap(result.Output)
	m.results[result.RunID] = result
	return nil
}

func (m *MemoryStore) GetResult(ctx context.Context, runID string) (*store.ResearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[runID]
	if !ok {
		return nil, nil
	}
	cloned := result
	cloned.Output = cloneMap(result.Output)
	return &cloned, nil
}

func (m *MemoryStore) applyAnnotationLocked(event store.RunEvent) {
	ann, ok := store.BuildAnnotationFromEvent(event)
	if !ok {
		return
	}
	if m.annotations[event.RunID] == nil {
		m.annotations[event.RunID] = map[string]store.Annotation{}
	}
	existing, exists := m.annotations[event.RunID][ann.ID]
	if !exists {
		m.annotations[event.RunID][ann.ID] = ann
		return
	}
	m.annotations[event.RunID][ann.ID] = store.MergeAnnotation(existing, ann)
}

func (m *MemoryStore) applyRunStateLocked(event store.RunEvent) {
	run, ok := m.runs[event.RunID]
	if !ok {
		return
	}
	switch event.Type {
	case "run.started":
		run.Status = "running"
	case "run.completed":
		run.Status = "completed"
		if reason := readString(event.Payload, "completion_reason"); reason != "" {
			run.CompletionReason = reason
		}
	case "run.failed":
		run.Status = "failed"
		run.CompletionReason = readString(event.Payload, "completion_reason")
		if run.CompletionReason == "" {
			run.CompletionReason = "activity_error"
		}
	case "run.cancelled":
		run.Status = "cancelled"
		run.CompletionReason = "user_cancelled"
	default:
		return
	}
	if event.Timestamp != "" {
		run.UpdatedAt = event.Timestamp
	}
	m.runs[event.RunID] = run
}

func normalizeEventType(eventType string) string {
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		return ""
	}
	return strings.ReplaceAll(normalized, "_", ".")
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func readString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	raw, ok := payload[key]
	if !ok {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func cloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
