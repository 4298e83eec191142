package memory

import (
	"context"
	"testing"

	"github.com/fathomhq/fathom/control-plane/internal/store"
)

func mkRun(id string, topic string) store.Run {
	return store.Run{
		ID:        id,
		Topic:     topic,
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
}

func mkEvent(runID string, seq int64, eventType string, data map[string]any) store.RunEvent {
	payload := map[string]any{}
	if data != nil {
		payload["data"] = data
	}
	return store.RunEvent{
		RunID:     runID,
		Seq:       seq,
		Type:      eventType,
		Timestamp: "2026-01-01T00:00:01Z",
		Source:    "worker",
		Payload:   payload,
	}
}

func mkResult(runID string, output map[string]any) store.ResearchResult {
	return store.ResearchResult{RunID: runID, Output: output}
}

func TestCreateAndGetRun(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.CreateRun(ctx, mkRun("run-1", "renewable energy trends"))
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run == nil {
		t.Fatal("expected run")
	}
	if run.Topic != "renewable energy trends" {
		t.Fatalf("unexpected topic %q", run.Topic)
	}
	if run.Status != "pending" {
		t.Fatalf("expected default status pending, got %q", run.Status)
	}
	if run.Depth != "basic" {
		t.Fatalf("expected default depth basic, got %q", run.Depth)
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := New()
	run, err := s.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run != nil {
		t.Fatal("expected nil for missing run")
	}
}

func TestNextSeq_Monotonic(t *testing.T) {
	s := New()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := s.NextSeq(ctx, "run-1")
		if err != nil {
			t.Fatalf("next seq: %v", err)
		}
		if got != want {
			t.Fatalf("expected seq %d, got %d", want, got)
		}
	}

	other, err := s.NextSeq(ctx, "run-2")
	if err != nil {
		t.Fatalf("next seq: %v", err)
	}
	if other != 1 {
		t.Fatalf("expected independent sequence per run, got %d", other)
	}
}

func TestAppendEvent_NormalizesTypeAndFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AppendEvent(ctx, mkEvent("run-1", 1, "Research_Update", nil)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendEvent(ctx, mkEvent("run-1", 2, "query.completion", nil)); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := s.ListEvents(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "research.update" {
		t.Fatalf("expected normalized type, got %q", events[0].Type)
	}

	after, err := s.ListEvents(ctx, "run-1", 1)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(after) != 1 || after[0].Seq != 2 {
		t.Fatalf("expected only seq 2, got %+v", after)
	}
}

func TestAppendEvent_MaterializesAnnotations(t *testing.T) {
	s := New()
	ctx := context.Background()

	running := mkEvent("run-1", 1, "research.update", map[string]any{
		"id": "search-web-0", "type": "progress", "status": "running", "overwrite": false,
	})
	completed := mkEvent("run-1", 2, "research.update", map[string]any{
		"id": "search-web-0", "type": "progress", "status": "completed", "overwrite": true,
	})

	if err := s.AppendEvent(ctx, running); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendEvent(ctx, completed); err != nil {
		t.Fatalf("append: %v", err)
	}

	annotations, err := s.ListAnnotations(ctx, "run-1")
	if err != nil {
		t.Fatalf("list annotations: %v", err)
	}
	if len(annotations) != 1 {
		t.Fatalf("expected one annotation per id, got %d", len(annotations))
	}
	if annotations[0].Status != "completed" {
		t.Fatalf("expected last write to win, got %q", annotations[0].Status)
	}
	if annotations[0].Seq != 1 {
		t.Fatalf("expected first-seen seq for ordering, got %d", annotations[0].Seq)
	}
}

func TestAppendEvent_UpdatesRunState(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateRun(ctx, mkRun("run-1", "topic")); err != nil {
		t.Fatalf("create: %v", err)
	}
	event := mkEvent("run-1", 1, "run.failed", nil)
	event.Payload = map[string]any{"completion_reason": "plan_generation_failed"}
	if err := s.AppendEvent(ctx, event); err != nil {
		t.Fatalf("append: %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run.Status != "failed" || run.CompletionReason != "plan_generation_failed" {
		t.Fatalf("unexpected run state: %+v", run)
	}
}

func TestSaveAndGetResult(t *testing.T) {
	s := New()
	ctx := context.Background()

	output := map[string]any{"synthesis": nil, "results": []any{}}
	if err := s.SaveResult(ctx, mkResult("run-1", output)); err != nil {
		t.Fatalf("save result: %v", err)
	}

	result, err := s.GetResult(ctx, "run-1")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result == nil {
		t.Fatal("expected result")
	}
	if _, ok := result.Output["synthesis"]; !ok {
		t.Fatal("expected synthesis key in output")
	}

	missing, err := s.GetResult(ctx, "run-2")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing result")
	}
}

func TestDeleteRun_RemovesEverything(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateRun(ctx, mkRun("run-1", "topic")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.NextSeq(ctx, "run-1"); err != nil {
		t.Fatalf("next seq: %v", err)
	}
	if err := s.AppendEvent(ctx, mkEvent("run-1", 1, "research.update", map[string]any{
		"id": "research-plan-initial", "type": "plan", "status": "running",
	})); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.SaveResult(ctx, mkResult("run-1", map[string]any{})); err != nil {
		t.Fatalf("save result: %v", err)
	}

	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	run, _ := s.GetRun(ctx, "run-1")
	if run != nil {
		t.Fatal("run not deleted")
	}
	events, _ := s.ListEvents(ctx, "run-1", 0)
	if len(events) != 0 {
		t.Fatal("events not deleted")
	}
	annotations, _ := s.ListAnnotations(ctx, "run-1")
	if len(annotations) != 0 {
		t.Fatal("annotations not deleted")
	}
	seq, _ := s.NextSeq(ctx, "run-1")
	if seq != 1 {
		t.Fatalf("sequence not reset, got %d", seq)
	}
}
