// Package store defines the persistence contract for research runs and
// their event streams. Two implementations exist: an in-memory store for
// tests and local development, and a Postgres store for production.
package store

import "context"

// Run is one research run. Status moves pending -> running -> one of
// completed/failed/cancelled; CompletionReason is set on terminal states.
type Run struct {
	ID               string
	Topic            string
	Depth            string
	Status           string
	CompletionReason string
	CreatedAt        string
	UpdatedAt        string
}

// RunEvent is the persisted form of one stream event. Seq is assigned via
// NextSeq before append and is unique and monotonic per run.
type RunEvent struct {
	RunID     string
	Seq       int64
	Type      string
	Timestamp string
	Source    string
	Payload   map[string]any
}

// Annotation is the materialized view of progress events, folded by
// annotation id. It is what clients read when they reconnect without
// replaying the whole stream.
type Annotation struct {
	RunID     string
	ID        string
	Type      string
	Kind      string
	Status    string
	Overwrite bool
	Seq       int64
	UpdatedAt string
	Data      map[string]any
}

// ResearchResult is the final output of a completed run: the plan, the
// accumulated search results, and the synthesis when one was produced.
type ResearchResult struct {
	RunID     string
	Output    map[string]any
	CreatedAt string
}

type Store interface {
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status string, completionReason string) error
	DeleteRun(ctx context.Context, runID string) error

	NextSeq(ctx context.Context, runID string) (int64, error)
	AppendEvent(ctx context.Context, event RunEvent) error
	ListEvents(ctx context.Context, runID string, afterSeq int64) ([]RunEvent, error)

	ListAnnotations(ctx context.Context, runID string) ([]Annotation, error)

	SaveResult(ctx context.Context, result ResearchResult) error
	GetResult(ctx context.Context, runID string) (*ResearchResult, error)
}
