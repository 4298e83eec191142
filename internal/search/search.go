// Package search provides the provider adapters used by research runs.
// Each adapter covers one source type (web, academic, x) and returns a
// uniform result shape so the scheduler never branches on provider
// specifics.
package search

import (
	"context"
	"net/http"
	"time"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

// Request is the common adapter input. StepID keys the running/completed
// annotation pair so the client can collapse both into one slot.
type Request struct {
	Query   string
	StepID  string
	Options Options
}

// Options carries provider-tunable knobs shared by all adapters.
type Options struct {
	MaxResults int
}

// Result is the uniform adapter output.
type Result struct {
	Items []research.SourceItem
}

// Notifier receives the per-step lifecycle annotations an adapter emits
// around provider calls. Implementations decide where the annotations go.
type Notifier interface {
	SearchRunning(ctx context.Context, stepID string, source research.SourceType, query string) error
	SearchCompleted(ctx context.Context, stepID string, source research.SourceType, query string, resultCount int) error
}

// Adapter executes one search against an external provider.
type Adapter interface {
	Source() research.SourceType
	Execute(ctx context.Context, req Request) (*Result, error)
}

// Run executes one search with its annotation lifecycle: a running
// annotation before the provider call and a completed annotation only on
// success, both keyed by the step ID. Notification failures never fail
// the search itself.
func Run(ctx context.Context, adapter Adapter, notifier Notifier, req Request) (*Result, error) {
	_ = notifier.SearchRunning(ctx, req.StepID, adapter.Source(), req.Query)
	result, err := adapter.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	_ = notifier.SearchCompleted(ctx, req.StepID, adapter.Source(), req.Query, len(result.Items))
	return result, nil
}

const defaultMaxResults = 10

func maxResults(opts Options) int {
	if opts.MaxResults > 0 {
		return opts.MaxResults
	}
	return defaultMaxResults
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
