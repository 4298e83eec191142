package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

type recordingNotifier struct {
	running   []string
	completed []string
	counts    []int
}

func (n *recordingNotifier) SearchRunning(_ context.Context, stepID string, _ research.SourceType, _ string) error {
	n.running = append(n.running, stepID)
	return nil
}

func (n *recordingNotifier) SearchCompleted(_ context.Context, stepID string, _ research.SourceType, _ string, resultCount int) error {
	n.completed = append(n.completed, stepID)
	n.counts = append(n.counts, resultCount)
	return nil
}

type fakeAdapter struct {
	source research.SourceType
	result *Result
	err    error
}

func (a fakeAdapter) Source() research.SourceType { return a.source }

func (a fakeAdapter) Execute(_ context.Context, _ Request) (*Result, error) {
	return a.result, a.err
}

func TestRun_EmitsRunningThenCompleted(t *testing.T) {
	notifier := &recordingNotifier{}
	adapter := fakeAdapter{
		source: research.SourceWeb,
		result: &Result{Items: []research.SourceItem{{Title: "a"}, {Title: "b"}}},
	}

	result, err := Run(context.Background(), adapter, notifier, Request{
		Query:  "solar adoption",
		StepID: "search-web-0",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, []string{"search-web-0"}, notifier.running)
	require.Equal(t, []string{"search-web-0"}, notifier.completed)
	require.Equal(t, []int{2}, notifier.counts)
}

func TestRun_NoCompletedOnFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	adapter := fakeAdapter{source: research.SourceWeb, err: errors.New("provider timeout")}

	_, err := Run(context.Background(), adapter, notifier, Request{
		Query:  "solar adoption",
		StepID: "search-web-0",
	})
	require.Error(t, err)
	require.Equal(t, []string{"search-web-0"}, notifier.running)
	require.Empty(t, notifier.completed)
}

func TestMaxResults(t *testing.T) {
	require.Equal(t, 10, maxResults(Options{}))
	require.Equal(t, 5, maxResults(Options{MaxResults: 5}))
	require.Equal(t, 10, maxResults(Options{MaxResults: -1}))
}
