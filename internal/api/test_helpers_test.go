package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/fathomhq/fathom/control-plane/internal/config"
	"github.com/fathomhq/fathom/control-plane/internal/events"
	"github.com/fathomhq/fathom/control-plane/internal/research"
	"github.com/fathomhq/fathom/control-plane/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRun(ctx context.Context, run store.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		return value.(*store.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListRuns(ctx context.Context) ([]store.Run, error) {
	args := m.Called(ctx)
	var result []store.Run
	if value := args.Get(0); value != nil {
		result = value.([]store.Run)
	}
	return result, args.Error(1)
}

func (m *MockStore) UpdateRunStatus(ctx context.Context, runID string, status string, completionReason string) error {
	args := m.Called(ctx, runID, status, completionReason)
	return args.Error(0)
}

func (m *MockStore) DeleteRun(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	args := m.Called(ctx, runID, afterSeq)
	var result []store.RunEvent
	if value := args.Get(0); value != nil {
		result = value.([]store.RunEvent)
	}
	return result, args.Error(1)
}

func (m *MockStore) ListAnnotations(ctx context.Context, runID string) ([]store.Annotation, error) {
	args := m.Called(ctx, runID)
	var result []store.Annotation
	if value := args.Get(0); value != nil {
		result = value.([]store.Annotation)
	}
	return result, args.Error(1)
}

func (m *MockStore) SaveResult(ctx context.Context, result store.ResearchResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockStore) GetResult(ctx context.Context, runID string) (*store.ResearchResult, error) {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		return value.(*store.ResearchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.RunEvent) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, runID string) <-chan events.RunEvent {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.RunEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.RunEvent); ok {
			return ch
		}
	}
	return nil
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartResearch(ctx context.Context, runID string, topic string, depth research.Depth) error {
	args := m.Called(ctx, runID, topic, depth)
	return args.Error(0)
}

func (m *MockWorkflowService) CancelRun(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockWorkflowService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTestServer(t *testing.T, store store.Store, broker Broker, workflows WorkflowService, cfg config.Config) *httptest.Server {
	t.Helper()
	server := NewServer(store, broker, workflows, cfg)
	return httptest.NewServer(server.Router())
}
