package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "fathom-research"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

// StartResearch launches the research workflow for a run. The workflow ID
// is derived from the run ID so a run can never execute twice.
func (s *Service) StartResearch(ctx context.Context, runID string, topic string, depth research.Depth) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(runID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, ResearchWorkflow, ResearchInput{
		RunID: runID,
		Topic: topic,
		Depth: depth,
	})
	return err
}

func (s *Service) CancelRun(ctx context.Context, runID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(runID), "")
}

// Ping verifies the Temporal connection for readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return err
}

func workflowID(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}
