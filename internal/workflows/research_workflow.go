// Package workflows orchestrates research runs on Temporal. The workflow
// owns the step registry and executes the pipeline stages as activities;
// activities own all side effects (LLM calls, provider searches, event
// emission).
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

type ResearchInput struct {
	RunID string
	Topic string
	Depth research.Depth
}

type ResearchOutput struct {
	Status           string
	CompletionReason string
}

// ResearchWorkflow runs plan generation, sequential searches, analyses,
// gap analysis, the conditional deepening pass, and completion. Search
// failures are tolerated; any generation failure aborts the run.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	if input.Depth == "" {
		input.Depth = research.DepthBasic
	}

	planResult := PlanOutput{}
	if err := workflow.ExecuteActivity(ctx, "GeneratePlan", PlanInput{
		RunID: input.RunID,
		Topic: input.Topic,
	}).Get(ctx, &planResult); err != nil {
		logger.Error("plan generation failed", "error", err)
		return failRun(ctx, input.RunID, "plan_generation_failed", err)
	}
	plan := planResult.Plan

	registry := research.NewRegistry()
	searchSteps, analysisSteps := registry.AddPlan(plan)

	// Results accumulate across both search waves and flow into every
	// later stage explicitly.
	results := []research.SearchResult{}
	results = runSearchSteps(ctx, input.RunID, registry, searchSteps, results)

	analyses := []research.AnalysisOutcome{}
	for _, step := range analysisSteps {
		registry.MarkRunning(step.ID)
		out := AnalysisOutput{}
		if err := workflow.ExecuteActivity(ctx, "RunAnalysis", AnalysisInput{
			RunID:   input.RunID,
			StepID:  step.ID,
			Spec:    step.Analysis,
			Results: results,
		}).Get(ctx, &out); err != nil {
			logger.Error("analysis failed", "step", step.ID, "error", err)
			registry.MarkFailed(step.ID)
			return failRun(ctx, input.RunID, "analysis_failed", err)
		}
		registry.MarkDone(step.ID)
		analyses = append(analyses, research.AnalysisOutcome{Spec: step.Analysis, Findings: out.Findings})
		publishProgress(ctx, input.RunID, registry, false)
	}

	gapStep := registry.AddConceptual(research.StepGapAnalysis, "gap-analysis")
	registry.MarkRunning(gapStep.ID)
	gapResult := GapOutput{}
	if err := workflow.ExecuteActivity(ctx, "AnalyzeGaps", GapInput{
		RunID:    input.RunID,
		Topic:    input.Topic,
		Results:  results,
		Analyses: analyses,
	}).Get(ctx, &gapResult); err != nil {
		logger.Error("gap analysis failed", "error", err)
		registry.MarkFailed(gapStep.ID)
		return failRun(ctx, input.RunID, "gap_analysis_failed", err)
	}
	registry.MarkDone(gapStep.ID)
	publishProgress(ctx, input.RunID, registry, false)

	gap := gapResult.Gap
	var synthesis *research.Synthesis
	if input.Depth == research.DepthAdvanced && len(gap.KnowledgeGaps) > 0 {
		gapQueries := research.DistributeGapQueries(gap.KnowledgeGaps)
		gapSteps := registry.AddGapQueries(gapQueries)
		results = runSearchSteps(ctx, input.RunID, registry, gapSteps, results)

		synthStep := registry.AddConceptual(research.StepSynthesis, "final-synthesis")
		// Marked done before the call so the completion annotation can
		// carry registry-derived counts; a failure aborts the run anyway.
		registry.MarkDone(synthStep.ID)
		synthResult := SynthesisOutput{}
		if err := workflow.ExecuteActivity(ctx, "Synthesize", SynthesisInput{
			RunID:          input.RunID,
			Topic:          input.Topic,
			Results:        results,
			Gap:            gap,
			CompletedSteps: registry.CompletedSteps(),
			TotalSteps:     registry.TotalSteps(),
		}).Get(ctx, &synthResult); err != nil {
			logger.Error("synthesis failed", "error", err)
			registry.MarkFailed(synthStep.ID)
			return failRun(ctx, input.RunID, "synthesis_failed", err)
		}
		synthesis = synthResult.Synthesis
	}

	if err := workflow.ExecuteActivity(ctx, "CompleteRun", CompleteInput{
		RunID:          input.RunID,
		Plan:           plan,
		Results:        results,
		Synthesis:      synthesis,
		CompletedSteps: registry.CompletedSteps(),
		TotalSteps:     registry.TotalSteps(),
	}).Get(ctx, nil); err != nil {
		logger.Error("run completion failed", "error", err)
		return failRun(ctx, input.RunID, "completion_failed", err)
	}

	return ResearchOutput{Status: "completed"}, nil
}

// runSearchSteps executes one wave of search steps in order. A failed
// search marks its step failed and contributes nothing to the evidence
// set; the wave continues.
func runSearchSteps(ctx workflow.Context, runID string, registry *research.Registry, steps []research.Step, results []research.SearchResult) []research.SearchResult {
	logger := workflow.GetLogger(ctx)
	for _, step := range steps {
		registry.MarkRunning(step.ID)
		out := SearchOutput{}
		err := workflow.ExecuteActivity(ctx, "ExecuteSearch", SearchInput{
			RunID:  runID,
			StepID: step.ID,
			Query:  step.Query,
		}).Get(ctx, &out)
		if err != nil || out.Error != "" {
			if err != nil {
				logger.Error("search step failed", "step", step.ID, "error", err)
			} else {
				logger.Warn("search step failed", "step", step.ID, "error", out.Error)
			}
			registry.MarkFailed(step.ID)
			publishProgress(ctx, runID, registry, false)
			continue
		}
		registry.MarkDone(step.ID)
		results = append(results, *out.Result)
		publishProgress(ctx, runID, registry, false)
	}
	return results
}

func publishProgress(ctx workflow.Context, runID string, registry *research.Registry, isComplete bool) {
	err := workflow.ExecuteActivity(ctx, "PublishProgress", ProgressInput{
		RunID:          runID,
		CompletedSteps: registry.CompletedSteps(),
		TotalSteps:     registry.TotalSteps(),
		IsComplete:     isComplete,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("progress publish failed", "error", err)
	}
}

func failRun(ctx workflow.Context, runID string, reason string, cause error) (ResearchOutput, error) {
	failureInput := RunFailureInput{
		RunID:  runID,
		Reason: reason,
		Error:  cause.Error(),
	}
	if err := workflow.ExecuteActivity(ctx, "HandleRunFailure", failureInput).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("failed to persist run failure", "error", err)
	}
	return ResearchOutput{Status: "failed", CompletionReason: reason}, cause
}
