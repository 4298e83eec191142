package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fathomhq/fathom/control-plane/internal/events"
	"github.com/fathomhq/fathom/control-plane/internal/llm"
	"github.com/fathomhq/fathom/control-plane/internal/metrics"
	"github.com/fathomhq/fathom/control-plane/internal/research"
	"github.com/fathomhq/fathom/control-plane/internal/search"
	"github.com/fathomhq/fathom/control-plane/internal/store"
)

type PlanInput struct {
	RunID string
	Topic string
}

type PlanOutput struct {
	Plan *research.Plan `json:"plan"`
}

type SearchInput struct {
	RunID  string
	StepID string
	Query  research.SearchQuery
}

// SearchOutput carries either a result or an error marker. Provider
// failures are reported through Error so the workflow can tolerate them
// without an activity failure.
type SearchOutput struct {
	Result *research.SearchResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

type AnalysisInput struct {
	RunID   string
	StepID  string
	Spec    research.AnalysisSpec
	Results []research.SearchResult
}

type AnalysisOutput struct {
	Findings []research.Finding `json:"findings"`
}

type GapInput struct {
	RunID    string
	Topic    string
	Results  []research.SearchResult
	Analyses []research.AnalysisOutcome
}

type GapOutput struct {
	Gap *research.GapAnalysis `json:"gap"`
}

type SynthesisInput struct {
	RunID          string
	Topic          string
	Results        []research.SearchResult
	Gap            *research.GapAnalysis
	CompletedSteps int
	TotalSteps     int
}

type SynthesisOutput struct {
	Synthesis *research.Synthesis `json:"synthesis"`
}

type ProgressInput struct {
	RunID          string
	CompletedSteps int
	TotalSteps     int
	IsComplete     bool
}

type CompleteInput struct {
	RunID          string
	Plan           *research.Plan
	Results        []research.SearchResult
	Synthesis      *research.Synthesis
	CompletedSteps int
	TotalSteps     int
}

type RunFailureInput struct {
	RunID  string
	Reason string
	Error  string
}

var (
	newProvider = llm.NewProvider
	marshalJSON = json.Marshal
)

type ResearchActivities struct {
	store          store.Store
	llmConfig      llm.Config
	adapters       map[research.SourceType]search.Adapter
	enricher       *search.Enricher
	controlPlane   string
	httpClient     *http.Client
	requestTimeout time.Duration
	maxResults     int
}

type ResearchActivitiesOption func(*ResearchActivities)

// WithEnricher enables readability extraction on web search results.
func WithEnricher(enricher *search.Enricher) ResearchActivitiesOption {
	return func(a *ResearchActivities) {
		a.enricher = enricher
	}
}

func WithMaxResults(n int) ResearchActivitiesOption {
	return func(a *ResearchActivities) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

func NewResearchActivities(store store.Store, llmConfig llm.Config, adapters []search.Adapter, controlPlaneURL string, opts ...ResearchActivitiesOption) *ResearchActivities {
	bySource := map[research.SourceType]search.Adapter{}
	for _, adapter := range adapters {
		if adapter != nil {
			bySource[adapter.Source()] = adapter
		}
	}
	activities := &ResearchActivities{
		store:          store,
		llmConfig:      llmConfig,
		adapters:       bySource,
		controlPlane:   strings.TrimRight(controlPlaneURL, "/"),
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		requestTimeout: 10 * time.Second,
		maxResults:     10,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(activities)
		}
	}
	return activities
}

func (a *ResearchActivities) GeneratePlan(ctx context.Context, input PlanInput) (PlanOutput, error) {
	if strings.TrimSpace(input.RunID) == "" {
		return PlanOutput{}, errors.New("run_id required")
	}
	if strings.TrimSpace(input.Topic) == "" {
		return PlanOutput{}, errors.New("topic required")
	}

	_ = a.emitEvent(ctx, input.RunID, "run.started", map[string]any{"topic": input.Topic})
	_ = a.emitAnnotation(ctx, input.RunID, research.PlanRunning())

	generate, err := a.objectGenerator()
	if err != nil {
		return PlanOutput{}, err
	}
	plan, err := research.GeneratePlan(ctx, generate, input.Topic)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("plan", metrics.OutcomeError).Inc()
		return PlanOutput{}, err
	}
	metrics.LLMCalls.WithLabelValues("plan", metrics.OutcomeOK).Inc()

	// The initial denominator counts plan steps only; conceptual steps
	// grow it later.
	counter := research.NewRegistry()
	counter.AddPlan(plan)
	_ = a.emitAnnotation(ctx, input.RunID, research.PlanCompleted(plan, counter.TotalSteps()))

	return PlanOutput{Plan: plan}, nil
}

func (a *ResearchActivities) ExecuteSearch(ctx context.Context, input SearchInput) (SearchOutput, error) {
	adapter, ok := a.adapters[input.Query.Source]
	if !ok {
		return SearchOutput{Error: fmt.Sprintf("no adapter for source %q", input.Query.Source)}, nil
	}

	notifier := &runNotifier{activities: a, runID: input.RunID}
	result, err := search.Run(ctx, adapter, notifier, search.Request{
		Query:   input.Query.Query,
		StepID:  input.StepID,
		Options: search.Options{MaxResults: a.maxResults},
	})
	if err != nil {
		metrics.SearchesExecuted.WithLabelValues(string(input.Query.Source), metrics.OutcomeError).Inc()
		return SearchOutput{Error: err.Error()}, nil
	}
	metrics.SearchesExecuted.WithLabelValues(string(input.Query.Source), metrics.OutcomeOK).Inc()

	items := result.Items
	if a.enricher != nil && input.Query.Source == research.SourceWeb {
		items = a.enricher.Enrich(ctx, items)
	}

	return SearchOutput{Result: &research.SearchResult{
		Type:    input.Query.Source,
		Query:   input.Query,
		Results: items,
	}}, nil
}

func (a *ResearchActivities) RunAnalysis(ctx context.Context, input AnalysisInput) (AnalysisOutput, error) {
	step := research.Step{ID: input.StepID, Kind: research.StepAnalysis, Analysis: input.Spec}
	_ = a.emitAnnotation(ctx, input.RunID, research.AnalysisRunning(step))

	generate, err := a.objectGenerator()
	if err != nil {
		return AnalysisOutput{}, err
	}
	result, err := research.Analyze(ctx, generate, input.Spec, input.Results)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("analysis", metrics.OutcomeError).Inc()
		return AnalysisOutput{}, err
	}
	metrics.LLMCalls.WithLabelValues("analysis", metrics.OutcomeOK).Inc()

	_ = a.emitAnnotation(ctx, input.RunID, research.AnalysisCompleted(step, result.Findings))
	return AnalysisOutput{Findings: result.Findings}, nil
}

func (a *ResearchActivities) AnalyzeGaps(ctx context.Context, input GapInput) (GapOutput, error) {
	_ = a.emitAnnotation(ctx, input.RunID, research.GapAnalysisRunning())

	generate, err := a.objectGenerator()
	if err != nil {
		return GapOutput{}, err
	}
	gap, err := research.AnalyzeGaps(ctx, generate, input.Topic, input.Results, input.Analyses)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("gaps", metrics.OutcomeError).Inc()
		return GapOutput{}, err
	}
	metrics.LLMCalls.WithLabelValues("gaps", metrics.OutcomeOK).Inc()

	_ = a.emitAnnotation(ctx, input.RunID, research.GapAnalysisCompleted(gap))
	return GapOutput{Gap: gap}, nil
}

func (a *ResearchActivities) Synthesize(ctx context.Context, input SynthesisInput) (SynthesisOutput, error) {
	_ = a.emitAnnotation(ctx, input.RunID, research.SynthesisRunning())

	generate, err := a.objectGenerator()
	if err != nil {
		return SynthesisOutput{}, err
	}
	synthesis, err := research.Synthesize(ctx, generate, input.Topic, input.Results, input.Gap)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("synthesis", metrics.OutcomeError).Inc()
		return SynthesisOutput{}, err
	}
	metrics.LLMCalls.WithLabelValues("synthesis", metrics.OutcomeOK).Inc()

	_ = a.emitAnnotation(ctx, input.RunID, research.SynthesisCompleted(synthesis, input.CompletedSteps, input.TotalSteps))
	return SynthesisOutput{Synthesis: synthesis}, nil
}

func (a *ResearchActivities) PublishProgress(ctx context.Context, input ProgressInput) error {
	return a.emitAnnotation(ctx, input.RunID, research.Progress(input.CompletedSteps, input.TotalSteps, input.IsComplete))
}

func (a *ResearchActivities) CompleteRun(ctx context.Context, input CompleteInput) error {
	output, err := buildRunOutput(input.Plan, input.Results, input.Synthesis)
	if err != nil {
		return err
	}
	if err := a.store.SaveResult(ctx, store.ResearchResult{
		RunID:     input.RunID,
		Output:    output,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return err
	}

	_ = a.emitAnnotation(ctx, input.RunID, research.Progress(input.CompletedSteps, input.TotalSteps, true))
	if err := a.emitEvent(ctx, input.RunID, events.TypeRunCompleted, map[string]any{
		"completion_reason": "research_complete",
	}); err != nil {
		return err
	}
	metrics.RunsCompleted.WithLabelValues("completed").Inc()
	return nil
}

func (a *ResearchActivities) HandleRunFailure(ctx context.Context, input RunFailureInput) error {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "activity_error"
	}
	err := a.emitEvent(ctx, input.RunID, events.TypeRunFailed, map[string]any{
		"completion_reason": reason,
		"error":             input.Error,
	})
	if err != nil {
		return err
	}
	metrics.RunsCompleted.WithLabelValues("failed").Inc()
	return nil
}

// buildRunOutput flattens the final output to the generic map shape the
// store persists. Synthesis stays an explicit null when the deepening
// pass did not run.
func buildRunOutput(plan *research.Plan, results []research.SearchResult, synthesis *research.Synthesis) (map[string]any, error) {
	if results == nil {
		results = []research.SearchResult{}
	}
	encoded, err := marshalJSON(map[string]any{
		"plan":      plan,
		"results":   results,
		"synthesis": synthesis,
	})
	if err != nil {
		return nil, err
	}
	output := map[string]any{}
	if err := json.Unmarshal(encoded, &output); err != nil {
		return nil, err
	}
	return output, nil
}

func (a *ResearchActivities) objectGenerator() (research.ObjectGenerator, error) {
	provider, err := newProvider(a.llmConfig)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, system string, prompt string, temperature float64, out any) error {
		req := llm.Request{
			Messages: []llm.Message{
				{Role: "system", Content: system},
				{Role: "user", Content: prompt},
			},
			Temperature:  temperature,
			JSONResponse: true,
		}
		return llm.GenerateObject(ctx, provider, req, out)
	}, nil
}

// runNotifier routes adapter lifecycle annotations onto a run's stream.
type runNotifier struct {
	activities *ResearchActivities
	runID      string
}

func (n *runNotifier) SearchRunning(ctx context.Context, stepID string, source research.SourceType, query string) error {
	return n.activities.emitAnnotation(ctx, n.runID, research.QueryRunning(stepID, source, query))
}

func (n *runNotifier) SearchCompleted(ctx context.Context, stepID string, source research.SourceType, query string, resultCount int) error {
	return n.activities.emitAnnotation(ctx, n.runID, research.QueryCompleted(stepID, source, query, resultCount))
}

func (a *ResearchActivities) emitAnnotation(ctx context.Context, runID string, ann research.Annotation) error {
	payload, err := ann.Payload()
	if err != nil {
		return err
	}
	eventType := events.TypeResearchUpdate
	if ann.Type == research.AnnotationQueryCompletion {
		eventType = events.TypeQueryCompletion
	}
	return a.emitEvent(ctx, runID, eventType, payload)
}

// emitEvent posts to the control plane so live subscribers see the event
// immediately; when that fails the event is appended to the store
// directly and picked up on the next replay.
func (a *ResearchActivities) emitEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	if err := a.postEvent(ctx, runID, eventType, payload); err == nil {
		return nil
	}
	return a.appendLocalEvent(ctx, runID, eventType, "worker", payload)
}

func (a *ResearchActivities) postEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	if a.controlPlane == "" {
		return errors.New("control plane URL not configured")
	}
	url := fmt.Sprintf("%s/runs/%s/events", a.controlPlane, runID)
	body, err := marshalJSON(map[string]any{
		"type":      eventType,
		"source":    "worker",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"payload":   payload,
	})
	if err != nil {
		return err
	}
	requestCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("control plane event failed: %s", resp.Status)
	}
	return nil
}

func (a *ResearchActivities) appendLocalEvent(ctx context.Context, runID string, eventType string, source string, payload map[string]any) error {
	seq, err := a.store.NextSeq(ctx, runID)
	if err != nil {
		return err
	}
	return a.store.AppendEvent(ctx, store.RunEvent{
		RunID:     runID,
		Seq:       seq,
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    source,
		Payload:   payload,
	})
}
