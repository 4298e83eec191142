package research

import (
	"encoding/json"
	"fmt"
	"time"
)

// Annotation type discriminants.
const (
	AnnotationResearchUpdate  = "research_update"
	AnnotationQueryCompletion = "query_completion"
)

// research_update sub-discriminants.
const (
	UpdateKindPlan     = "plan"
	UpdateKindAnalysis = "analysis"
	UpdateKindProgress = "progress"
)

// Annotation statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Annotation is one typed progress event streamed to the client. Two
// annotations sharing an id where the later one sets Overwrite replace each
// other in the client view; that is how a step's running→completed lifecycle
// occupies a single display slot.
type Annotation struct {
	Type string         `json:"type"`
	Data AnnotationData `json:"data"`
}

type AnnotationData struct {
	ID        string `json:"id"`
	Kind      string `json:"type,omitempty"`
	Status    string `json:"status"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Overwrite bool   `json:"overwrite"`

	// research_update payloads.
	Plan            *Plan          `json:"plan,omitempty"`
	TotalSteps      int            `json:"total_steps,omitempty"`
	CompletedSteps  int            `json:"completed_steps,omitempty"`
	IsComplete      bool           `json:"is_complete,omitempty"`
	AnalysisType    string         `json:"analysis_type,omitempty"`
	Findings        []Finding      `json:"findings,omitempty"`
	Gaps            []KnowledgeGap `json:"gaps,omitempty"`
	Recommendations []Followup     `json:"recommendations,omitempty"`
	Uncertainties   []string       `json:"uncertainties,omitempty"`

	// query_completion payloads.
	Source      SourceType `json:"source,omitempty"`
	Query       string     `json:"query,omitempty"`
	ResultCount int        `json:"result_count,omitempty"`
}

// Validate enforces the annotation schema. A malformed annotation must fail
// the write rather than silently passing through.
func (a Annotation) Validate() error {
	switch a.Type {
	case AnnotationResearchUpdate:
		switch a.Data.Kind {
		case UpdateKindPlan, UpdateKindAnalysis, UpdateKindProgress:
		default:
			return fmt.Errorf("research_update has unknown data type %q", a.Data.Kind)
		}
	case AnnotationQueryCompletion:
		switch a.Data.Source {
		case SourceWeb, SourceAcademic, SourceX:
		default:
			return fmt.Errorf("query_completion has unknown source %q", a.Data.Source)
		}
		if a.Data.Query == "" {
			return fmt.Errorf("query_completion is missing its query")
		}
	default:
		return fmt.Errorf("unknown annotation type %q", a.Type)
	}
	if a.Data.ID == "" {
		return fmt.Errorf("annotation is missing an id")
	}
	if a.Data.Status != StatusRunning && a.Data.Status != StatusCompleted {
		return fmt.Errorf("annotation %s has unknown status %q", a.Data.ID, a.Data.Status)
	}
	if a.Data.Title == "" {
		return fmt.Errorf("annotation %s is missing a title", a.Data.ID)
	}
	if a.Data.Timestamp <= 0 {
		return fmt.Errorf("annotation %s is missing a timestamp", a.Data.ID)
	}
	return nil
}

// Payload converts the annotation to the generic event payload shape carried
// by run events.
func (a Annotation) Payload() (map[string]any, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// AnnotationFromPayload is the inverse of Payload; it re-validates so malformed
// payloads are rejected on ingest as well as on write.
func AnnotationFromPayload(payload map[string]any) (Annotation, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Annotation{}, err
	}
	var annotation Annotation
	if err := json.Unmarshal(encoded, &annotation); err != nil {
		return Annotation{}, err
	}
	if err := annotation.Validate(); err != nil {
		return Annotation{}, err
	}
	return annotation, nil
}

func now() int64 {
	return time.Now().UnixMilli()
}

func PlanRunning() Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:        "research-plan-initial",
			Kind:      UpdateKindPlan,
			Status:    StatusRunning,
			Title:     "Research Plan",
			Message:   "Creating research plan...",
			Timestamp: now(),
		},
	}
}

func PlanCompleted(plan *Plan, totalSteps int) Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:         "research-plan",
			Kind:       UpdateKindPlan,
			Status:     StatusCompleted,
			Title:      "Research Plan",
			Message:    "Research plan created",
			Timestamp:  now(),
			Overwrite:  true,
			Plan:       plan,
			TotalSteps: totalSteps,
		},
	}
}

func AnalysisRunning(step Step) Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:           step.ID,
			Kind:         UpdateKindAnalysis,
			Status:       StatusRunning,
			Title:        fmt.Sprintf("Analyzing %s", step.Analysis.Type),
			Message:      fmt.Sprintf("Analyzing %s...", step.Analysis.Type),
			Timestamp:    now(),
			AnalysisType: step.Analysis.Type,
		},
	}
}

func AnalysisCompleted(step Step, findings []Finding) Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:           step.ID,
			Kind:         UpdateKindAnalysis,
			Status:       StatusCompleted,
			Title:        fmt.Sprintf("Analysis of %s complete", step.Analysis.Type),
			Message:      fmt.Sprintf("Analysis of %s complete", step.Analysis.Type),
			Timestamp:    now(),
			Overwrite:    true,
			AnalysisType: step.Analysis.Type,
			Findings:     findings,
		},
	}
}

func GapAnalysisRunning() Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:           "gap-analysis",
			Kind:         UpdateKindAnalysis,
			Status:       StatusRunning,
			Title:        "Research Gaps and Limitations",
			Message:      "Analyzing research gaps and limitations...",
			Timestamp:    now(),
			AnalysisType: "gaps",
		},
	}
}

// GapAnalysisCompleted carries the gaps plus the limitations remapped into
// findings via LimitationFindings.
func GapAnalysisCompleted(gap *GapAnalysis) Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:              "gap-analysis",
			Kind:            UpdateKindAnalysis,
			Status:          StatusCompleted,
			Title:           "Research Gaps and Limitations",
			Message:         "Gap analysis complete",
			Timestamp:       now(),
			Overwrite:       true,
			AnalysisType:    "gaps",
			Findings:        LimitationFindings(gap.Limitations),
			Gaps:            gap.KnowledgeGaps,
			Recommendations: gap.RecommendedFollowup,
		},
	}
}

func SynthesisRunning() Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:           "final-synthesis",
			Kind:         UpdateKindAnalysis,
			Status:       StatusRunning,
			Title:        "Final Research Synthesis",
			Message:      "Synthesizing research findings...",
			Timestamp:    now(),
			AnalysisType: "synthesis",
		},
	}
}

func SynthesisCompleted(synthesis *Synthesis, completedSteps, totalSteps int) Annotation {
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:             "final-synthesis",
			Kind:           UpdateKindAnalysis,
			Status:         StatusCompleted,
			Title:          "Final Research Synthesis",
			Message:        "Research synthesis complete",
			Timestamp:      now(),
			Overwrite:      true,
			AnalysisType:   "synthesis",
			Findings:       synthesis.Findings(),
			Uncertainties:  synthesis.RemainingUncertainties,
			CompletedSteps: completedSteps,
			TotalSteps:     totalSteps,
		},
	}
}

// Progress reports the run's step counters. All progress annotations share one
// id and overwrite each other, so the client shows a single advancing counter.
func Progress(completedSteps, totalSteps int, isComplete bool) Annotation {
	message := fmt.Sprintf("Completed %d of %d steps", completedSteps, totalSteps)
	if isComplete {
		message = "Research complete"
	}
	status := StatusRunning
	if isComplete {
		status = StatusCompleted
	}
	return Annotation{
		Type: AnnotationResearchUpdate,
		Data: AnnotationData{
			ID:             "research-progress",
			Kind:           UpdateKindProgress,
			Status:         status,
			Title:          "Research Progress",
			Message:        message,
			Timestamp:      now(),
			Overwrite:      true,
			CompletedSteps: completedSteps,
			TotalSteps:     totalSteps,
			IsComplete:     isComplete,
		},
	}
}

func QueryRunning(stepID string, source SourceType, query string) Annotation {
	return Annotation{
		Type: AnnotationQueryCompletion,
		Data: AnnotationData{
			ID:        stepID,
			Status:    StatusRunning,
			Title:     fmt.Sprintf("Searching %s", source),
			Message:   fmt.Sprintf("Searching %s for: %s", source, query),
			Timestamp: now(),
			Source:    source,
			Query:     query,
		},
	}
}

func QueryCompleted(stepID string, source SourceType, query string, resultCount int) Annotation {
	return Annotation{
		Type: AnnotationQueryCompletion,
		Data: AnnotationData{
			ID:          stepID,
			Status:      StatusCompleted,
			Title:       fmt.Sprintf("Searched %s", source),
			Message:     fmt.Sprintf("Found %d results for: %s", resultCount, query),
			Timestamp:   now(),
			Overwrite:   true,
			Source:      source,
			Query:       query,
			ResultCount: resultCount,
		},
	}
}
