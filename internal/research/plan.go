// Package research implements the multi-step deep-research pipeline: plan
// generation, step bookkeeping, search-result accumulation, per-analysis and
// gap generation calls, and the typed progress annotations streamed to the
// client while a run executes.
package research

import (
	"context"
	"fmt"
	"strings"
)

// Depth selects the run mode. Basic runs a single research pass; advanced adds
// the gap-driven deepening pass and a final synthesis.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

func ParseDepth(raw string) (Depth, error) {
	switch Depth(strings.TrimSpace(strings.ToLower(raw))) {
	case DepthBasic, "":
		return DepthBasic, nil
	case DepthAdvanced:
		return DepthAdvanced, nil
	default:
		return "", fmt.Errorf("unknown research depth: %q", raw)
	}
}

// SourceType tags which provider a query targets. SourceAll is only valid on a
// planned query and fans out into one step per concrete source.
type SourceType string

const (
	SourceWeb      SourceType = "web"
	SourceAcademic SourceType = "academic"
	SourceX        SourceType = "x"
	SourceAll      SourceType = "all"
)

func validSource(s SourceType) bool {
	switch s {
	case SourceWeb, SourceAcademic, SourceX, SourceAll:
		return true
	}
	return false
}

// ConcreteSources is the fan-out order for SourceAll and the rotation order
// for gap-driven queries.
var ConcreteSources = []SourceType{SourceWeb, SourceAcademic, SourceX}

type SearchQuery struct {
	Query     string     `json:"query"`
	Rationale string     `json:"rationale"`
	Source    SourceType `json:"source"`
	Priority  int        `json:"priority"`
}

type AnalysisSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Importance  int    `json:"importance"`
}

const (
	maxPlanQueries  = 12
	maxPlanAnalyses = 8
	maxPlanEntries  = 20
)

// Plan is the structured research plan. It is immutable once generated; the
// caps below are the generation contract and shape validation, the scheduler
// does not re-check them.
type Plan struct {
	SearchQueries    []SearchQuery  `json:"search_queries"`
	RequiredAnalyses []AnalysisSpec `json:"required_analyses"`
}

func (p *Plan) Validate() error {
	if len(p.SearchQueries) == 0 {
		return fmt.Errorf("plan has no search queries")
	}
	if len(p.SearchQueries) > maxPlanQueries {
		return fmt.Errorf("plan has %d search queries, limit is %d", len(p.SearchQueries), maxPlanQueries)
	}
	if len(p.RequiredAnalyses) > maxPlanAnalyses {
		return fmt.Errorf("plan has %d analyses, limit is %d", len(p.RequiredAnalyses), maxPlanAnalyses)
	}
	if total := len(p.SearchQueries) + len(p.RequiredAnalyses); total > maxPlanEntries {
		return fmt.Errorf("plan has %d combined entries, limit is %d", total, maxPlanEntries)
	}
	for i, query := range p.SearchQueries {
		if strings.TrimSpace(query.Query) == "" {
			return fmt.Errorf("search query %d is empty", i)
		}
		if !validSource(query.Source) {
			return fmt.Errorf("search query %d has unknown source %q", i, query.Source)
		}
		if query.Priority < 1 || query.Priority > 5 {
			return fmt.Errorf("search query %d priority %d out of range [1,5]", i, query.Priority)
		}
	}
	for i, analysis := range p.RequiredAnalyses {
		if strings.TrimSpace(analysis.Type) == "" {
			return fmt.Errorf("analysis %d has no type", i)
		}
		if analysis.Importance < 1 || analysis.Importance > 5 {
			return fmt.Errorf("analysis %d importance %d out of range [1,5]", i, analysis.Importance)
		}
	}
	return nil
}

// ObjectGenerator runs one constrained generation call and decodes the result
// into out. It is the only seam between the research pipeline and the LLM
// layer, which keeps every stage a pure function of its inputs in tests.
type ObjectGenerator func(ctx context.Context, system string, prompt string, temperature float64, out any) error

// GeneratePlan turns a free-text topic into a Plan. The call is deterministic
// (temperature 0). Any generation or shape failure is fatal to the run:
// nothing downstream can proceed without a plan.
func GeneratePlan(ctx context.Context, generate ObjectGenerator, topic string) (*Plan, error) {
	var plan Plan
	if err := generate(ctx, planSystemPrompt, planPrompt(topic), 0, &plan); err != nil {
		return nil, fmt.Errorf("generate research plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("generate research plan: %w", err)
	}
	return &plan, nil
}
