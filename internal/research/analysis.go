package research

import (
	"context"
	"fmt"
	"strings"
)

// Finding is one structured insight produced by an analysis call.
type Finding struct {
	Insight    string   `json:"insight"`
	Evidence   []string `json:"evidence"`
	Confidence float64  `json:"confidence"`
}

type AnalysisResult struct {
	Findings []Finding `json:"findings"`
}

func (r *AnalysisResult) Validate() error {
	if len(r.Findings) == 0 {
		return fmt.Errorf("analysis produced no findings")
	}
	for i, finding := range r.Findings {
		if strings.TrimSpace(finding.Insight) == "" {
			return fmt.Errorf("finding %d has no insight", i)
		}
		if finding.Confidence < 0 || finding.Confidence > 1 {
			return fmt.Errorf("finding %d confidence %v out of range [0,1]", i, finding.Confidence)
		}
	}
	return nil
}

// AnalysisOutcome pairs a planned analysis with what it produced; the gap
// analyzer reads these alongside the raw results.
type AnalysisOutcome struct {
	Spec     AnalysisSpec `json:"spec"`
	Findings []Finding    `json:"findings"`
}

// Analyze runs one planned analysis over the entire accumulated result set.
// Analyses are allowed more variation than the plan (temperature 0.5). There
// is no recovery path: a failed analysis aborts the run, unlike a failed
// search step.
func Analyze(ctx context.Context, generate ObjectGenerator, spec AnalysisSpec, results []SearchResult) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := generate(ctx, analysisSystemPrompt, analysisPrompt(spec, results), 0.5, &result); err != nil {
		return nil, fmt.Errorf("analysis %q: %w", spec.Type, err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("analysis %q: %w", spec.Type, err)
	}
	return &result, nil
}
