package research

import (
	"context"
	"fmt"
	"strings"
)

type Limitation struct {
	Type               string   `json:"type"`
	Description        string   `json:"description"`
	Severity           int      `json:"severity"`
	PotentialSolutions []string `json:"potential_solutions,omitempty"`
}

type KnowledgeGap struct {
	Topic             string   `json:"topic"`
	Reason            string   `json:"reason"`
	AdditionalQueries []string `json:"additional_queries"`
}

type Followup struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
	Priority  int    `json:"priority"`
}

type GapAnalysis struct {
	Limitations         []Limitation   `json:"limitations"`
	KnowledgeGaps       []KnowledgeGap `json:"knowledge_gaps"`
	RecommendedFollowup []Followup     `json:"recommended_followup"`
}

func (g *GapAnalysis) Validate() error {
	for i, limitation := range g.Limitations {
		if strings.TrimSpace(limitation.Description) == "" {
			return fmt.Errorf("limitation %d has no description", i)
		}
		if limitation.Severity < 2 || limitation.Severity > 10 {
			return fmt.Errorf("limitation %d severity %d out of range [2,10]", i, limitation.Severity)
		}
	}
	for i, gap := range g.KnowledgeGaps {
		if strings.TrimSpace(gap.Topic) == "" {
			return fmt.Errorf("knowledge gap %d has no topic", i)
		}
	}
	for i, followup := range g.RecommendedFollowup {
		if followup.Priority < 2 || followup.Priority > 10 {
			return fmt.Errorf("followup %d priority %d out of range [2,10]", i, followup.Priority)
		}
	}
	return nil
}

// LimitationConfidence remaps a limitation's severity onto the confidence
// scale used by findings. Severities above 6 yield negative confidence; the
// value is not clamped, so clients can distinguish severe limitations from
// merely low-confidence ones.
func LimitationConfidence(severity int) float64 {
	return float64(6-severity) / 5
}

func LimitationFindings(limitations []Limitation) []Finding {
	findings := make([]Finding, 0, len(limitations))
	for _, limitation := range limitations {
		findings = append(findings, Finding{
			Insight:    limitation.Description,
			Evidence:   limitation.PotentialSolutions,
			Confidence: LimitationConfidence(limitation.Severity),
		})
	}
	return findings
}

// AnalyzeGaps reviews every result and analysis outcome in a single
// deterministic call and surfaces limitations, knowledge gaps, and
// recommended follow-ups. A failure here is fatal to the run.
func AnalyzeGaps(ctx context.Context, generate ObjectGenerator, topic string, results []SearchResult, analyses []AnalysisOutcome) (*GapAnalysis, error) {
	var gap GapAnalysis
	if err := generate(ctx, gapSystemPrompt, gapPrompt(topic, results, analyses), 0, &gap); err != nil {
		return nil, fmt.Errorf("gap analysis: %w", err)
	}
	if err := gap.Validate(); err != nil {
		return nil, fmt.Errorf("gap analysis: %w", err)
	}
	return &gap, nil
}
