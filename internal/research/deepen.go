package research

import (
	"context"
	"fmt"
	"strings"
)

type KeyFinding struct {
	Finding            string   `json:"finding"`
	Confidence         float64  `json:"confidence"`
	SupportingEvidence []string `json:"supporting_evidence"`
}

// Synthesis is the final cross-cutting summary. It is produced only when the
// deepening pass ran (advanced depth with at least one knowledge gap).
type Synthesis struct {
	KeyFindings            []KeyFinding `json:"key_findings"`
	RemainingUncertainties []string     `json:"remaining_uncertainties"`
}

func (s *Synthesis) Validate() error {
	if len(s.KeyFindings) == 0 {
		return fmt.Errorf("synthesis produced no key findings")
	}
	for i, finding := range s.KeyFindings {
		if strings.TrimSpace(finding.Finding) == "" {
			return fmt.Errorf("key finding %d is empty", i)
		}
		if finding.Confidence < 0 || finding.Confidence > 1 {
			return fmt.Errorf("key finding %d confidence %v out of range [0,1]", i, finding.Confidence)
		}
	}
	return nil
}

// Findings converts key findings to the annotation finding shape.
func (s *Synthesis) Findings() []Finding {
	findings := make([]Finding, 0, len(s.KeyFindings))
	for _, key := range s.KeyFindings {
		findings = append(findings, Finding{
			Insight:    key.Finding,
			Evidence:   key.SupportingEvidence,
			Confidence: key.Confidence,
		})
	}
	return findings
}

// DistributeGapQueries expands knowledge gaps into the deepening pass's search
// queries. The first query of each gap always fans out to every source; the
// rest rotate through the concrete sources by index modulo 3.
func DistributeGapQueries(gaps []KnowledgeGap) []SearchQuery {
	var queries []SearchQuery
	for _, gap := range gaps {
		for i, text := range gap.AdditionalQueries {
			if strings.TrimSpace(text) == "" {
				continue
			}
			source := SourceAll
			if i > 0 {
				source = ConcreteSources[i%len(ConcreteSources)]
			}
			queries = append(queries, SearchQuery{
				Query:     text,
				Rationale: gap.Reason,
				Source:    source,
				Priority:  3,
			})
		}
	}
	return queries
}

// Synthesize runs the final deterministic call over the complete evidence set
// plus the gap analysis. A failure is fatal to the run.
func Synthesize(ctx context.Context, generate ObjectGenerator, topic string, results []SearchResult, gap *GapAnalysis) (*Synthesis, error) {
	var synthesis Synthesis
	if err := generate(ctx, synthesisSystemPrompt, synthesisPrompt(topic, results, gap), 0, &synthesis); err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	if err := synthesis.Validate(); err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return &synthesis, nil
}
