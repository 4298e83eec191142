package research

import (
	"encoding/json"
	"fmt"
	"strings"
)

const planSystemPrompt = `You are a research planner. You respond with a single JSON object and nothing else.`

func planPrompt(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a research plan for the topic: %q\n\n", topic)
	b.WriteString(`Respond with a JSON object of this exact shape:
{
  "search_queries": [
    {"query": "...", "rationale": "...", "source": "web|academic|x|all", "priority": 3}
  ],
  "required_analyses": [
    {"type": "...", "description": "...", "importance": 3}
  ]
}

Rules:
- At most 12 search queries and at most 8 analyses, 20 entries combined.
- priority and importance are integers between 2 and 4.
- Use source "academic" for scholarly questions, "x" for current sentiment and
  discussion, "web" for general coverage, and "all" when every perspective matters.
- Each rationale explains why the query advances the research.`)
	return b.String()
}

const analysisSystemPrompt = `You are a research analyst. You respond with a single JSON object and nothing else.`

func analysisPrompt(spec AnalysisSpec, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a %q analysis: %s\n\n", spec.Type, spec.Description)
	b.WriteString("Search results collected so far:\n")
	b.WriteString(serializeResults(results))
	b.WriteString(`

Respond with a JSON object of this exact shape:
{
  "findings": [
    {"insight": "...", "evidence": ["..."], "confidence": 0.8}
  ]
}

confidence is a number between 0 and 1. Ground every insight in the results above.`)
	return b.String()
}

const gapSystemPrompt = `You are a research reviewer looking for weaknesses and missing coverage. You respond with a single JSON object and nothing else.`

func gapPrompt(topic string, results []SearchResult, analyses []AnalysisOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review the research on %q for limitations and knowledge gaps.\n\n", topic)
	b.WriteString("Search results:\n")
	b.WriteString(serializeResults(results))
	b.WriteString("\nCompleted analyses:\n")
	b.WriteString(serializeJSON(analyses))
	b.WriteString(`

Respond with a JSON object of this exact shape:
{
  "limitations": [
    {"type": "...", "description": "...", "severity": 5, "potential_solutions": ["..."]}
  ],
  "knowledge_gaps": [
    {"topic": "...", "reason": "...", "additional_queries": ["..."]}
  ],
  "recommended_followup": [
    {"action": "...", "rationale": "...", "priority": 5}
  ]
}

severity and priority are integers between 2 and 10.`)
	return b.String()
}

const synthesisSystemPrompt = `You are a research synthesizer producing the final summary. You respond with a single JSON object and nothing else.`

func synthesisPrompt(topic string, results []SearchResult, gap *GapAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize all research findings on %q.\n\n", topic)
	b.WriteString("Complete evidence set:\n")
	b.WriteString(serializeResults(results))
	b.WriteString("\nGap analysis:\n")
	b.WriteString(serializeJSON(gap))
	b.WriteString(`

Respond with a JSON object of this exact shape:
{
  "key_findings": [
    {"finding": "...", "confidence": 0.8, "supporting_evidence": ["..."]}
  ],
  "remaining_uncertainties": ["..."]
}

confidence is a number between 0 and 1.`)
	return b.String()
}

// serializeResults feeds the accumulated results to generation calls verbatim.
func serializeResults(results []SearchResult) string {
	if len(results) == 0 {
		return "[]"
	}
	return serializeJSON(results)
}

func serializeJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
