package research

import (
	"context"
	"testing"
)

func TestDistributeGapQueries(t *testing.T) {
	gaps := []KnowledgeGap{
		{
			Topic:  "storage costs",
			Reason: "no recent figures",
			AdditionalQueries: []string{
				"grid storage costs 2026",
				"battery pack price trends",
				"pumped hydro economics",
				"flow battery deployments",
			},
		},
		{
			Topic:             "policy",
			Reason:            "regulation unclear",
			AdditionalQueries: []string{"renewable subsidy changes", "  ", "carbon pricing updates"},
		},
	}

	queries := DistributeGapQueries(gaps)

	wantSources := []SourceType{
		SourceAll,      // first query of gap 1 fans out
		SourceAcademic, // index 1 -> ConcreteSources[1]
		SourceX,        // index 2 -> ConcreteSources[2]
		SourceWeb,      // index 3 -> ConcreteSources[0]
		SourceAll,      // first query of gap 2
		SourceX,        // index 2 of gap 2 (blank index 1 skipped, index preserved)
	}
	if len(queries) != len(wantSources) {
		t.Fatalf("expected %d queries, got %d", len(wantSources), len(queries))
	}
	for i, want := range wantSources {
		if queries[i].Source != want {
			t.Errorf("query %d source: got %q, want %q", i, queries[i].Source, want)
		}
	}

	for _, q := range queries[:4] {
		if q.Rationale != "no recent figures" {
			t.Errorf("rationale: got %q", q.Rationale)
		}
		if q.Priority != 3 {
			t.Errorf("priority: got %d, want 3", q.Priority)
		}
	}
}

func TestDistributeGapQueries_Empty(t *testing.T) {
	if got := DistributeGapQueries(nil); len(got) != 0 {
		t.Fatalf("expected no queries, got %d", len(got))
	}
	if got := DistributeGapQueries([]KnowledgeGap{{Topic: "t"}}); len(got) != 0 {
		t.Fatalf("expected no queries for gap without additional queries, got %d", len(got))
	}
}

func TestSynthesisValidate(t *testing.T) {
	valid := &Synthesis{
		KeyFindings: []KeyFinding{
			{Finding: "storage is the bottleneck", Confidence: 0.8, SupportingEvidence: []string{"three reports"}},
		},
		RemainingUncertainties: []string{"policy direction"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid synthesis, got %v", err)
	}

	if err := (&Synthesis{}).Validate(); err == nil {
		t.Fatal("empty synthesis should fail")
	}

	badConfidence := &Synthesis{KeyFindings: []KeyFinding{{Finding: "x", Confidence: 1.2}}}
	if err := badConfidence.Validate(); err == nil {
		t.Fatal("confidence above 1 should fail")
	}
}

func TestSynthesisFindings(t *testing.T) {
	synthesis := &Synthesis{
		KeyFindings: []KeyFinding{
			{Finding: "f1", Confidence: 0.9, SupportingEvidence: []string{"e1"}},
			{Finding: "f2", Confidence: 0.4},
		},
	}
	findings := synthesis.Findings()
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Insight != "f1" || findings[0].Confidence != 0.9 {
		t.Errorf("finding 0: got %+v", findings[0])
	}
}

func TestSynthesize_ShapeFailureIsFatal(t *testing.T) {
	_, err := Synthesize(context.Background(), stubGenerator(&Synthesis{}, nil), "topic", nil, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
