package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validPlan() *Plan {
	return &Plan{
		SearchQueries: []SearchQuery{
			{Query: "solar adoption rates", Source: SourceWeb, Priority: 4},
			{Query: "wind power economics", Source: SourceAll, Priority: 3},
		},
		RequiredAnalyses: []AnalysisSpec{
			{Type: "trends", Description: "trend analysis", Importance: 4},
		},
	}
}

func TestParseDepth(t *testing.T) {
	cases := []struct {
		raw     string
		want    Depth
		wantErr bool
	}{
		{"basic", DepthBasic, false},
		{"advanced", DepthAdvanced, false},
		{"", DepthBasic, false},
		{"  Advanced ", DepthAdvanced, false},
		{"extreme", "", true},
	}
	for _, tc := range cases {
		got, err := ParseDepth(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDepth(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDepth(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDepth(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestPlanValidate(t *testing.T) {
	mutate := func(fn func(p *Plan)) *Plan {
		p := validPlan()
		fn(p)
		return p
	}

	cases := []struct {
		name    string
		plan    *Plan
		wantErr string
	}{
		{"valid", validPlan(), ""},
		{"no queries", mutate(func(p *Plan) { p.SearchQueries = nil }), "no search queries"},
		{"too many queries", mutate(func(p *Plan) {
			p.SearchQueries = make([]SearchQuery, 13)
			for i := range p.SearchQueries {
				p.SearchQueries[i] = SearchQuery{Query: "q", Source: SourceWeb, Priority: 3}
			}
		}), "13 search queries"},
		{"too many analyses", mutate(func(p *Plan) {
			p.RequiredAnalyses = make([]AnalysisSpec, 9)
			for i := range p.RequiredAnalyses {
				p.RequiredAnalyses[i] = AnalysisSpec{Type: "t", Importance: 3}
			}
		}), "9 analyses"},
		{"too many combined", mutate(func(p *Plan) {
			p.SearchQueries = make([]SearchQuery, 12)
			for i := range p.SearchQueries {
				p.SearchQueries[i] = SearchQuery{Query: "q", Source: SourceWeb, Priority: 3}
			}
			p.RequiredAnalyses = make([]AnalysisSpec, 8)
			for i := range p.RequiredAnalyses {
				p.RequiredAnalyses[i] = AnalysisSpec{Type: "t", Importance: 3}
			}
		}), "combined entries"},
		{"empty query", mutate(func(p *Plan) { p.SearchQueries[0].Query = "  " }), "is empty"},
		{"bad source", mutate(func(p *Plan) { p.SearchQueries[0].Source = "usenet" }), "unknown source"},
		{"priority low", mutate(func(p *Plan) { p.SearchQueries[0].Priority = 0 }), "out of range"},
		{"priority high", mutate(func(p *Plan) { p.SearchQueries[0].Priority = 6 }), "out of range"},
		{"analysis no type", mutate(func(p *Plan) { p.RequiredAnalyses[0].Type = "" }), "has no type"},
		{"importance out of range", mutate(func(p *Plan) { p.RequiredAnalyses[0].Importance = 11 }), "out of range"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid plan, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func stubGenerator(response any, err error) ObjectGenerator {
	return func(_ context.Context, _ string, _ string, _ float64, out any) error {
		if err != nil {
			return err
		}
		encoded, marshalErr := json.Marshal(response)
		if marshalErr != nil {
			return marshalErr
		}
		return json.Unmarshal(encoded, out)
	}
}

func TestGeneratePlan(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		plan, err := GeneratePlan(context.Background(), stubGenerator(validPlan(), nil), "solar power")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(plan.SearchQueries) != 2 {
			t.Fatalf("expected 2 queries, got %d", len(plan.SearchQueries))
		}
	})

	t.Run("generation failure is fatal", func(t *testing.T) {
		_, err := GeneratePlan(context.Background(), stubGenerator(nil, errors.New("provider down")), "solar power")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("shape failure is fatal", func(t *testing.T) {
		_, err := GeneratePlan(context.Background(), stubGenerator(&Plan{}, nil), "solar power")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}
