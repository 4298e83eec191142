package research

import "fmt"

type StepKind string

const (
	StepSearch      StepKind = "search"
	StepAnalysis    StepKind = "analysis"
	StepGapSearch   StepKind = "gap-search"
	StepGapAnalysis StepKind = "gap-analysis"
	StepSynthesis   StepKind = "synthesis"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// Step is one planned unit of work with a stable identifier. Search steps
// carry the originating query; analysis steps carry the analysis spec.
type Step struct {
	ID       string
	Kind     StepKind
	Source   SourceType
	Query    SearchQuery
	Analysis AnalysisSpec
	Status   StepStatus
}

// Registry is the run's only step bookkeeping. Progress totals are derived:
// TotalSteps is the registry size and CompletedSteps the number of done
// entries, so adding gap-driven steps mid-run grows the denominator without
// any manual arithmetic. The registry is mutated only by the run's single
// thread of control and needs no locking.
type Registry struct {
	steps        []Step
	index        map[string]int
	queryCounter int
}

func NewRegistry() *Registry {
	return &Registry{index: map[string]int{}}
}

// AddPlan expands the plan into steps. A query with source "all" fans out into
// one step per concrete source; the siblings share the origin index. Returns
// the search steps and analysis steps in execution order.
func (r *Registry) AddPlan(plan *Plan) (searches []Step, analyses []Step) {
	for _, query := range plan.SearchQueries {
		searches = append(searches, r.addQuery(StepSearch, query)...)
	}
	for i, spec := range plan.RequiredAnalyses {
		step := Step{
			ID:       fmt.Sprintf("analysis-%d", i),
			Kind:     StepAnalysis,
			Analysis: spec,
			Status:   StepPending,
		}
		r.add(step)
		analyses = append(analyses, step)
	}
	return searches, analyses
}

// AddGapQueries registers a second disjoint batch of search steps. Origin
// indices continue from the same counter as the first batch so identifiers
// never collide.
func (r *Registry) AddGapQueries(queries []SearchQuery) []Step {
	var steps []Step
	for _, query := range queries {
		steps = append(steps, r.addQuery(StepGapSearch, query)...)
	}
	return steps
}

// AddConceptual registers a non-search pipeline step (gap analysis or
// synthesis) so it counts toward the progress denominator.
func (r *Registry) AddConceptual(kind StepKind, id string) Step {
	step := Step{ID: id, Kind: kind, Status: StepPending}
	r.add(step)
	return step
}

func (r *Registry) addQuery(kind StepKind, query SearchQuery) []Step {
	prefix := "search"
	if kind == StepGapSearch {
		prefix = "gap-search"
	}
	origin := r.queryCounter
	r.queryCounter++

	sources := []SourceType{query.Source}
	if query.Source == SourceAll {
		sources = ConcreteSources
	}
	steps := make([]Step, 0, len(sources))
	for _, source := range sources {
		resolved := query
		resolved.Source = source
		step := Step{
			ID:     fmt.Sprintf("%s-%s-%d", prefix, source, origin),
			Kind:   kind,
			Source: source,
			Query:  resolved,
			Status: StepPending,
		}
		r.add(step)
		steps = append(steps, step)
	}
	return steps
}

func (r *Registry) add(step Step) {
	r.index[step.ID] = len(r.steps)
	r.steps = append(r.steps, step)
}

func (r *Registry) setStatus(id string, status StepStatus) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.steps[i].Status = status
	return true
}

func (r *Registry) MarkRunning(id string) bool { return r.setStatus(id, StepRunning) }
func (r *Registry) MarkDone(id string) bool    { return r.setStatus(id, StepDone) }
func (r *Registry) MarkFailed(id string) bool  { return r.setStatus(id, StepFailed) }

func (r *Registry) TotalSteps() int {
	return len(r.steps)
}

func (r *Registry) CompletedSteps() int {
	count := 0
	for _, step := range r.steps {
		if step.Status == StepDone {
			count++
		}
	}
	return count
}

// Steps returns a copy of the registry in insertion order.
func (r *Registry) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}
