package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fathomhq/fathom/control-plane/internal/events"
	"github.com/fathomhq/fathom/control-plane/internal/metrics"
	"github.com/fathomhq/fathom/control-plane/internal/research"
	"github.com/fathomhq/fathom/control-plane/internal/store"
)

type createRunRequest struct {
	Topic string `json:"topic"`
	Depth string `json:"depth"`
}

type runSummaryResponse struct {
	ID               string `json:"id"`
	Topic            string `json:"topic"`
	Depth            string `json:"depth"`
	Status           string `json:"status"`
	CompletionReason string `json:"completion_reason,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type listRunsResponse struct {
	Runs []runSummaryResponse `json:"runs"`
}

func toRunSummary(run store.Run) runSummaryResponse {
	return runSummaryResponse{
		ID:               run.ID,
		Topic:            run.Topic,
		Depth:            run.Depth,
		Status:           run.Status,
		CompletionReason: run.CompletionReason,
		CreatedAt:        run.CreatedAt,
		UpdatedAt:        run.UpdatedAt,
	}
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	req := createRunRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		http.Error(w, "topic required", http.StatusBadRequest)
		return
	}
	depthInput := req.Depth
	if strings.TrimSpace(depthInput) == "" {
		depthInput = s.cfg.DefaultDepth
	}
	depth, err := research.ParseDepth(depthInput)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run := store.Run{
		ID:        id,
		Topic:     topic,
		Depth:     string(depth),
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.workflows != nil {
		if err := s.workflows.StartResearch(r.Context(), id, topic, depth); err != nil {
			_ = s.store.UpdateRunStatus(r.Context(), id, "failed", "workflow_start_failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}
	metrics.RunsStarted.Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"run_id": id,
		"topic":  topic,
		"depth":  string(depth),
		"status": "pending",
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := listRunsResponse{Runs: make([]runSummaryResponse, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunSummary(run))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toRunSummary(*run))
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}
	if s.workflows != nil {
		_ = s.workflows.CancelRun(r.Context(), runID)
	}
	seq, err := s.store.NextSeq(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	event := store.RunEvent{
		RunID:     runID,
		Seq:       seq,
		Type:      events.TypeRunCancelled,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    "control_plane",
		Payload:   map[string]any{"reason": "user_requested"},
	}
	_ = s.store.AppendEvent(r.Context(), event)
	s.broker.Publish(toEvent(event))
	metrics.RunsCompleted.WithLabelValues("cancelled").Inc()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}
	if s.workflows != nil {
		_ = s.workflows.CancelRun(r.Context(), runID)
	}
	if err := s.store.DeleteRun(r.Context(), runID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type annotationResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Kind      string         `json:"kind,omitempty"`
	Status    string         `json:"status"`
	Overwrite bool           `json:"overwrite"`
	Seq       int64          `json:"seq"`
	UpdatedAt string         `json:"updated_at"`
	Data      map[string]any `json:"data"`
}

type listAnnotationsResponse struct {
	Annotations []annotationResponse `json:"annotations"`
}

func (s *Server) listAnnotations(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}
	annotations, err := s.store.ListAnnotations(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := listAnnotationsResponse{Annotations: make([]annotationResponse, 0, len(annotations))}
	for _, annotation := range annotations {
		response.Annotations = append(response.Annotations, annotationResponse{
			ID:        annotation.ID,
			Type:      annotation.Type,
			Kind:      annotation.Kind,
			Status:    annotation.Status,
			Overwrite: annotation.Overwrite,
			Seq:       annotation.Seq,
			UpdatedAt: annotation.UpdatedAt,
			Data:      annotation.Data,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}
	result, err := s.store.GetResult(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if result == nil {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result.Output)
}
