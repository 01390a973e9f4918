package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/ai"
	"github.com/spigell/hiring-pipeline/internal/evaluation"
	"github.com/spigell/hiring-pipeline/internal/pipeline"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

const statusAlreadySynced = "already_synced"

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type pushResponse struct {
	Status     string                      `json:"status"`
	Evaluation records.CandidateEvaluation `json:"evaluation"`
	RemoteID   string                      `json:"remote_id,omitempty"`
	Error      string                      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req pipeline.IngestRequest
	if !s.decode(w, r, &req) {
		return
	}

	summary, err := s.pipeline.Ingest(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluation.Request
	if !s.decode(w, r, &req) {
		return
	}

	ev, err := s.pipeline.Evaluate(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ev)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pipeline.PushRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.EvaluationID == "" {
		summary, err := s.pipeline.PushAll(r.Context(), req)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, summary)
		return
	}

	res, err := s.pipeline.PushOne(r.Context(), req.EvaluationID)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, pushResponse{Status: string(res.Evaluation.TeamtailorStatus), Evaluation: res.Evaluation, RemoteID: res.RemoteID})
	case errors.Is(err, records.ErrAlreadySynced):
		s.respondJSON(w, http.StatusOK, pushResponse{Status: statusAlreadySynced, Evaluation: res.Evaluation})
	case res.Evaluation.TeamtailorStatus == records.SyncFailed:
		s.respondJSON(w, statusFor(err), pushResponse{Status: string(records.SyncFailed), Evaluation: res.Evaluation, Error: err.Error()})
	default:
		s.respondError(w, err)
	}
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EvaluationFilter{
		CandidateID:      q.Get("candidate_id"),
		JobPostID:        q.Get("job_post_id"),
		PromptVersion:    q.Get("prompt_version"),
		Decision:         records.Decision(q.Get("decision")),
		TeamtailorStatus: records.SyncStatus(q.Get("teamtailor_status")),
	}

	evs, err := s.pipeline.Store().ListEvaluations(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if evs == nil {
		evs = []records.CandidateEvaluation{}
	}
	s.respondJSON(w, http.StatusOK, evs)
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	ev, err := s.pipeline.Store().GetEvaluation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ev)
}

// handleUpdateEvaluation applies recruiter edits. The body is a flat object of
// field names to values; LLM-authored fields are refused by the store.
func (s *Server) handleUpdateEvaluation(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !s.decode(w, r, &body) {
		return
	}

	fields := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
			fields[k] = ""
		default:
			fields[k] = fmt.Sprint(val)
		}
	}

	ev, err := s.pipeline.Store().UpdateEvaluationFields(r.Context(), r.PathValue("id"), fields)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ev)
}

// decode reads a JSON body into target. An empty body leaves target as is.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if _, ok := target.(*map[string]any); !ok {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Kind:  "validation",
		})
		return false
	}
	return true
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode json response", zap.Error(err))
	}
}

// respondError maps err to a status code and sends it.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error(), Kind: kindName(err)})
}

func statusFor(err error) int {
	switch records.Kind(err) {
	case records.ErrValidation:
		return http.StatusBadRequest
	case records.ErrNotFound:
		return http.StatusNotFound
	case records.ErrReferential, records.ErrImmutableField:
		return http.StatusUnprocessableEntity
	case records.ErrAlreadySynced:
		return http.StatusOK
	case records.ErrConfiguration:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, ai.ErrMalformedOutput):
		return http.StatusBadGateway
	case errors.Is(err, tables.ErrConstraint):
		return http.StatusConflict
	case tables.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func kindName(err error) string {
	if kind := records.Kind(err); kind != nil {
		switch kind {
		case records.ErrValidation:
			return "validation"
		case records.ErrReferential:
			return "referential"
		case records.ErrNotFound:
			return "not_found"
		case records.ErrImmutableField:
			return "immutable_field"
		case records.ErrAlreadySynced:
			return statusAlreadySynced
		case records.ErrConfiguration:
			return "configuration"
		}
	}

	switch {
	case errors.Is(err, ai.ErrMalformedOutput):
		return "malformed_model_output"
	case errors.Is(err, tables.ErrConstraint):
		return "constraint"
	case tables.IsRetryable(err):
		return "transport"
	default:
		return "internal"
	}
}
