package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/logger"
	"github.com/spigell/hiring-pipeline/internal/records"
)

// EvaluationFilter narrows ListEvaluations. Zero fields match everything.
type EvaluationFilter struct {
	CandidateID      string
	JobPostID        string
	PromptVersion    string
	Decision         records.Decision
	TeamtailorStatus records.SyncStatus
}

func (f EvaluationFilter) match(ev records.CandidateEvaluation) bool {
	switch {
	case f.CandidateID != "" && ev.CandidateID != f.CandidateID:
		return false
	case f.JobPostID != "" && ev.JobPostID != f.JobPostID:
		return false
	case f.PromptVersion != "" && ev.PromptVersion != f.PromptVersion:
		return false
	case f.Decision != "" && ev.Decision != f.Decision:
		return false
	case f.TeamtailorStatus != "" && ev.TeamtailorStatus != f.TeamtailorStatus:
		return false
	}
	return true
}

// InsertEvaluation appends ev after validating its fields and references.
// Evaluations are append-only per attempt: the same
// (candidate, job, prompt_version) triple may appear many times.
func (s *Store) InsertEvaluation(ctx context.Context, ev records.CandidateEvaluation) error {
	if err := validateEvaluation(&ev); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read(ctx, records.TableEvaluations)
	if err != nil {
		return err
	}
	if _, ok := findRow(rows, evaluationKey(ev.EvaluationID)); ok {
		return records.Validation(records.TableEvaluations, records.FieldEvaluationID, "evaluation %q already exists", ev.EvaluationID)
	}

	if err := s.checkEvaluationRefs(ctx, ev); err != nil {
		return err
	}

	if err := s.append(ctx, records.TableEvaluations, ev.EvaluationID, encodeEvaluation(ev)); err != nil {
		return err
	}

	s.logger.Info("evaluation stored", logger.EvaluationFields(ev)...)
	return nil
}

func validateEvaluation(ev *records.CandidateEvaluation) error {
	if !records.ValidFitScore(ev.FitScore) {
		return records.Validation(records.TableEvaluations, records.FieldFitScore,
			"%d is outside [%d,%d]", ev.FitScore, records.MinFitScore, records.MaxFitScore)
	}
	if !ev.FitLabel.Valid() {
		return records.Validation(records.TableEvaluations, records.FieldFitLabel, "unknown fit label %q", ev.FitLabel)
	}

	ev.EvaluationID = strings.TrimSpace(ev.EvaluationID)
	ev.CandidateID = strings.TrimSpace(ev.CandidateID)
	ev.JobPostID = strings.TrimSpace(ev.JobPostID)
	ev.PromptVersion = strings.TrimSpace(ev.PromptVersion)

	for _, f := range []struct{ name, value string }{
		{records.FieldEvaluationID, ev.EvaluationID},
		{records.FieldCandidateID, ev.CandidateID},
		{records.FieldJobPostID, ev.JobPostID},
		{records.FieldPromptVersion, ev.PromptVersion},
	} {
		if f.value == "" {
			return records.Validation(records.TableEvaluations, f.name, "must not be empty")
		}
	}

	if ev.EvaluatedAt.IsZero() {
		return records.Validation(records.TableEvaluations, records.FieldEvaluatedAt, "must be set")
	}
	if strings.TrimSpace(ev.Reasons) == "" {
		return records.Validation(records.TableEvaluations, records.FieldReasons, "must not be empty")
	}

	if ev.Decision == "" {
		ev.Decision = records.DecisionHold
	}
	if !ev.Decision.Valid() {
		return records.Validation(records.TableEvaluations, records.FieldDecision, "unknown decision %q", ev.Decision)
	}
	if ev.TeamtailorStatus == "" {
		ev.TeamtailorStatus = records.SyncNotSent
	}
	if !ev.TeamtailorStatus.Valid() {
		return records.Validation(records.TableEvaluations, records.FieldTeamtailorStatus, "unknown status %q", ev.TeamtailorStatus)
	}
	return nil
}

func (s *Store) checkEvaluationRefs(ctx context.Context, ev records.CandidateEvaluation) error {
	if _, err := s.GetCandidate(ctx, ev.CandidateID); err != nil {
		if records.Kind(err) == records.ErrNotFound {
			return records.Referential(records.TableEvaluations, ev.EvaluationID, "candidate %q does not exist", ev.CandidateID)
		}
		return err
	}

	if _, err := s.GetJobPost(ctx, ev.JobPostID); err != nil {
		if records.Kind(err) == records.ErrNotFound {
			return records.Referential(records.TableEvaluations, ev.EvaluationID, "job post %q does not exist", ev.JobPostID)
		}
		return err
	}

	return s.requirePrompt(ctx, ev.JobPostID, ev.PromptVersion)
}

func (s *Store) GetEvaluation(ctx context.Context, evaluationID string) (records.CandidateEvaluation, error) {
	rows, err := s.read(ctx, records.TableEvaluations)
	if err != nil {
		return records.CandidateEvaluation{}, err
	}

	row, ok := findRow(rows, evaluationKey(evaluationID))
	if !ok {
		return records.CandidateEvaluation{}, records.NotFound(records.TableEvaluations, evaluationID)
	}
	return decodeEvaluation(row)
}

// ListEvaluations returns evaluations matching f, oldest first.
func (s *Store) ListEvaluations(ctx context.Context, f EvaluationFilter) ([]records.CandidateEvaluation, error) {
	rows, err := s.read(ctx, records.TableEvaluations)
	if err != nil {
		return nil, err
	}

	var out []records.CandidateEvaluation
	for _, row := range rows {
		ev, err := decodeEvaluation(row)
		if err != nil {
			s.logger.Warn("skipping malformed evaluation row", zap.Error(err))
			continue
		}
		if f.match(ev) {
			out = append(out, ev)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EvaluatedAt.Before(out[j].EvaluatedAt)
	})
	return out, nil
}

// UpdateEvaluationDecision sets the recruiter decision.
func (s *Store) UpdateEvaluationDecision(ctx context.Context, evaluationID string, decision records.Decision) (records.CandidateEvaluation, error) {
	return s.UpdateEvaluationFields(ctx, evaluationID, map[string]string{
		records.FieldDecision: string(decision),
	})
}

// UpdateEvaluationSyncStatus records the outcome of a push attempt. Once
// sent, the status never moves again.
func (s *Store) UpdateEvaluationSyncStatus(ctx context.Context, evaluationID string, status records.SyncStatus) (records.CandidateEvaluation, error) {
	return s.UpdateEvaluationFields(ctx, evaluationID, map[string]string{
		records.FieldTeamtailorStatus: string(status),
	})
}

// UpdateEvaluationFields applies a partial update of the mutable evaluation
// fields. Any write-once field in fields fails the whole update with
// ErrImmutableField; untouched cells are written back exactly as read.
func (s *Store) UpdateEvaluationFields(ctx context.Context, evaluationID string, fields map[string]string) (records.CandidateEvaluation, error) {
	if len(fields) == 0 {
		return records.CandidateEvaluation{}, records.Validation(records.TableEvaluations, "", "no fields to update")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch {
		case records.IsWriteOnceField(name):
			return records.CandidateEvaluation{}, records.Immutable(records.TableEvaluations, evaluationID, name)
		case name != records.FieldDecision && name != records.FieldTeamtailorStatus:
			return records.CandidateEvaluation{}, records.Validation(records.TableEvaluations, name, "unknown field")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read(ctx, records.TableEvaluations)
	if err != nil {
		return records.CandidateEvaluation{}, err
	}

	key := evaluationKey(evaluationID)
	row, ok := findRow(rows, key)
	if !ok {
		return records.CandidateEvaluation{}, records.NotFound(records.TableEvaluations, evaluationID)
	}

	current, err := decodeEvaluation(row)
	if err != nil {
		return records.CandidateEvaluation{}, err
	}

	updated := row.Clone()
	if v, ok := fields[records.FieldDecision]; ok {
		d, err := records.ParseDecision(v)
		if err != nil {
			return records.CandidateEvaluation{}, withTable(err, evaluationID)
		}
		updated[records.FieldDecision] = string(d)
		current.Decision = d
	}

	if v, ok := fields[records.FieldTeamtailorStatus]; ok {
		next, err := records.ParseSyncStatus(v)
		if err != nil {
			return records.CandidateEvaluation{}, withTable(err, evaluationID)
		}
		if !current.TeamtailorStatus.CanTransitionTo(next) {
			return records.CandidateEvaluation{}, records.Validation(records.TableEvaluations, records.FieldTeamtailorStatus,
				"cannot move from %s to %s", current.TeamtailorStatus, next)
		}
		updated[records.FieldTeamtailorStatus] = string(next)
		current.TeamtailorStatus = next
	}

	if err := s.write(ctx, records.TableEvaluations, key, updated); err != nil {
		return records.CandidateEvaluation{}, err
	}

	s.logger.Info("evaluation updated", append(logger.EvaluationFields(current), zap.Strings("fields", names))...)
	return current, nil
}

func withTable(err error, key string) error {
	var e *records.Error
	if errors.As(err, &e) {
		e.Table = records.TableEvaluations
		e.Key = key
	}
	return err
}
