// Package atssync moves evaluations through the ATS sync states:
//
//	not_sent --push ok--> sent
//	not_sent --push err--> failed --push ok--> sent
//	                       failed --push err--> failed
//
// sent is terminal. Only evaluations with decision push are sent.
package atssync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/logger"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/teamtailor"
)

// ATS receives candidates. It returns the id the ATS assigned.
type ATS interface {
	Push(ctx context.Context, s teamtailor.Submission) (string, error)
}

type evaluationStore interface {
	GetEvaluation(ctx context.Context, evaluationID string) (records.CandidateEvaluation, error)
	GetCandidate(ctx context.Context, candidateID string) (records.CandidateRaw, error)
	GetJobPost(ctx context.Context, jobPostID string) (records.JobPost, error)
	UpdateEvaluationSyncStatus(ctx context.Context, evaluationID string, status records.SyncStatus) (records.CandidateEvaluation, error)
}

// Result describes one push attempt.
type Result struct {
	Evaluation records.CandidateEvaluation `json:"evaluation"`
	RemoteID   string                      `json:"remote_id,omitempty"`
}

type Machine struct {
	store  evaluationStore
	ats    ATS
	logger *zap.Logger

	// Serializes pushes issued by this process.
	mu sync.Mutex
}

func New(store evaluationStore, ats ATS, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{store: store, ats: ats, logger: log}
}

// Push sends the evaluation to the ATS and records the outcome. An already
// sent evaluation yields ErrAlreadySynced and is left untouched. A failed
// attempt is recorded as failed and the ATS error is returned; the caller may
// push again later.
func (m *Machine) Push(ctx context.Context, evaluationID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, err := m.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Result{}, err
	}

	if ev.TeamtailorStatus == records.SyncSent {
		return Result{Evaluation: ev}, records.AlreadySynced(ev.EvaluationID)
	}
	if ev.Decision != records.DecisionPush {
		return Result{Evaluation: ev}, records.Validation(records.TableEvaluations, records.FieldDecision,
			"evaluation %s has decision %q, only %q is pushed", ev.EvaluationID, ev.Decision, records.DecisionPush)
	}
	if !ev.TeamtailorStatus.Pushable() {
		return Result{Evaluation: ev}, records.Validation(records.TableEvaluations, records.FieldTeamtailorStatus,
			"status %q cannot be pushed", ev.TeamtailorStatus)
	}

	candidate, err := m.store.GetCandidate(ctx, ev.CandidateID)
	if err != nil {
		return Result{Evaluation: ev}, fmt.Errorf("load candidate for %s: %w", ev.EvaluationID, err)
	}
	job, err := m.store.GetJobPost(ctx, ev.JobPostID)
	if err != nil {
		return Result{Evaluation: ev}, fmt.Errorf("load job post for %s: %w", ev.EvaluationID, err)
	}

	log := logger.WithFields(m.logger, logger.EvaluationFields(ev)...)

	remoteID, pushErr := m.ats.Push(ctx, teamtailor.Submission{Candidate: candidate, Evaluation: ev, JobPost: job})
	if pushErr != nil {
		log.Warn("ats push failed", zap.Error(pushErr))

		updated, err := m.store.UpdateEvaluationSyncStatus(ctx, ev.EvaluationID, records.SyncFailed)
		if err != nil {
			return Result{Evaluation: ev}, errors.Join(fmt.Errorf("push %s: %w", ev.EvaluationID, pushErr), err)
		}
		return Result{Evaluation: updated}, fmt.Errorf("push %s: %w", ev.EvaluationID, pushErr)
	}

	updated, err := m.store.UpdateEvaluationSyncStatus(ctx, ev.EvaluationID, records.SyncSent)
	if err != nil {
		// The ATS has the candidate; the next push finds it again by email.
		log.Error("ats push succeeded but status was not recorded", zap.String("remote_id", remoteID), zap.Error(err))
		return Result{Evaluation: ev, RemoteID: remoteID}, err
	}

	log.Info("evaluation synced", zap.String("remote_id", remoteID))
	return Result{Evaluation: updated, RemoteID: remoteID}, nil
}
