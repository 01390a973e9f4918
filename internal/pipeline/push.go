package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/atssync"
	"github.com/spigell/hiring-pipeline/internal/filtering"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
)

type PushRequest struct {
	// EvaluationID pushes a single evaluation. Empty pushes every selected one.
	EvaluationID    string `json:"evaluation_id,omitempty"`
	JobPostID       string `json:"job_post_id,omitempty"`
	MinimumFitScore int    `json:"minimum_fit_score,omitempty"`
	RetryFailed     bool   `json:"retry_failed,omitempty"`
	// DryRun selects without pushing.
	DryRun bool `json:"dry_run,omitempty"`
}

type PushSummary struct {
	Selected      int                `json:"selected"`
	Sent          int                `json:"sent"`
	Failed        int                `json:"failed"`
	AlreadySynced int                `json:"already_synced"`
	Steps         []filtering.Report `json:"steps,omitempty"`
	Results       []atssync.Result   `json:"results,omitempty"`
	Errors        []string           `json:"errors,omitempty"`
}

// PushOne pushes a single evaluation through the sync state machine.
func (p *Pipeline) PushOne(ctx context.Context, evaluationID string) (atssync.Result, error) {
	if p.sync == nil {
		return atssync.Result{}, records.Configuration("", "", "ats is not configured")
	}
	evaluationID = strings.TrimSpace(evaluationID)
	if evaluationID == "" {
		return atssync.Result{}, records.Validation(records.TableEvaluations, records.FieldEvaluationID, "must not be empty")
	}
	return p.sync.Push(ctx, evaluationID)
}

// Select returns the evaluations a bulk push would send.
func (p *Pipeline) Select(ctx context.Context, req PushRequest) (*filtering.Evaluations, []filtering.Report, error) {
	all, err := p.store.ListEvaluations(ctx, store.EvaluationFilter{})
	if err != nil {
		return nil, nil, err
	}

	cfg := &filtering.Config{
		MinimumFitScore: req.MinimumFitScore,
		RetryFailed:     req.RetryFailed,
		JobPostID:       strings.TrimSpace(req.JobPostID),
	}
	deps := filtering.Deps{Logger: p.logger, JobPosts: p.store}

	return filtering.Run(ctx, cfg, deps, filtering.Default(), &filtering.Evaluations{Items: all})
}

// PushAll selects pending evaluations and pushes them one by one. A failed
// push is counted and does not stop the run; transport errors from the store
// do.
func (p *Pipeline) PushAll(ctx context.Context, req PushRequest) (PushSummary, error) {
	var summary PushSummary
	if p.sync == nil && !req.DryRun {
		return summary, records.Configuration("", "", "ats is not configured")
	}

	selected, steps, err := p.Select(ctx, req)
	if err != nil {
		return summary, fmt.Errorf("select evaluations: %w", err)
	}
	summary.Selected = selected.Len()
	summary.Steps = steps

	if req.DryRun {
		for _, ev := range selected.Items {
			summary.Results = append(summary.Results, atssync.Result{Evaluation: ev})
		}
		return summary, nil
	}

	for _, ev := range selected.Items {
		res, err := p.sync.Push(ctx, ev.EvaluationID)
		switch {
		case err == nil:
			summary.Sent++
		case errors.Is(err, records.ErrAlreadySynced):
			summary.AlreadySynced++
		default:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("evaluation %s: %v", ev.EvaluationID, err))
		}
		summary.Results = append(summary.Results, res)
	}

	p.logger.Info("push finished",
		zap.Int("selected", summary.Selected),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("already_synced", summary.AlreadySynced),
	)
	return summary, nil
}
