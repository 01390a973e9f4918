package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/evaluation"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
)

type ReplayRequest struct {
	JobPostID     string
	PromptVersion string
	// CandidateIDs limits the replay. Empty means every candidate previously
	// evaluated for the job post.
	CandidateIDs []string
	// MissingOnly skips candidates that already have an evaluation under the
	// resolved prompt version.
	MissingOnly bool
}

type ReplaySummary struct {
	PromptVersion string   `json:"prompt_version"`
	Candidates    int      `json:"candidates"`
	Skipped       int      `json:"skipped"`
	Evaluated     int      `json:"evaluated"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors,omitempty"`
}

// ReplayPlan resolves the prompt version and the candidates a replay would
// evaluate.
func (p *Pipeline) ReplayPlan(ctx context.Context, req ReplayRequest) (string, []string, int, error) {
	req.JobPostID = strings.TrimSpace(req.JobPostID)
	if req.JobPostID == "" {
		return "", nil, 0, records.Validation(records.TableEvaluations, records.FieldJobPostID, "must not be empty")
	}

	prompt, err := p.resolver.Resolve(ctx, req.JobPostID, req.PromptVersion)
	if err != nil {
		return "", nil, 0, err
	}

	evaluations, err := p.store.ListEvaluations(ctx, store.EvaluationFilter{JobPostID: req.JobPostID})
	if err != nil {
		return "", nil, 0, err
	}

	candidates := req.CandidateIDs
	if len(candidates) == 0 {
		seen := map[string]bool{}
		for _, ev := range evaluations {
			if !seen[ev.CandidateID] {
				seen[ev.CandidateID] = true
				candidates = append(candidates, ev.CandidateID)
			}
		}
	}

	if !req.MissingOnly {
		return prompt.PromptVersion, candidates, 0, nil
	}

	done := map[string]bool{}
	for _, ev := range evaluations {
		if ev.PromptVersion == prompt.PromptVersion {
			done[ev.CandidateID] = true
		}
	}

	var todo []string
	for _, id := range candidates {
		if !done[id] {
			todo = append(todo, id)
		}
	}
	return prompt.PromptVersion, todo, len(candidates) - len(todo), nil
}

// Replay re-evaluates candidates for a job post. Each run appends new
// evaluations; earlier ones are kept.
func (p *Pipeline) Replay(ctx context.Context, req ReplayRequest) (ReplaySummary, error) {
	if p.evaluator == nil {
		return ReplaySummary{}, records.Configuration("", "", "language model is not configured")
	}

	version, candidates, skipped, err := p.ReplayPlan(ctx, req)
	if err != nil {
		return ReplaySummary{}, err
	}

	summary := ReplaySummary{PromptVersion: version, Candidates: len(candidates) + skipped, Skipped: skipped}
	for _, id := range candidates {
		_, err := p.evaluator.Evaluate(ctx, evaluation.Request{
			CandidateID:   id,
			JobPostID:     strings.TrimSpace(req.JobPostID),
			PromptVersion: version,
		})
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("candidate %s: %v", id, err))
			continue
		}
		summary.Evaluated++
	}

	p.logger.Info("replay finished",
		zap.String(records.FieldPromptVersion, version),
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}
