package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/evaluation"
	"github.com/spigell/hiring-pipeline/internal/records"
)

type IngestRequest struct {
	JobPostID string `json:"job_post_id"`
	// Evaluate runs the model on every ingested candidate.
	Evaluate      bool   `json:"evaluate,omitempty"`
	PromptVersion string `json:"prompt_version,omitempty"`
}

type IngestSummary struct {
	JobPostID        string   `json:"job_post_id"`
	Fetched          int      `json:"fetched"`
	Created          int      `json:"created"`
	Updated          int      `json:"updated"`
	Skipped          int      `json:"skipped"`
	Evaluated        int      `json:"evaluated"`
	EvaluationFailed int      `json:"evaluation_failed"`
	Errors           []string `json:"errors,omitempty"`
}

// Ingest fetches a job and its applications from the source, upserts them
// and optionally evaluates every candidate. Invalid applications are skipped
// and reported; transport failures abort the run.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (IngestSummary, error) {
	req.JobPostID = strings.TrimSpace(req.JobPostID)
	summary := IngestSummary{JobPostID: req.JobPostID}

	if req.JobPostID == "" {
		return summary, records.Validation(records.TableJobPosts, "job_post_id", "must not be empty")
	}
	if p.source == nil {
		return summary, records.Configuration("", "", "source platform is not configured")
	}
	if req.Evaluate && p.evaluator == nil {
		return summary, records.Configuration("", "", "language model is not configured")
	}

	job, err := p.source.GetJob(ctx, req.JobPostID)
	if err != nil {
		return summary, fmt.Errorf("fetch job %s: %w", req.JobPostID, err)
	}
	post := job.JobPost()
	post.JobPostID = req.JobPostID
	if _, _, err := p.store.UpsertJobPost(ctx, post); err != nil {
		return summary, err
	}

	if req.Evaluate {
		// Fail before touching candidates when no prompt can be resolved.
		if _, err := p.resolver.Resolve(ctx, req.JobPostID, req.PromptVersion); err != nil {
			return summary, err
		}
	}

	applications, err := p.source.ListApplications(ctx, req.JobPostID)
	if err != nil {
		return summary, fmt.Errorf("fetch applications for %s: %w", req.JobPostID, err)
	}
	summary.Fetched = len(applications)

	var ingested []records.CandidateRaw
	for _, app := range applications {
		c, created, err := p.store.UpsertCandidateRaw(ctx, app.Candidate())
		if err != nil {
			if errors.Is(err, records.ErrValidation) {
				summary.Skipped++
				summary.Errors = append(summary.Errors, fmt.Sprintf("application %s: %v", app.ID, err))
				p.logger.Warn("skipping application", zap.String("application_id", app.ID), zap.Error(err))
				continue
			}
			return summary, err
		}

		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
		ingested = append(ingested, c)
	}

	p.logger.Info("candidates ingested",
		zap.String(records.FieldJobPostID, req.JobPostID),
		zap.Int("fetched", summary.Fetched),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
	)

	if !req.Evaluate {
		return summary, nil
	}

	for _, c := range ingested {
		_, err := p.evaluator.Evaluate(ctx, evaluation.Request{
			CandidateID:   c.CandidateID,
			JobPostID:     req.JobPostID,
			PromptVersion: req.PromptVersion,
		})
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.EvaluationFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("candidate %s: %v", c.CandidateID, err))
			continue
		}
		summary.Evaluated++
	}

	return summary, nil
}
