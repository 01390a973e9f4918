package evaluation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/ai"
	"github.com/spigell/hiring-pipeline/internal/logger"
	"github.com/spigell/hiring-pipeline/internal/prompts"
	"github.com/spigell/hiring-pipeline/internal/records"
)

type recordReader interface {
	GetCandidate(ctx context.Context, candidateID string) (records.CandidateRaw, error)
	GetJobPost(ctx context.Context, jobPostID string) (records.JobPost, error)
}

// Request names what to evaluate. An empty PromptVersion means the job's
// default version.
type Request struct {
	CandidateID   string `json:"candidate_id"`
	JobPostID     string `json:"job_post_id"`
	PromptVersion string `json:"prompt_version,omitempty"`
}

type Evaluator struct {
	records  recordReader
	resolver *prompts.Resolver
	assessor ai.Assessor
	recorder *Recorder
	logger   *zap.Logger
}

func NewEvaluator(reader recordReader, resolver *prompts.Resolver, assessor ai.Assessor, recorder *Recorder, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{
		records:  reader,
		resolver: resolver,
		assessor: assessor,
		recorder: recorder,
		logger:   log,
	}
}

// Evaluate loads the candidate and job, resolves the prompt, asks the model
// and records the result. Missing candidates or jobs are referential errors:
// something upstream ran out of order.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (records.CandidateEvaluation, error) {
	req.CandidateID = strings.TrimSpace(req.CandidateID)
	req.JobPostID = strings.TrimSpace(req.JobPostID)
	if req.CandidateID == "" {
		return records.CandidateEvaluation{}, records.Validation(records.TableEvaluations, records.FieldCandidateID, "must not be empty")
	}
	if req.JobPostID == "" {
		return records.CandidateEvaluation{}, records.Validation(records.TableEvaluations, records.FieldJobPostID, "must not be empty")
	}

	candidate, err := e.records.GetCandidate(ctx, req.CandidateID)
	if err != nil {
		return records.CandidateEvaluation{}, referential(err, "candidate", req.CandidateID)
	}

	job, err := e.records.GetJobPost(ctx, req.JobPostID)
	if err != nil {
		return records.CandidateEvaluation{}, referential(err, "job post", req.JobPostID)
	}

	prompt, err := e.resolver.Resolve(ctx, req.JobPostID, req.PromptVersion)
	if err != nil {
		return records.CandidateEvaluation{}, err
	}

	message, err := prompts.Build(prompt.PromptContent, candidate, job)
	if err != nil {
		return records.CandidateEvaluation{}, fmt.Errorf("build prompt %s/%s: %w", job.JobPostID, prompt.PromptVersion, err)
	}

	log := logger.WithFields(e.logger,
		zap.String(records.FieldCandidateID, candidate.CandidateID),
		zap.String(records.FieldJobPostID, job.JobPostID),
		zap.String(records.FieldPromptVersion, prompt.PromptVersion),
	)
	log.Info("evaluating candidate", zap.String("model", e.assessor.Model()))

	assessment, err := e.assessor.Assess(ctx, message)
	if err != nil {
		return records.CandidateEvaluation{}, fmt.Errorf("assess candidate %s: %w", candidate.CandidateID, err)
	}

	ev, err := e.recorder.Record(ctx, candidate.CandidateID, job.JobPostID, prompt.PromptVersion, *assessment)
	if err != nil {
		return records.CandidateEvaluation{}, err
	}

	log.Info("candidate evaluated", logger.EvaluationFields(ev)...)
	return ev, nil
}

func referential(err error, what, id string) error {
	if records.Kind(err) == records.ErrNotFound {
		return records.Referential(records.TableEvaluations, "", "%s %q does not exist", what, id)
	}
	return err
}
