// Package evaluation creates evaluation records: the Recorder is the only
// path that writes model output, the Evaluator drives a full model run.
package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/ai"
	"github.com/spigell/hiring-pipeline/internal/records"
)

type inserter interface {
	InsertEvaluation(ctx context.Context, ev records.CandidateEvaluation) error
}

// Recorder stamps and stores evaluations. It has no update path for the
// model-authored fields.
type Recorder struct {
	store  inserter
	logger *zap.Logger

	newID func() string
	now   func() time.Time
}

func NewRecorder(store inserter, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:  store,
		logger: log,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record stores one evaluation attempt with a fresh id, decision hold and
// status not_sent.
func (r *Recorder) Record(ctx context.Context, candidateID, jobPostID, promptVersion string, out ai.Assessment) (records.CandidateEvaluation, error) {
	ev := records.CandidateEvaluation{
		EvaluationID:     r.newID(),
		CandidateID:      candidateID,
		JobPostID:        jobPostID,
		PromptVersion:    promptVersion,
		EvaluatedAt:      r.now().Truncate(time.Second),
		FitLabel:         out.FitLabel,
		FitScore:         out.FitScore,
		Reasons:          out.Reasons,
		RedFlags:         out.RedFlags,
		Decision:         records.DecisionHold,
		TeamtailorStatus: records.SyncNotSent,
	}

	if err := r.store.InsertEvaluation(ctx, ev); err != nil {
		return records.CandidateEvaluation{}, err
	}
	return ev, nil
}
