package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/ai"
	"github.com/spigell/hiring-pipeline/internal/prompts"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

type stubAssessor struct {
	out     ai.Assessment
	err     error
	prompts []string
}

func (s *stubAssessor) Assess(_ context.Context, prompt string) (*ai.Assessment, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	out := s.out
	return &out, nil
}

func (s *stubAssessor) Model() string { return "stub" }

type fixture struct {
	store     *store.Store
	assessor  *stubAssessor
	evaluator *Evaluator
	candidate records.CandidateRaw
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	s := store.New(tables.NewMemory(), log)

	c, _, err := s.UpsertCandidateRaw(ctx, records.CandidateRaw{
		Source:            records.SourceGetOnBoard,
		SourceCandidateID: "gob-1",
		FullName:          "Ada Lovelace",
		Email:             "ada@example.com",
		RawProfileURL:     "https://www.getonboard.com/profiles/gob-1",
	})
	require.NoError(t, err)

	_, _, err = s.UpsertJobPost(ctx, records.JobPost{JobPostID: "J1", JobPostName: "Backend Engineer", Active: true})
	require.NoError(t, err)
	for _, v := range []string{"v1", "v2"} {
		_, err = s.UpsertPrompt(ctx, records.Prompt{
			JobPostID:     "J1",
			PromptVersion: v,
			PromptContent: v + ": assess {{CANDIDATE_NAME}} for {{JOB_POST_NAME}}",
		})
		require.NoError(t, err)
	}
	_, err = s.SetDefaultPromptVersion(ctx, "J1", "v1")
	require.NoError(t, err)

	assessor := &stubAssessor{out: ai.Assessment{FitLabel: records.FitYes, FitScore: 4, Reasons: "Solid Go background"}}
	recorder := NewRecorder(s, log)
	n := 0
	recorder.newID = func() string {
		n++
		return fmt.Sprintf("eval-%d", n)
	}
	recorder.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 15, 500, time.UTC) }

	return fixture{
		store:     s,
		assessor:  assessor,
		evaluator: NewEvaluator(s, prompts.NewResolver(s), assessor, recorder, log),
		candidate: c,
	}
}

func TestEvaluateUsesDefaultPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev, err := f.evaluator.Evaluate(ctx, Request{CandidateID: f.candidate.CandidateID, JobPostID: "J1"})
	require.NoError(t, err)

	assert.Equal(t, "v1", ev.PromptVersion)
	assert.Equal(t, records.FitYes, ev.FitLabel)
	assert.Equal(t, 4, ev.FitScore)
	assert.Equal(t, records.DecisionHold, ev.Decision)
	assert.Equal(t, records.SyncNotSent, ev.TeamtailorStatus)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC), ev.EvaluatedAt)

	require.Len(t, f.assessor.prompts, 1)
	assert.Equal(t, "v1: assess Ada Lovelace for Backend Engineer", strings.SplitN(f.assessor.prompts[0], "\n", 2)[0])

	stored, err := f.store.GetEvaluation(ctx, ev.EvaluationID)
	require.NoError(t, err)
	assert.Equal(t, ev, stored)
}

func TestEvaluatePinnedVersion(t *testing.T) {
	f := newFixture(t)

	ev, err := f.evaluator.Evaluate(context.Background(), Request{CandidateID: f.candidate.CandidateID, JobPostID: "J1", PromptVersion: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "v2", ev.PromptVersion)
	assert.True(t, strings.HasPrefix(f.assessor.prompts[0], "v2:"))

	_, err = f.evaluator.Evaluate(context.Background(), Request{CandidateID: f.candidate.CandidateID, JobPostID: "J1", PromptVersion: "v9"})
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestReevaluationAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{CandidateID: f.candidate.CandidateID, JobPostID: "J1"}

	first, err := f.evaluator.Evaluate(ctx, req)
	require.NoError(t, err)

	f.assessor.out = ai.Assessment{FitLabel: records.FitMaybe, FitScore: 3, Reasons: "Second opinion"}
	second, err := f.evaluator.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.EvaluationID, second.EvaluationID)

	all, err := f.store.ListEvaluations(ctx, store.EvaluationFilter{CandidateID: f.candidate.CandidateID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, records.FitYes, all[0].FitLabel)
	assert.Equal(t, records.FitMaybe, all[1].FitLabel)
}

func TestEvaluateMissingRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.evaluator.Evaluate(ctx, Request{CandidateID: "nobody", JobPostID: "J1"})
	assert.ErrorIs(t, err, records.ErrReferential)

	_, err = f.evaluator.Evaluate(ctx, Request{CandidateID: f.candidate.CandidateID, JobPostID: "J404"})
	assert.ErrorIs(t, err, records.ErrReferential)

	_, err = f.evaluator.Evaluate(ctx, Request{JobPostID: "J1"})
	assert.ErrorIs(t, err, records.ErrValidation)

	assert.Empty(t, f.assessor.prompts, "the model must not be called")
}

func TestEvaluateWithoutDefaultPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.store.UpsertJobPost(ctx, records.JobPost{JobPostID: "J2", JobPostName: "Data", Active: true})
	require.NoError(t, err)

	_, err = f.evaluator.Evaluate(ctx, Request{CandidateID: f.candidate.CandidateID, JobPostID: "J2"})
	assert.ErrorIs(t, err, records.ErrConfiguration)
}

func TestEvaluateModelFailuresPersistNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{CandidateID: f.candidate.CandidateID, JobPostID: "J1"}

	f.assessor.err = ai.ErrMalformedOutput
	_, err := f.evaluator.Evaluate(ctx, req)
	assert.ErrorIs(t, err, ai.ErrMalformedOutput)

	f.assessor.err = errors.New("upstream unavailable")
	_, err = f.evaluator.Evaluate(ctx, req)
	require.Error(t, err)

	f.assessor.err = nil
	f.assessor.out = ai.Assessment{FitLabel: records.FitYes, FitScore: 9, Reasons: "x"}
	_, err = f.evaluator.Evaluate(ctx, req)
	assert.ErrorIs(t, err, records.ErrValidation)

	all, err := f.store.ListEvaluations(ctx, store.EvaluationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecorderDefaults(t *testing.T) {
	f := newFixture(t)

	r := NewRecorder(f.store, nil)
	ev, err := r.Record(context.Background(), f.candidate.CandidateID, "J1", "v1", ai.Assessment{
		FitLabel: records.FitStrongYes,
		FitScore: 5,
		Reasons:  "Exceptional",
		RedFlags: "none",
	})
	require.NoError(t, err)
	assert.Len(t, ev.EvaluationID, 36)
	assert.Equal(t, records.DecisionHold, ev.Decision)
	assert.Equal(t, records.SyncNotSent, ev.TeamtailorStatus)
}
