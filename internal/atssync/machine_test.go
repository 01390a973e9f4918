package atssync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
	"github.com/spigell/hiring-pipeline/internal/teamtailor"
)

type fakeATS struct {
	errs  []error
	sent  []teamtailor.Submission
	calls int
}

func (f *fakeATS) Push(_ context.Context, s teamtailor.Submission) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, s)
	return "tt-1", nil
}

func setup(t *testing.T, decision records.Decision) (*Machine, *store.Store, *fakeATS, string) {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	s := store.New(tables.NewMemory(), log)

	c, _, err := s.UpsertCandidateRaw(ctx, records.CandidateRaw{
		Source:            records.SourceGetOnBoard,
		SourceCandidateID: "42",
		FullName:          "Ada",
		Email:             "a@b.com",
		RawProfileURL:     "https://x/42",
	})
	require.NoError(t, err)
	_, _, err = s.UpsertJobPost(ctx, records.JobPost{JobPostID: "J1", JobPostName: "Backend", Active: true})
	require.NoError(t, err)
	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v1", PromptContent: "x"})
	require.NoError(t, err)

	require.NoError(t, s.InsertEvaluation(ctx, records.CandidateEvaluation{
		EvaluationID:  "e1",
		CandidateID:   c.CandidateID,
		JobPostID:     "J1",
		PromptVersion: "v1",
		EvaluatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		FitLabel:      records.FitYes,
		FitScore:      4,
		Reasons:       "fits",
	}))
	if decision != records.DecisionHold {
		_, err = s.UpdateEvaluationDecision(ctx, "e1", decision)
		require.NoError(t, err)
	}

	ats := &fakeATS{}
	return New(s, ats, log), s, ats, c.CandidateID
}

func TestPushSendsAndMarksSent(t *testing.T) {
	m, s, ats, candidateID := setup(t, records.DecisionPush)
	ctx := context.Background()

	res, err := m.Push(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.SyncSent, res.Evaluation.TeamtailorStatus)
	assert.Equal(t, "tt-1", res.RemoteID)

	require.Len(t, ats.sent, 1)
	assert.Equal(t, candidateID, ats.sent[0].Candidate.CandidateID)
	assert.Equal(t, "Backend", ats.sent[0].JobPost.JobPostName)

	stored, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.SyncSent, stored.TeamtailorStatus)
}

func TestPushSentIsAlreadySynced(t *testing.T) {
	m, s, ats, _ := setup(t, records.DecisionPush)
	ctx := context.Background()

	_, err := m.Push(ctx, "e1")
	require.NoError(t, err)

	res, err := m.Push(ctx, "e1")
	assert.ErrorIs(t, err, records.ErrAlreadySynced)
	assert.Equal(t, records.SyncSent, res.Evaluation.TeamtailorStatus)
	assert.Equal(t, 1, ats.calls, "no re-send")

	stored, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.SyncSent, stored.TeamtailorStatus)
}

func TestPushFailureThenRetry(t *testing.T) {
	m, s, ats, _ := setup(t, records.DecisionPush)
	ctx := context.Background()
	boom := errors.New("ats down")
	ats.errs = []error{boom}

	res, err := m.Push(ctx, "e1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, records.SyncFailed, res.Evaluation.TeamtailorStatus)

	stored, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.SyncFailed, stored.TeamtailorStatus)

	res, err = m.Push(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.SyncSent, res.Evaluation.TeamtailorStatus)
	assert.Equal(t, 2, ats.calls)
}

func TestPushRequiresPushDecision(t *testing.T) {
	for _, d := range []records.Decision{records.DecisionHold, records.DecisionReject} {
		t.Run(string(d), func(t *testing.T) {
			m, s, ats, _ := setup(t, d)

			_, err := m.Push(context.Background(), "e1")
			assert.ErrorIs(t, err, records.ErrValidation)
			assert.Zero(t, ats.calls)

			stored, err := s.GetEvaluation(context.Background(), "e1")
			require.NoError(t, err)
			assert.Equal(t, records.SyncNotSent, stored.TeamtailorStatus)
		})
	}
}

func TestPushUnknownEvaluation(t *testing.T) {
	m, _, _, _ := setup(t, records.DecisionPush)

	_, err := m.Push(context.Background(), "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)
}
