package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *tables.Memory) {
	t.Helper()

	mem := tables.NewMemory()
	s := New(mem, zaptest.NewLogger(t))

	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	s.now = func() time.Time { return fixedNow }
	return s, mem
}

func candidate(sourceID, name string) records.CandidateRaw {
	return records.CandidateRaw{
		Source:            records.SourceGetOnBoard,
		SourceCandidateID: sourceID,
		FullName:          name,
		Email:             "a@b.com",
		RawProfileURL:     "https://x/" + sourceID,
	}
}

// seeded returns a store holding candidate C1, job J1 and prompt v1.
func seeded(t *testing.T) (*Store, *tables.Memory, records.CandidateRaw) {
	t.Helper()
	ctx := context.Background()
	s, mem := newTestStore(t)

	c, _, err := s.UpsertCandidateRaw(ctx, candidate("42", "Ada"))
	require.NoError(t, err)

	_, _, err = s.UpsertJobPost(ctx, records.JobPost{JobPostID: "J1", JobPostName: "Backend", Active: true})
	require.NoError(t, err)

	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v1", PromptContent: "Evaluate {{CANDIDATE_JSON}}"})
	require.NoError(t, err)

	return s, mem, c
}

func evaluation(candidateID string) records.CandidateEvaluation {
	return records.CandidateEvaluation{
		EvaluationID:  "e1",
		CandidateID:   candidateID,
		JobPostID:     "J1",
		PromptVersion: "v1",
		EvaluatedAt:   fixedNow,
		FitLabel:      records.FitYes,
		FitScore:      4,
		Reasons:       "solid Go background",
	}
}

func TestUpsertCandidateRawUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	first, created, err := s.UpsertCandidateRaw(ctx, candidate("42", "Ada"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "id-1", first.CandidateID)
	assert.Equal(t, fixedNow, first.CreatedAt)

	second, created, err := s.UpsertCandidateRaw(ctx, candidate("42", "Ada Lovelace"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.CandidateID, second.CandidateID)

	assert.Equal(t, 1, mem.Len(records.TableCandidates))

	got, err := s.GetCandidate(ctx, first.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.Equal(t, fixedNow, got.CreatedAt)
}

func TestUpsertCandidateRawValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*records.CandidateRaw)
		field  string
	}{
		{name: "missing email", mutate: func(c *records.CandidateRaw) { c.Email = "  " }, field: "email"},
		{name: "missing profile url", mutate: func(c *records.CandidateRaw) { c.RawProfileURL = "" }, field: "raw_profile_url"},
		{name: "unknown source", mutate: func(c *records.CandidateRaw) { c.Source = "linkedin" }, field: "source"},
		{name: "missing source id", mutate: func(c *records.CandidateRaw) { c.SourceCandidateID = "" }, field: "source_candidate_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem := newTestStore(t)
			c := candidate("42", "Ada")
			tt.mutate(&c)

			_, _, err := s.UpsertCandidateRaw(ctx, c)
			require.ErrorIs(t, err, records.ErrValidation)

			var rerr *records.Error
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.field, rerr.Field)
			assert.Zero(t, mem.Len(records.TableCandidates))
		})
	}
}

func TestGetCandidateNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetCandidate(context.Background(), "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestInsertEvaluationRejectsOutOfRangeScore(t *testing.T) {
	ctx := context.Background()

	for _, score := range []int{-1, 0, 6, 100} {
		t.Run(fmt.Sprint(score), func(t *testing.T) {
			s, mem, c := seeded(t)
			ev := evaluation(c.CandidateID)
			ev.FitScore = score

			err := s.InsertEvaluation(ctx, ev)
			require.ErrorIs(t, err, records.ErrValidation)
			assert.Zero(t, mem.Len(records.TableEvaluations))
		})
	}
}

func TestInsertEvaluationReferences(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*records.CandidateEvaluation)
	}{
		{name: "unknown candidate", mutate: func(ev *records.CandidateEvaluation) { ev.CandidateID = "ghost" }},
		{name: "unknown job post", mutate: func(ev *records.CandidateEvaluation) { ev.JobPostID = "J404" }},
		{name: "unknown prompt version", mutate: func(ev *records.CandidateEvaluation) { ev.PromptVersion = "v9" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem, c := seeded(t)
			ev := evaluation(c.CandidateID)
			tt.mutate(&ev)

			err := s.InsertEvaluation(ctx, ev)
			require.ErrorIs(t, err, records.ErrReferential)
			assert.Zero(t, mem.Len(records.TableEvaluations))
		})
	}
}

func TestInsertEvaluationAppendsPerAttempt(t *testing.T) {
	ctx := context.Background()
	s, mem, c := seeded(t)

	first := evaluation(c.CandidateID)
	require.NoError(t, s.InsertEvaluation(ctx, first))

	second := evaluation(c.CandidateID)
	second.EvaluationID = "e2"
	second.FitScore = 2
	second.FitLabel = records.FitMaybe
	require.NoError(t, s.InsertEvaluation(ctx, second))

	assert.Equal(t, 2, mem.Len(records.TableEvaluations))

	err := s.InsertEvaluation(ctx, first)
	assert.ErrorIs(t, err, records.ErrValidation, "duplicate evaluation_id")

	got, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.DecisionHold, got.Decision)
	assert.Equal(t, records.SyncNotSent, got.TeamtailorStatus)
}

func TestEvaluationWriteOnceFields(t *testing.T) {
	ctx := context.Background()
	s, _, c := seeded(t)
	require.NoError(t, s.InsertEvaluation(ctx, evaluation(c.CandidateID)))

	for _, field := range append(records.WriteOnceFields(), records.FieldPromptVersion, records.FieldCandidateID) {
		_, err := s.UpdateEvaluationFields(ctx, "e1", map[string]string{field: "x"})
		assert.ErrorIs(t, err, records.ErrImmutableField, field)
	}

	_, err := s.UpdateEvaluationFields(ctx, "e1", map[string]string{
		records.FieldDecision: "push",
		records.FieldFitScore: "5",
	})
	require.ErrorIs(t, err, records.ErrImmutableField)

	_, err = s.UpdateEvaluationFields(ctx, "e1", map[string]string{"notes": "x"})
	require.ErrorIs(t, err, records.ErrValidation)

	updated, err := s.UpdateEvaluationDecision(ctx, "e1", records.DecisionPush)
	require.NoError(t, err)
	assert.Equal(t, records.DecisionPush, updated.Decision)

	got, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.DecisionPush, got.Decision)
	assert.Equal(t, 4, got.FitScore)
	assert.Equal(t, records.FitYes, got.FitLabel)
	assert.Equal(t, "solid Go background", got.Reasons)
	assert.Equal(t, fixedNow, got.EvaluatedAt)
}

func TestUpdateEvaluationSyncStatus(t *testing.T) {
	ctx := context.Background()
	s, _, c := seeded(t)
	require.NoError(t, s.InsertEvaluation(ctx, evaluation(c.CandidateID)))

	_, err := s.UpdateEvaluationSyncStatus(ctx, "missing", records.SyncSent)
	require.ErrorIs(t, err, records.ErrNotFound)

	ev, err := s.UpdateEvaluationSyncStatus(ctx, "e1", records.SyncFailed)
	require.NoError(t, err)
	assert.Equal(t, records.SyncFailed, ev.TeamtailorStatus)

	ev, err = s.UpdateEvaluationSyncStatus(ctx, "e1", records.SyncSent)
	require.NoError(t, err)
	assert.Equal(t, records.SyncSent, ev.TeamtailorStatus)

	_, err = s.UpdateEvaluationSyncStatus(ctx, "e1", records.SyncFailed)
	require.ErrorIs(t, err, records.ErrValidation)

	_, err = s.UpdateEvaluationSyncStatus(ctx, "e1", "queued")
	require.ErrorIs(t, err, records.ErrValidation)

	got, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, records.SyncSent, got.TeamtailorStatus)
}

func TestDefaultPrompt(t *testing.T) {
	ctx := context.Background()
	s, _, _ := seeded(t)

	_, err := s.GetDefaultPrompt(ctx, "J1")
	require.ErrorIs(t, err, records.ErrConfiguration)

	_, err = s.GetDefaultPrompt(ctx, "J404")
	require.ErrorIs(t, err, records.ErrNotFound)

	_, err = s.SetDefaultPromptVersion(ctx, "J1", "v2")
	require.ErrorIs(t, err, records.ErrReferential)

	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v2", PromptContent: "second"})
	require.NoError(t, err)

	job, err := s.SetDefaultPromptVersion(ctx, "J1", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", job.DefaultPromptVersion)

	p, err := s.GetDefaultPrompt(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, "second", p.PromptContent)

	// Refreshing the job without a version keeps the default.
	job, _, err = s.UpsertJobPost(ctx, records.JobPost{JobPostID: "J1", JobPostName: "Backend (remote)", Active: false})
	require.NoError(t, err)
	assert.Equal(t, "v2", job.DefaultPromptVersion)

	stored, err := s.GetJobPost(ctx, "J1")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, "Backend (remote)", stored.JobPostName)

	active, err := s.ListJobPosts(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUpsertPromptFreezesReferencedVersion(t *testing.T) {
	ctx := context.Background()
	s, _, c := seeded(t)

	created, err := s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v1", PromptContent: "edited before use"})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.InsertEvaluation(ctx, evaluation(c.CandidateID)))

	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v1", PromptContent: "edited after use"})
	require.ErrorIs(t, err, records.ErrImmutableField)

	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v1", PromptContent: "edited before use"})
	require.NoError(t, err, "rewriting identical content is a no-op")

	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J404", PromptVersion: "v1", PromptContent: "x"})
	require.ErrorIs(t, err, records.ErrReferential)

	prompts, err := s.ListPrompts(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "edited before use", prompts[0].PromptContent)
}

func TestListEvaluationsFilter(t *testing.T) {
	ctx := context.Background()
	s, _, c := seeded(t)

	first := evaluation(c.CandidateID)
	first.EvaluatedAt = fixedNow.Add(time.Hour)
	require.NoError(t, s.InsertEvaluation(ctx, first))

	second := evaluation(c.CandidateID)
	second.EvaluationID = "e2"
	second.Decision = records.DecisionPush
	require.NoError(t, s.InsertEvaluation(ctx, second))

	all, err := s.ListEvaluations(ctx, EvaluationFilter{CandidateID: c.CandidateID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e2", all[0].EvaluationID, "oldest first")

	push, err := s.ListEvaluations(ctx, EvaluationFilter{Decision: records.DecisionPush})
	require.NoError(t, err)
	require.Len(t, push, 1)
	assert.Equal(t, "e2", push[0].EvaluationID)
}

func TestTransportFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	mem.FailNext(errors.New("connection reset"))
	_, _, err := s.UpsertCandidateRaw(ctx, candidate("42", "Ada"))
	require.Error(t, err)
	assert.True(t, tables.IsRetryable(err))
	assert.Nil(t, records.Kind(err))
	assert.Zero(t, mem.Len(records.TableCandidates))
}

func TestProvision(t *testing.T) {
	s, _ := newTestStore(t)

	created, err := s.Provision(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 4)

	created, err = s.Provision(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
}
