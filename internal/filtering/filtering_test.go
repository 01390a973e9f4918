package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hiring-pipeline/internal/records"
)

type jobPosts struct {
	active []records.JobPost
	err    error
}

func (j jobPosts) ListJobPosts(context.Context, bool) ([]records.JobPost, error) {
	return j.active, j.err
}

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func ev(id, candidate, job string, decision records.Decision, status records.SyncStatus, score int, minutes int) records.CandidateEvaluation {
	return records.CandidateEvaluation{
		EvaluationID:     id,
		CandidateID:      candidate,
		JobPostID:        job,
		EvaluatedAt:      t0.Add(time.Duration(minutes) * time.Minute),
		FitScore:         score,
		Decision:         decision,
		TeamtailorStatus: status,
	}
}

func sample() *Evaluations {
	return &Evaluations{Items: []records.CandidateEvaluation{
		ev("e1", "c1", "J1", records.DecisionPush, records.SyncNotSent, 4, 0),
		ev("e2", "c2", "J1", records.DecisionHold, records.SyncNotSent, 5, 1),
		ev("e3", "c3", "J1", records.DecisionPush, records.SyncSent, 5, 2),
		ev("e4", "c4", "J1", records.DecisionPush, records.SyncFailed, 5, 3),
		ev("e5", "c5", "J1", records.DecisionPush, records.SyncNotSent, 2, 4),
		ev("e6", "c6", "J2", records.DecisionPush, records.SyncNotSent, 5, 5),
		ev("e7", "c1", "J1", records.DecisionPush, records.SyncNotSent, 5, 6),
	}}
}

func TestRunDefaultSelection(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	deps := Deps{
		Logger:   zap.New(core),
		JobPosts: jobPosts{active: []records.JobPost{{JobPostID: "J1", Active: true}}},
	}

	got, reports, err := Run(context.Background(), &Config{MinimumFitScore: 3}, deps, Default(), sample())
	require.NoError(t, err)
	assert.Equal(t, []string{"e7"}, got.IDs())

	want := []Report{
		{Name: "job_post", Step: Step{Initial: 7, Dropped: 0, Left: 7}},
		{Name: "latest_per_candidate", Step: Step{Initial: 7, Dropped: 1, Left: 6}},
		{Name: "decision", Step: Step{Initial: 6, Dropped: 1, Left: 5}},
		{Name: "pending", Step: Step{Initial: 5, Dropped: 2, Left: 3}},
		{Name: "minimum_fit_score", Step: Step{Initial: 3, Dropped: 1, Left: 2}},
		{Name: "active_job", Step: Step{Initial: 2, Dropped: 1, Left: 1}},
	}
	assert.Equal(t, want, reports)
	assert.Equal(t, len(want), logs.FilterMessage("filter step").Len())
}

func TestRunRetryFailedAndJobPost(t *testing.T) {
	deps := Deps{JobPosts: jobPosts{active: []records.JobPost{{JobPostID: "J1"}, {JobPostID: "J2"}}}}
	steps := Default()
	DisableByName(steps, "latest_per_candidate", "keep every attempt")

	got, reports, err := Run(context.Background(), &Config{RetryFailed: true, JobPostID: "J1"}, deps, steps, sample())
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e4", "e5", "e7"}, got.IDs())
	assert.Len(t, reports, 5)

	statuses := Describe(steps)
	require.Len(t, statuses, 6)
	assert.Equal(t, "J1", statuses[0].Details["job_post_id"])
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "true", statuses[3].Details["retry_failed"])
	assert.False(t, statuses[4].Enabled, "minimum score is off when zero")
}

func TestRunSelectsOnlyNewestAttempt(t *testing.T) {
	deps := Deps{JobPosts: jobPosts{active: []records.JobPost{{JobPostID: "J1", Active: true}}}}

	tests := []struct {
		name  string
		items []records.CandidateEvaluation
	}{
		{
			name: "newest attempt is on hold",
			items: []records.CandidateEvaluation{
				ev("old", "c1", "J1", records.DecisionPush, records.SyncNotSent, 5, 0),
				ev("new", "c1", "J1", records.DecisionHold, records.SyncNotSent, 5, 5),
			},
		},
		{
			name: "older attempt was already sent",
			items: []records.CandidateEvaluation{
				ev("old", "c1", "J1", records.DecisionPush, records.SyncSent, 5, 0),
				ev("new", "c1", "J1", records.DecisionPush, records.SyncNotSent, 5, 5),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Run(context.Background(), &Config{}, deps, Default(), &Evaluations{Items: tt.items})
			require.NoError(t, err)
			assert.Empty(t, got.IDs())
		})
	}
}

func TestRunValidatesConfig(t *testing.T) {
	_, _, err := Run(context.Background(), &Config{MinimumFitScore: 9}, Deps{}, Default(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum_fit_score")
}

func TestActiveJobErrors(t *testing.T) {
	_, _, err := Run(context.Background(), nil, Deps{}, []Filter{NewActiveJob()}, sample())
	require.Error(t, err)

	boom := errors.New("sheet unavailable")
	_, _, err = Run(context.Background(), nil, Deps{JobPosts: jobPosts{err: boom}}, []Filter{NewActiveJob()}, sample())
	require.ErrorIs(t, err, boom)
}

func TestKeepDoesNotAliasInput(t *testing.T) {
	items := sample().Items
	v := &Evaluations{Items: items}

	excluded := v.Keep(func(ev records.CandidateEvaluation) bool { return ev.CandidateID == "c1" })
	assert.Equal(t, []string{"e1", "e7"}, v.IDs())
	assert.Len(t, excluded, 5)
	assert.Equal(t, "e2", items[1].EvaluationID)
}

func TestByJobPostAndDump(t *testing.T) {
	v := &Evaluations{Items: []records.CandidateEvaluation{
		{EvaluationID: "e1", JobPostID: "J1"},
		{EvaluationID: "e2", JobPostID: "J2"},
		{EvaluationID: "e3", JobPostID: "J1"},
	}}

	assert.Equal(t, map[string]int{"J1": 2, "J2": 1}, v.ByJobPost())

	filename, err := v.DumpToTmpFile()
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(filename) })

	data, err := os.ReadFile(filename)
	require.NoError(t, err)

	var dumped []records.CandidateEvaluation
	require.NoError(t, json.Unmarshal(data, &dumped))
	assert.Equal(t, []string{"e1", "e2", "e3"}, (&Evaluations{Items: dumped}).IDs())
}
