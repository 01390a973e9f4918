package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

func newResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s := store.New(tables.NewMemory(), zaptest.NewLogger(t))

	for _, id := range []string{"J1", "J2"} {
		_, _, err := s.UpsertJobPost(ctx, records.JobPost{JobPostID: id, JobPostName: id, Active: true})
		require.NoError(t, err)
	}
	_, err := s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J1", PromptVersion: "v2", PromptContent: "J1 v2 content"})
	require.NoError(t, err)
	_, err = s.UpsertPrompt(ctx, records.Prompt{JobPostID: "J2", PromptVersion: "v1", PromptContent: "J2 v1 content"})
	require.NoError(t, err)
	_, err = s.SetDefaultPromptVersion(ctx, "J1", "v2")
	require.NoError(t, err)

	return NewResolver(s), s
}

func TestResolveDefault(t *testing.T) {
	r, _ := newResolver(t)

	p, err := r.Resolve(context.Background(), "J1", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.PromptVersion)
	assert.Equal(t, "J1 v2 content", p.PromptContent)
}

func TestResolvePinnedVersionNeverFallsBack(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "J1", "v1")
	require.ErrorIs(t, err, records.ErrNotFound, "v2 exists but v1 was asked for")

	// J2 has v1, which must not leak into J1.
	_, err = r.Resolve(ctx, "J1", " v1 ")
	require.ErrorIs(t, err, records.ErrNotFound)

	p, err := r.Resolve(ctx, "J2", "v1")
	require.NoError(t, err)
	assert.Equal(t, "J2 v1 content", p.PromptContent)
}

func TestResolveWithoutDefault(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "J2", "")
	require.ErrorIs(t, err, records.ErrConfiguration)

	_, err = r.Resolve(ctx, "J404", "")
	require.ErrorIs(t, err, records.ErrNotFound)

	_, err = r.Resolve(ctx, " ", "")
	require.ErrorIs(t, err, records.ErrValidation)
}

func TestBuild(t *testing.T) {
	c := records.CandidateRaw{
		Source:        records.SourceGetOnBoard,
		FullName:      "Ada Lovelace",
		RawProfileURL: "https://x/42",
	}
	job := records.JobPost{JobPostName: "Backend Engineer", GetOnBoardURL: "https://gob/jobs/1"}

	t.Run("placeholders", func(t *testing.T) {
		out, err := Build("Role {{JOB_POST_NAME}} ({{JOB_POST_URL}}) for {{CANDIDATE_NAME}}, CV {{CV_URL}}\n{{CANDIDATE_JSON}}", c, job)
		require.NoError(t, err)

		assert.Contains(t, out, "Role Backend Engineer (https://gob/jobs/1) for Ada Lovelace, CV none")
		assert.Contains(t, out, `"profile_url": "https://x/42"`)
		assert.NotContains(t, out, "Candidate:\n")
	})

	t.Run("candidate appended when not placed", func(t *testing.T) {
		out, err := Build("Check Go experience.\n", c, job)
		require.NoError(t, err)

		assert.Contains(t, out, "Check Go experience.\n\nCandidate:\n{")
		assert.Contains(t, out, `"name": "Ada Lovelace"`)
	})

	t.Run("empty template", func(t *testing.T) {
		_, err := Build("  ", c, job)
		require.Error(t, err)
	})
}
