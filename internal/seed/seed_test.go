package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

const document = `
job_posts:
  - id: J1
    name: Backend Engineer
    getonboard_url: https://www.getonbrd.com/jobs/j1
    default_prompt_version: v2
    prompts:
      - version: v1
        content: "Evaluate {{CANDIDATE_JSON}}"
      - version: v2
        file: prompts/j1-v2.md
  - id: J2
    name: Data Engineer
    active: false
`

func writeSeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "j1-v2.md"), []byte("Stricter {{CANDIDATE_JSON}}\n"), 0o644))

	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o644))
	return path
}

func TestLoadAndApply(t *testing.T) {
	ctx := context.Background()
	f, err := Load(writeSeed(t))
	require.NoError(t, err)
	require.Len(t, f.JobPosts, 2)
	assert.Equal(t, "Stricter {{CANDIDATE_JSON}}\n", f.JobPosts[0].Prompts[1].Content)

	s := store.New(tables.NewMemory(), zaptest.NewLogger(t))
	summary, err := Apply(ctx, s, f, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, Summary{JobPostsCreated: 2, PromptsCreated: 2}, summary)

	p, err := s.GetDefaultPrompt(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.PromptVersion)

	j2, err := s.GetJobPost(ctx, "J2")
	require.NoError(t, err)
	assert.False(t, j2.Active)

	summary, err = Apply(ctx, s, f, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{JobPostsUpdated: 2, PromptsExisting: 2}, summary)
}

func TestApplyStopsOnFrozenPrompt(t *testing.T) {
	ctx := context.Background()
	f, err := Load(writeSeed(t))
	require.NoError(t, err)

	s := store.New(tables.NewMemory(), zaptest.NewLogger(t))
	_, err = Apply(ctx, s, f, nil)
	require.NoError(t, err)

	c, _, err := s.UpsertCandidateRaw(ctx, records.CandidateRaw{
		Source: records.SourceGetOnBoard, SourceCandidateID: "1", Email: "a@b.com", RawProfileURL: "https://x/1",
	})
	require.NoError(t, err)
	require.NoError(t, s.InsertEvaluation(ctx, records.CandidateEvaluation{
		EvaluationID: "e1", CandidateID: c.CandidateID, JobPostID: "J1", PromptVersion: "v1",
		EvaluatedAt: time.Now().UTC(), FitLabel: records.FitNo, FitScore: 1, Reasons: "x",
	}))

	f.JobPosts[0].Prompts[0].Content = "Changed"
	_, err = Apply(ctx, s, f, nil)
	assert.ErrorIs(t, err, records.ErrImmutableField)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":             "  \n",
		"unknown field":     "job_posts:\n  - id: J1\n    title: x\n",
		"missing id":        "job_posts:\n  - name: x\n",
		"missing version":   "job_posts:\n  - id: J1\n    prompts:\n      - content: x\n",
		"duplicate version": "job_posts:\n  - id: J1\n    prompts:\n      - {version: v1, content: a}\n      - {version: v1, content: b}\n",
		"content and file":  "job_posts:\n  - id: J1\n    prompts:\n      - {version: v1, content: a, file: b.md}\n",
		"missing file":      "job_posts:\n  - id: J1\n    prompts:\n      - {version: v1, file: nope.md}\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), t.TempDir())
			require.Error(t, err)
		})
	}
}
