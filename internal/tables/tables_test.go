package tables

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Name: "prompts",
	Columns: []Column{
		{Name: "prompt_version"},
		{Name: "job_post_id"},
		{Name: "prompt_content"},
	},
	Key: []string{"prompt_version", "job_post_id"},
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.Provision(ctx, []Schema{testSchema})
	require.NoError(t, err)
	assert.Equal(t, []string{"prompts"}, created)

	require.NoError(t, m.AppendRow(ctx, "prompts", Row{"prompt_version": "v1", "job_post_id": "J1", "prompt_content": "a"}))
	require.NoError(t, m.AppendRow(ctx, "prompts", Row{"prompt_version": "v1", "job_post_id": "J2", "prompt_content": "b"}))

	err = m.WriteRow(ctx, "prompts", Key{"prompt_version": "v1", "job_post_id": "J2"},
		Row{"prompt_version": "v1", "job_post_id": "J2", "prompt_content": "c"})
	require.NoError(t, err)

	rows, err := m.ReadRows(ctx, "prompts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["prompt_content"])
	assert.Equal(t, "c", rows[1]["prompt_content"])

	// Returned rows are copies.
	rows[0]["prompt_content"] = "mutated"
	again, err := m.ReadRows(ctx, "prompts")
	require.NoError(t, err)
	assert.Equal(t, "a", again[0]["prompt_content"])

	err = m.WriteRow(ctx, "prompts", Key{"prompt_version": "v9"}, Row{})
	assert.ErrorIs(t, err, ErrNoRow)
}

func TestMemoryFailuresAreTransportErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.FailNext(errors.New("connection reset"))
	_, err := m.ReadRows(ctx, "prompts")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "prompts", terr.Table)
	assert.Equal(t, "read", terr.Op)

	// The failure is consumed.
	_, err = m.ReadRows(ctx, "prompts")
	assert.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = m.AppendRow(cancelled, "prompts", Row{})
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, m.Len("prompts"))
}

func TestRowFromValuesPadsMissingCells(t *testing.T) {
	row := RowFromValues(testSchema.Header(), []string{"v1"})
	assert.Equal(t, Row{"prompt_version": "v1", "job_post_id": "", "prompt_content": ""}, row)
	assert.Equal(t, []string{"v1", "", ""}, testSchema.Values(row))
}

func TestKeyMatching(t *testing.T) {
	k := Key{"a": "1", "b": "2"}
	assert.True(t, k.Matches(Row{"a": "1", "b": "2", "c": "x"}))
	assert.False(t, k.Matches(Row{"a": "1", "b": "3"}))
	assert.False(t, Key{}.Matches(Row{"a": "1"}))
	assert.Equal(t, "a=1,b=2", k.String())
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src, dst := NewMemory(), NewMemory()
	require.NoError(t, src.AppendRow(ctx, "prompts", Row{"prompt_version": "v1"}))
	require.NoError(t, src.AppendRow(ctx, "prompts", Row{"prompt_version": "v2"}))

	counts, err := Copy(ctx, src, dst, []Schema{testSchema})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["prompts"])
	assert.Equal(t, 2, dst.Len("prompts"))
}
