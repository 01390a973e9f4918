package sqldb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

var schemas = []tables.Schema{
	{
		Name:    "prompts",
		Columns: []tables.Column{{Name: "prompt_version"}, {Name: "job_post_id"}, {Name: "prompt_content"}},
		Key:     []string{"prompt_version", "job_post_id"},
	},
	{
		Name: "candidates_evaluations",
		Columns: []tables.Column{
			{Name: "evaluation_id"},
			{Name: "decision", Enum: []string{"push", "hold", "reject"}},
		},
		Key: []string{"evaluation_id"},
	},
}

func openSQLite(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "data", "pipeline.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sql driver")
}

func TestProvisionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	created, err := db.Provision(ctx, schemas)
	require.NoError(t, err)
	assert.Equal(t, []string{"prompts", "candidates_evaluations"}, created)

	created, err = db.Provision(ctx, schemas)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestRowsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	_, err := db.Provision(ctx, schemas)
	require.NoError(t, err)

	for _, v := range []string{"v2", "v1", "v3"} {
		require.NoError(t, db.AppendRow(ctx, "prompts", tables.Row{
			"prompt_version": v,
			"job_post_id":    "J1",
			"prompt_content": "content " + v,
			"ignored":        "not a column",
		}))
	}

	err = db.WriteRow(ctx, "prompts",
		tables.Key{"prompt_version": "v1", "job_post_id": "J1"},
		tables.Row{"prompt_content": "edited"},
	)
	require.NoError(t, err)

	rows, err := db.ReadRows(ctx, "prompts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "v2", rows[0]["prompt_version"])
	assert.Equal(t, tables.Row{"prompt_version": "v1", "job_post_id": "J1", "prompt_content": "edited"}, rows[1])
	assert.NotContains(t, rows[0], rowID)

	err = db.WriteRow(ctx, "prompts", tables.Key{"prompt_version": "v9", "job_post_id": "J1"}, tables.Row{"prompt_content": "x"})
	assert.ErrorIs(t, err, tables.ErrNoRow)
}

func TestEnumAndKeyConstraints(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	_, err := db.Provision(ctx, schemas)
	require.NoError(t, err)

	require.NoError(t, db.AppendRow(ctx, "candidates_evaluations", tables.Row{"evaluation_id": "e1"}))

	rows, err := db.ReadRows(ctx, "candidates_evaluations")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["decision"])

	err = db.AppendRow(ctx, "candidates_evaluations", tables.Row{"evaluation_id": "e2", "decision": "maybe"})
	require.ErrorIs(t, err, tables.ErrConstraint)
	assert.False(t, tables.IsRetryable(err))

	err = db.AppendRow(ctx, "candidates_evaluations", tables.Row{"evaluation_id": "e1", "decision": "push"})
	require.ErrorIs(t, err, tables.ErrConstraint, "evaluation_id is unique")
	assert.False(t, tables.IsRetryable(err))

	err = db.WriteRow(ctx, "candidates_evaluations", tables.Key{"evaluation_id": "e1"}, tables.Row{"decision": "maybe"})
	require.ErrorIs(t, err, tables.ErrConstraint)
	assert.False(t, tables.IsRetryable(err))
}

func TestPostgresConstraintClass(t *testing.T) {
	d := dialects[DriverPostgres]

	assert.True(t, d.constraint(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.True(t, d.constraint(&pq.Error{Code: "23514"}))
	assert.False(t, d.constraint(&pq.Error{Code: "08006"}))
	assert.False(t, d.constraint(errors.New("connection refused")))
}

func TestMissingTable(t *testing.T) {
	db := openSQLite(t)

	_, err := db.ReadRows(context.Background(), "job_posts")
	require.ErrorIs(t, err, tables.ErrUnknownTable)

	var terr *tables.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, DriverSQLite, terr.Backend)
}

func TestCreateStatementsPostgres(t *testing.T) {
	db := &DB{dialect: dialects[DriverPostgres]}

	stmts := db.createStatements(schemas[1])
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], `_row BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, stmts[0], `CHECK ("decision" IN ('', 'push', 'hold', 'reject'))`)
	assert.Equal(t, `CREATE UNIQUE INDEX "candidates_evaluations_key" ON "candidates_evaluations" ("evaluation_id")`, stmts[1])
	assert.Equal(t, "$3", db.dialect.placeholder(3))
}
