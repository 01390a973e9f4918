// Package store is the record store: the only component that reads or writes
// the four pipeline tables. Every write path validates the record and its
// references before touching the transport, because the spreadsheet behind it
// enforces nothing.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/logger"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

// Store validates and persists records over a row transport.
type Store struct {
	transport tables.Transport
	logger    *zap.Logger

	newID func() string
	now   func() time.Time

	// Serializes read-modify-write cycles issued by this process. Writers in
	// other processes (or humans editing the sheet) win by writing last.
	mu sync.Mutex
}

func New(transport tables.Transport, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}

	return &Store{
		transport: transport,
		logger:    log,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schemas returns the layout of the four tables in column order.
func Schemas() []tables.Schema {
	return []tables.Schema{
		{
			Name: records.TableCandidates,
			Columns: []tables.Column{
				{Name: "candidate_id"},
				{Name: "source", Enum: records.EnumValues(records.Sources())},
				{Name: "source_candidate_id"},
				{Name: "created_at"},
				{Name: "full_name"},
				{Name: "email"},
				{Name: "phone"},
				{Name: "linkedin_url"},
				{Name: "cv_url"},
				{Name: "raw_profile_url"},
			},
			Key: []string{"candidate_id"},
		},
		{
			Name: records.TableEvaluations,
			Columns: []tables.Column{
				{Name: records.FieldEvaluationID},
				{Name: records.FieldCandidateID},
				{Name: records.FieldJobPostID},
				{Name: records.FieldPromptVersion},
				{Name: records.FieldEvaluatedAt},
				{Name: records.FieldFitLabel, Enum: records.EnumValues(records.FitLabels())},
				{Name: records.FieldFitScore},
				{Name: records.FieldReasons},
				{Name: records.FieldRedFlags},
				{Name: records.FieldDecision, Enum: records.EnumValues(records.Decisions())},
				{Name: records.FieldTeamtailorStatus, Enum: records.EnumValues(records.SyncStatuses())},
			},
			Key: []string{records.FieldEvaluationID},
		},
		{
			Name: records.TableJobPosts,
			Columns: []tables.Column{
				{Name: "job_post_id"},
				{Name: "job_post_name"},
				{Name: "active"},
				{Name: "getonboard_url"},
				{Name: "default_prompt_version"},
			},
			Key: []string{"job_post_id"},
		},
		{
			Name: records.TablePrompts,
			Columns: []tables.Column{
				{Name: "prompt_version"},
				{Name: "job_post_id"},
				{Name: "prompt_content"},
			},
			Key: []string{"prompt_version", "job_post_id"},
		},
	}
}

// Provision creates missing tables when the transport supports it.
func (s *Store) Provision(ctx context.Context) ([]string, error) {
	p, ok := s.transport.(tables.Provisioner)
	if !ok {
		return nil, fmt.Errorf("transport %T cannot provision tables", s.transport)
	}
	return p.Provision(ctx, Schemas())
}

func (s *Store) read(ctx context.Context, table string) ([]tables.Row, error) {
	rows, err := s.transport.ReadRows(ctx, table)
	if err != nil {
		return nil, tables.Wrap("store", "read", table, nil, err)
	}
	return rows, nil
}

func (s *Store) write(ctx context.Context, table string, key tables.Key, row tables.Row) error {
	if err := s.transport.WriteRow(ctx, table, key, row); err != nil {
		if errors.Is(err, tables.ErrNoRow) {
			// Row vanished between read and write, e.g. deleted by hand.
			return records.NotFound(table, key.String())
		}
		return tables.Wrap("store", "write", table, key, err)
	}

	s.logger.Debug("row updated", logger.RecordFields(table, key.String())...)
	return nil
}

func (s *Store) append(ctx context.Context, table, key string, row tables.Row) error {
	if err := s.transport.AppendRow(ctx, table, row); err != nil {
		return tables.Wrap("store", "append", table, tables.Key{"id": key}, err)
	}

	s.logger.Debug("row appended", logger.RecordFields(table, key)...)
	return nil
}

func findRow(rows []tables.Row, key tables.Key) (tables.Row, bool) {
	for _, r := range rows {
		if key.Matches(r) {
			return r, true
		}
	}
	return nil, false
}
