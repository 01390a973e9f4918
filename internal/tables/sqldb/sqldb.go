// Package sqldb stores the pipeline tables in SQLite or PostgreSQL. Every
// column is text, mirroring the spreadsheet, and a serial _row column keeps
// insertion order.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spigell/hiring-pipeline/internal/tables"
)

const (
	rowID = "_row"

	defaultQueryTimeout = 15 * time.Second
)

type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN          string
	QueryTimeout time.Duration
}

type DB struct {
	db      *sql.DB
	dialect dialect
	timeout time.Duration
	logger  *zap.Logger
}

func Open(ctx context.Context, cfg Config, log *zap.Logger) (*DB, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sql dsn is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	dsn := cfg.DSN
	if d.driver == DriverSQLite {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if d.driver == DriverPostgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// One writer at a time; matches SQLite's locking.
		db.SetMaxOpenConns(1)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", d.driver, err)
	}

	return &DB{db: db, dialect: d, timeout: timeout, logger: log}, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) wrap(op, table string, key tables.Key, err error) error {
	if err == nil {
		return nil
	}
	if s.dialect.constraint(err) {
		return fmt.Errorf("%s %s %s: %w: %v", s.dialect.driver, op, table, tables.ErrConstraint, err)
	}
	if s.dialect.missing(err) {
		err = fmt.Errorf("%w %q: %v", tables.ErrUnknownTable, table, err)
	}
	return tables.Wrap(s.dialect.driver, op, table, key, err)
}

func (s *DB) ReadRows(ctx context.Context, table string) ([]tables.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY %s", quote(table), rowID))
	if err != nil {
		return nil, s.wrap("read", table, nil, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, s.wrap("read", table, nil, err)
	}

	var out []tables.Row
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, s.wrap("read", table, nil, err)
		}

		row := make(tables.Row, len(cols)-1)
		for i, col := range cols {
			if col == rowID {
				continue
			}
			row[col] = values[i].String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("read", table, nil, err)
	}
	return out, nil
}

// columns returns the data columns of table, without _row.
func (s *DB) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c != rowID {
			out[c] = true
		}
	}
	return out, nil
}

// known returns the row columns present in the table, sorted for stable SQL.
func known(row tables.Row, cols map[string]bool) []string {
	out := make([]string, 0, len(row))
	for col := range row {
		if cols[col] {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

// WriteRow updates the oldest row matched by key.
func (s *DB) WriteRow(ctx context.Context, table string, key tables.Key, row tables.Row) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cols, err := s.columns(ctx, table)
	if err != nil {
		return s.wrap("write", table, key, err)
	}

	set := known(row, cols)
	if len(set) == 0 {
		return s.wrap("write", table, key, errors.New("row has no known columns"))
	}

	var (
		args    []any
		assigns []string
		where   []string
	)
	for _, col := range set {
		args = append(args, row[col])
		assigns = append(assigns, quote(col)+" = "+s.dialect.placeholder(len(args)))
	}

	keyCols := make([]string, 0, len(key))
	for col := range key {
		keyCols = append(keyCols, col)
	}
	sort.Strings(keyCols)
	for _, col := range keyCols {
		args = append(args, key[col])
		where = append(where, quote(col)+" = "+s.dialect.placeholder(len(args)))
	}

	query := fmt.Sprintf(
		"UPDATE %[1]s SET %[2]s WHERE %[3]s = (SELECT MIN(%[3]s) FROM %[1]s WHERE %[4]s)",
		quote(table), strings.Join(assigns, ", "), rowID, strings.Join(where, " AND "),
	)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.wrap("write", table, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap("write", table, key, err)
	}
	if n == 0 {
		return tables.ErrNoRow
	}
	return nil
}

func (s *DB) AppendRow(ctx context.Context, table string, row tables.Row) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cols, err := s.columns(ctx, table)
	if err != nil {
		return s.wrap("append", table, nil, err)
	}

	insert := known(row, cols)
	if len(insert) == 0 {
		return s.wrap("append", table, nil, errors.New("row has no known columns"))
	}

	names := make([]string, len(insert))
	marks := make([]string, len(insert))
	args := make([]any, len(insert))
	for i, col := range insert {
		names[i] = quote(col)
		marks[i] = s.dialect.placeholder(i + 1)
		args[i] = row[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("append", table, nil, err)
	}
	return nil
}
