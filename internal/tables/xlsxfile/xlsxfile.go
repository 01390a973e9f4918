// Package xlsxfile keeps the pipeline tables in a local .xlsx workbook, one
// worksheet per table. It mirrors the spreadsheet layout for offline runs
// and snapshots.
package xlsxfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

const (
	backend        = "xlsx"
	defaultSheet   = "Sheet1"
	validationRows = 10000
)

// Workbook opens the file on every call so edits made in a spreadsheet
// application between calls are picked up.
type Workbook struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

func New(path string, log *zap.Logger) (*Workbook, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("workbook path is required")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Workbook{path: filepath.Clean(path), logger: log}, nil
}

func (w *Workbook) Path() string { return w.path }

func (w *Workbook) open(create bool) (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		return f, nil
	}
	if create && errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	return nil, err
}

func (w *Workbook) save(f *excelize.File) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return f.SaveAs(w.path)
}

// rows returns the worksheet grid, header first.
func rows(f *excelize.File, table string) ([][]string, error) {
	idx, err := f.GetSheetIndex(table)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w %q", tables.ErrUnknownTable, table)
	}
	return f.GetRows(table)
}

func (w *Workbook) ReadRows(ctx context.Context, table string) ([]tables.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, tables.Wrap(backend, "read", table, nil, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open(false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w %q: workbook %s does not exist", tables.ErrUnknownTable, table, w.path)
		}
		return nil, tables.Wrap(backend, "read", table, nil, err)
	}
	defer f.Close()

	grid, err := rows(f, table)
	if err != nil {
		return nil, tables.Wrap(backend, "read", table, nil, err)
	}
	if len(grid) == 0 {
		return nil, nil
	}

	out := make([]tables.Row, 0, len(grid)-1)
	for _, values := range grid[1:] {
		if blank(values) {
			continue
		}
		out = append(out, tables.RowFromValues(grid[0], values))
	}
	return out, nil
}

func (w *Workbook) WriteRow(ctx context.Context, table string, key tables.Key, row tables.Row) error {
	if err := ctx.Err(); err != nil {
		return tables.Wrap(backend, "write", table, key, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open(false)
	if err != nil {
		return tables.Wrap(backend, "write", table, key, err)
	}
	defer f.Close()

	grid, err := rows(f, table)
	if err != nil {
		return tables.Wrap(backend, "write", table, key, err)
	}
	if len(grid) == 0 {
		return tables.ErrNoRow
	}

	header := grid[0]
	for i, values := range grid[1:] {
		current := tables.RowFromValues(header, values)
		if !key.Matches(current) {
			continue
		}
		for col, v := range row {
			current[col] = v
		}

		if err := setRow(f, table, i+2, header, current); err != nil {
			return tables.Wrap(backend, "write", table, key, err)
		}
		return tables.Wrap(backend, "write", table, key, w.save(f))
	}

	return tables.ErrNoRow
}

func (w *Workbook) AppendRow(ctx context.Context, table string, row tables.Row) error {
	if err := ctx.Err(); err != nil {
		return tables.Wrap(backend, "append", table, nil, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open(false)
	if err != nil {
		return tables.Wrap(backend, "append", table, nil, err)
	}
	defer f.Close()

	grid, err := rows(f, table)
	if err != nil {
		return tables.Wrap(backend, "append", table, nil, err)
	}
	if len(grid) == 0 {
		return tables.Wrap(backend, "append", table, nil, fmt.Errorf("%w %q: sheet has no header row", tables.ErrUnknownTable, table))
	}

	if err := setRow(f, table, len(grid)+1, grid[0], row); err != nil {
		return tables.Wrap(backend, "append", table, nil, err)
	}
	return tables.Wrap(backend, "append", table, nil, w.save(f))
}

func setRow(f *excelize.File, table string, rowNum int, header []string, row tables.Row) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}

	values := make([]interface{}, len(header))
	for i, col := range header {
		values[i] = row[col]
	}
	return f.SetSheetRow(table, cell, &values)
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
