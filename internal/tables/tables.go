// Package tables defines the row-level transport the record store talks to
// and the backends-agnostic pieces shared by every implementation.
package tables

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Row is one table row keyed by column name. Values are stored as text,
// which is all a spreadsheet cell guarantees.
type Row map[string]string

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Key selects a row by the values of one or more columns.
type Key map[string]string

// Matches reports whether every key column equals the row value.
func (k Key) Matches(r Row) bool {
	if len(k) == 0 {
		return false
	}
	for col, val := range k {
		if r[col] != val {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	parts := make([]string, 0, len(k))
	for col, val := range k {
		parts = append(parts, col+"="+val)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Transport reads and writes rows by logical table name.
//
// Implementations must never return partial data: a failed read returns an
// error and no rows. Network, auth and timeout failures are reported as
// *TransportError.
type Transport interface {
	ReadRows(ctx context.Context, table string) ([]Row, error)
	// WriteRow overwrites the first row matched by key. ErrNoRow is returned
	// when nothing matches.
	WriteRow(ctx context.Context, table string, key Key, row Row) error
	AppendRow(ctx context.Context, table string, row Row) error
}

// Provisioner is implemented by transports able to create missing tables.
type Provisioner interface {
	// Provision creates every table in schemas that does not exist yet and
	// returns the names of the tables it created.
	Provision(ctx context.Context, schemas []Schema) ([]string, error)
}

// ErrNoRow is returned by WriteRow when the key matches no row.
var ErrNoRow = errors.New("no row matches key")

// ErrUnknownTable is returned for tables a backend does not hold.
var ErrUnknownTable = errors.New("unknown table")

// ErrConstraint is returned when a backend rejects a row it will always
// reject, such as a duplicate key or a value outside an enum. It is not a
// TransportError.
var ErrConstraint = errors.New("constraint violated")

// Column describes one column of a table. Enum lists the allowed values for
// closed enumerations and drives sheet validation on provisioning.
type Column struct {
	Name string
	Enum []string
}

// Schema describes a logical table.
type Schema struct {
	Name    string
	Columns []Column
	Key     []string
}

// Header returns the ordered column names.
func (s Schema) Header() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Values orders row values by the schema header.
func (s Schema) Values(r Row) []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, r[c.Name])
	}
	return out
}

// RowFromValues builds a row from header-ordered values. Missing trailing
// cells are treated as empty, which is how spreadsheets report them.
func RowFromValues(header []string, values []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

// Copy reads every table in schemas from src and appends the rows to dst.
func Copy(ctx context.Context, src, dst Transport, schemas []Schema) (map[string]int, error) {
	counts := make(map[string]int, len(schemas))
	for _, schema := range schemas {
		rows, err := src.ReadRows(ctx, schema.Name)
		if err != nil {
			return counts, fmt.Errorf("reading %s: %w", schema.Name, err)
		}

		for _, row := range rows {
			if err := dst.AppendRow(ctx, schema.Name, row); err != nil {
				return counts, fmt.Errorf("writing %s: %w", schema.Name, err)
			}
			counts[schema.Name]++
		}
	}
	return counts, nil
}
