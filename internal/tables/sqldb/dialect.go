package sqldb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	driver      string
	rowIDColumn string
	tableExists string
	placeholder func(n int) string
	missing     func(err error) bool
	constraint  func(err error) bool
}

var dialects = map[string]dialect{
	DriverSQLite: {
		driver:      DriverSQLite,
		rowIDColumn: rowID + " INTEGER PRIMARY KEY AUTOINCREMENT",
		tableExists: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		placeholder: func(int) string { return "?" },
		missing: func(err error) bool {
			return strings.Contains(err.Error(), "no such table")
		},
		constraint: func(err error) bool {
			return strings.Contains(err.Error(), "constraint failed")
		},
	},
	DriverPostgres: {
		driver:      DriverPostgres,
		rowIDColumn: rowID + " BIGSERIAL PRIMARY KEY",
		tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		missing: func(err error) bool {
			var pqErr *pq.Error
			return errors.As(err, &pqErr) && pqErr.Code == "42P01"
		},
		// Class 23 is integrity constraint violation.
		constraint: func(err error) bool {
			var pqErr *pq.Error
			return errors.As(err, &pqErr) && pqErr.Code.Class() == "23"
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported sql driver %q (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}
	return d, nil
}

// quote quotes an identifier; both dialects accept double quotes.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
