package sqldb

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

// Provision creates missing tables. Enum columns get a CHECK constraint that
// also admits the empty string, which the store reads as the default.
func (s *DB) Provision(ctx context.Context, schemas []tables.Schema) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var created []string
	for _, schema := range schemas {
		var n int
		if err := s.db.QueryRowContext(ctx, s.dialect.tableExists, schema.Name).Scan(&n); err != nil {
			return created, s.wrap("provision", schema.Name, nil, err)
		}
		if n > 0 {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return created, s.wrap("provision", schema.Name, nil, err)
		}
		for _, stmt := range s.createStatements(schema) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return created, s.wrap("provision", schema.Name, nil, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return created, s.wrap("provision", schema.Name, nil, err)
		}

		created = append(created, schema.Name)
	}

	if len(created) > 0 {
		s.logger.Info("tables provisioned", zap.String("driver", s.dialect.driver), zap.Strings("tables", created))
	}
	return created, nil
}

func (s *DB) createStatements(schema tables.Schema) []string {
	defs := []string{s.dialect.rowIDColumn}
	for _, col := range schema.Columns {
		def := quote(col.Name) + " TEXT NOT NULL DEFAULT ''"
		if len(col.Enum) > 0 {
			values := make([]string, 0, len(col.Enum)+1)
			values = append(values, "''")
			for _, v := range col.Enum {
				values = append(values, quoteLiteral(v))
			}
			def += fmt.Sprintf(" CHECK (%s IN (%s))", quote(col.Name), strings.Join(values, ", "))
		}
		defs = append(defs, def)
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quote(schema.Name), strings.Join(defs, ",\n\t")),
	}

	if len(schema.Key) > 0 {
		keyCols := make([]string, len(schema.Key))
		for i, k := range schema.Key {
			keyCols[i] = quote(k)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
			quote(schema.Name+"_key"), quote(schema.Name), strings.Join(keyCols, ", ")))
	}
	return stmts
}
