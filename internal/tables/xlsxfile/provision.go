package xlsxfile

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

// Provision creates the workbook if needed and adds a worksheet per missing
// table: bold frozen header and drop-down lists on enum columns.
func (w *Workbook) Provision(ctx context.Context, schemas []tables.Schema) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, tables.Wrap(backend, "provision", "", nil, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open(true)
	if err != nil {
		return nil, tables.Wrap(backend, "provision", "", nil, err)
	}
	defer f.Close()

	existing := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		existing[name] = true
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, tables.Wrap(backend, "provision", "", nil, err)
	}

	var created []string
	for _, schema := range schemas {
		if existing[schema.Name] {
			continue
		}
		if err := addSheet(f, schema, headerStyle); err != nil {
			return created, tables.Wrap(backend, "provision", schema.Name, nil, err)
		}
		created = append(created, schema.Name)
	}
	if len(created) == 0 {
		return nil, nil
	}

	// A fresh workbook starts with an empty default sheet.
	if existing[defaultSheet] && len(existing) == 1 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return created, tables.Wrap(backend, "provision", defaultSheet, nil, err)
		}
	}

	if err := w.save(f); err != nil {
		return created, tables.Wrap(backend, "provision", "", nil, err)
	}

	w.logger.Info("workbook provisioned", zap.String("path", w.path), zap.Strings("tables", created))
	return created, nil
}

func addSheet(f *excelize.File, schema tables.Schema, headerStyle int) error {
	if _, err := f.NewSheet(schema.Name); err != nil {
		return err
	}

	header := make([]interface{}, 0, len(schema.Columns))
	for _, h := range schema.Header() {
		header = append(header, h)
	}
	if err := f.SetSheetRow(schema.Name, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(schema.Name, 1, 1, headerStyle); err != nil {
		return err
	}

	if err := f.SetPanes(schema.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	for i, col := range schema.Columns {
		if len(col.Enum) == 0 {
			continue
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}

		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s2:%s%d", name, name, validationRows)
		if err := dv.SetDropList(col.Enum); err != nil {
			return err
		}
		if err := f.AddDataValidation(schema.Name, dv); err != nil {
			return err
		}
	}
	return nil
}
