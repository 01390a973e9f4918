package gsheets

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

// Provision adds a sheet per missing table with a frozen header row and
// drop-down validation on enum columns. Existing sheets are left alone.
func (s *Sheets) Provision(ctx context.Context, schemas []tables.Schema) ([]string, error) {
	existing, err := s.sheetTitles(ctx)
	if err != nil {
		return nil, err
	}

	var (
		missing []tables.Schema
		adds    []*sheets.Request
	)
	for _, schema := range schemas {
		if _, ok := existing[schema.Name]; ok {
			s.logger.Debug("sheet exists, skipping", zap.String("table", schema.Name))
			continue
		}
		missing = append(missing, schema)
		adds = append(adds, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: schema.Name,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
			},
		})
	}
	if len(missing) == 0 {
		return nil, nil
	}

	var resp *sheets.BatchUpdateSpreadsheetResponse
	err = s.call(ctx, "provision", missing[0].Name, nil, func(ctx context.Context) error {
		var err error
		resp, err = s.spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: adds,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		created     []string
		validations []*sheets.Request
	)
	for i, schema := range missing {
		if err := s.writeHeader(ctx, schema); err != nil {
			return created, err
		}
		created = append(created, schema.Name)

		if i >= len(resp.Replies) || resp.Replies[i].AddSheet == nil {
			continue
		}
		sheetID := resp.Replies[i].AddSheet.Properties.SheetId
		validations = append(validations, enumValidations(sheetID, schema)...)
	}

	if len(validations) > 0 {
		err := s.call(ctx, "provision", missing[0].Name, nil, func(ctx context.Context) error {
			_, err := s.spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: validations,
			}).Context(ctx).Do()
			return err
		})
		if err != nil {
			return created, err
		}
	}

	s.logger.Info("sheets provisioned", zap.Strings("tables", created))
	return created, nil
}

func (s *Sheets) sheetTitles(ctx context.Context) (map[string]int64, error) {
	var resp *sheets.Spreadsheet
	err := s.call(ctx, "provision", "", nil, func(ctx context.Context) error {
		var err error
		resp, err = s.spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	titles := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		titles[sh.Properties.Title] = sh.Properties.SheetId
	}
	return titles, nil
}

func (s *Sheets) writeHeader(ctx context.Context, schema tables.Schema) error {
	header := schema.Header()
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}

	return s.call(ctx, "provision", schema.Name, nil, func(ctx context.Context) error {
		_, err := s.values.Update(s.spreadsheetID, quoteSheet(schema.Name)+"!A1", &sheets.ValueRange{
			Values: [][]interface{}{cells},
		}).ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
}

func enumValidations(sheetID int64, schema tables.Schema) []*sheets.Request {
	var out []*sheets.Request
	for col, c := range schema.Columns {
		if len(c.Enum) == 0 {
			continue
		}

		values := make([]*sheets.ConditionValue, 0, len(c.Enum))
		for _, v := range c.Enum {
			values = append(values, &sheets.ConditionValue{UserEnteredValue: v})
		}

		out = append(out, &sheets.Request{
			SetDataValidation: &sheets.SetDataValidationRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    1,
					EndRowIndex:      validationRows,
					StartColumnIndex: int64(col),
					EndColumnIndex:   int64(col + 1),
					ForceSendFields:  []string{"SheetId"},
				},
				Rule: &sheets.DataValidationRule{
					Condition: &sheets.BooleanCondition{
						Type:   "ONE_OF_LIST",
						Values: values,
					},
					Strict:       true,
					ShowCustomUi: true,
				},
			},
		})
	}
	return out
}
