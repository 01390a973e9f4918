// Package gsheets stores the pipeline tables as sheets of one Google
// Spreadsheet: one sheet per table, a header row naming the columns and one
// row per record.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

const (
	backend = "gsheets"

	defaultRequestTimeout = 30 * time.Second
	// Rows covered by drop-down validation on enum columns.
	validationRows = 10000
)

type Config struct {
	SpreadsheetID string
	// CredentialsJSON is a service-account key. Empty means application
	// default credentials.
	CredentialsJSON   []byte
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int

	// Endpoint and HTTPClient replace the Google endpoint and auth, for tests.
	Endpoint   string
	HTTPClient *http.Client
}

type Sheets struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheets  *sheets.SpreadsheetsService
	spreadsheetID string
	timeout       time.Duration
	limiter       *RateLimiter
	logger        *zap.Logger
}

func New(ctx context.Context, cfg Config, log *zap.Logger) (*Sheets, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Sheets{
		values:        svc.Spreadsheets.Values,
		spreadsheets:  svc.Spreadsheets,
		spreadsheetID: cfg.SpreadsheetID,
		timeout:       timeout,
		limiter:       NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:        log.With(zap.String("spreadsheet_id", cfg.SpreadsheetID)),
	}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	if cfg.HTTPClient != nil {
		opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		}
		return opts, nil
	}

	var (
		creds *google.Credentials
		err   error
	)
	if len(cfg.CredentialsJSON) > 0 {
		creds, err = google.CredentialsFromJSON(ctx, cfg.CredentialsJSON, sheets.SpreadsheetsScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
	}
	if err != nil {
		return nil, fmt.Errorf("load google credentials: %w", err)
	}

	opts := []option.ClientOption{option.WithCredentials(creds)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	return opts, nil
}

// call runs one API request under the rate limiter and the request timeout.
func (s *Sheets) call(ctx context.Context, op, table string, key tables.Key, fn func(ctx context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return tables.Wrap(backend, op, table, key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		s.limiter.RecordRateLimitError(retryAfter(gerr.Header))
		s.logger.Warn("sheets quota exhausted, backing off",
			zap.String("table", table),
			zap.Duration("backoff", s.limiter.Backoff()),
		)
	}

	return tables.Wrap(backend, op, table, key, classify(table, err))
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// grid reads every populated cell of a sheet as text.
func (s *Sheets) grid(ctx context.Context, op, table string, key tables.Key) ([][]string, error) {
	var resp *sheets.ValueRange
	err := s.call(ctx, op, table, key, func(ctx context.Context) error {
		var err error
		resp, err = s.values.Get(s.spreadsheetID, quoteSheet(table)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellText(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (s *Sheets) ReadRows(ctx context.Context, table string) ([]tables.Row, error) {
	grid, err := s.grid(ctx, "read", table, nil)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}

	header := trimHeader(grid[0])
	rows := make([]tables.Row, 0, len(grid)-1)
	for _, values := range grid[1:] {
		if blank(values) {
			continue
		}
		rows = append(rows, tables.RowFromValues(header, values))
	}
	return rows, nil
}

// WriteRow rewrites the first row matched by key. Columns absent from row
// keep their current cell value, so extra recruiter columns survive.
func (s *Sheets) WriteRow(ctx context.Context, table string, key tables.Key, row tables.Row) error {
	grid, err := s.grid(ctx, "write", table, key)
	if err != nil {
		return err
	}
	if len(grid) == 0 {
		return tables.ErrNoRow
	}

	header := trimHeader(grid[0])
	for i, values := range grid[1:] {
		current := tables.RowFromValues(header, values)
		if !key.Matches(current) {
			continue
		}

		for col, v := range row {
			current[col] = v
		}

		// Header is row 1, so data row i lives on sheet row i+2.
		rng := fmt.Sprintf("%s!A%d", quoteSheet(table), i+2)
		vr := &sheets.ValueRange{Values: [][]interface{}{toCells(header, current)}}

		return s.call(ctx, "write", table, key, func(ctx context.Context) error {
			_, err := s.values.Update(s.spreadsheetID, rng, vr).
				ValueInputOption("RAW").
				Context(ctx).
				Do()
			return err
		})
	}

	return tables.ErrNoRow
}

func (s *Sheets) AppendRow(ctx context.Context, table string, row tables.Row) error {
	header, err := s.header(ctx, table)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return tables.Wrap(backend, "append", table, nil, fmt.Errorf("%w %q: sheet has no header row", tables.ErrUnknownTable, table))
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(header, row)}}
	return s.call(ctx, "append", table, nil, func(ctx context.Context) error {
		_, err := s.values.Append(s.spreadsheetID, quoteSheet(table), vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
}

func (s *Sheets) header(ctx context.Context, table string) ([]string, error) {
	var resp *sheets.ValueRange
	err := s.call(ctx, "append", table, nil, func(ctx context.Context) error {
		var err error
		resp, err = s.values.Get(s.spreadsheetID, quoteSheet(table)+"!1:1").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		header[i] = cellText(v)
	}
	return trimHeader(header), nil
}

// trimHeader drops stray spaces recruiters leave around column names.
func trimHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func toCells(header []string, row tables.Row) []interface{} {
	cells := make([]interface{}, len(header))
	for i, col := range header {
		cells[i] = row[col]
	}
	return cells
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// quoteSheet quotes a sheet title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
