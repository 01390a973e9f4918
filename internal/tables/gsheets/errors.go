package gsheets

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

var (
	ErrUnauthorized = errors.New("sheets: unauthorised (invalid credentials)")
	ErrForbidden    = errors.New("sheets: forbidden (spreadsheet not shared with the service account?)")
	ErrNotFound     = errors.New("sheets: spreadsheet not found")
	ErrRateLimited  = errors.New("sheets: rate limit exceeded")
)

// IsRateLimited reports whether err is a 429 from the Sheets API.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests
	}
	return false
}

// isMissingSheet recognises the 400 the API returns for a range whose sheet
// does not exist.
func isMissingSheet(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}

// classify maps Google API errors onto sentinel errors while keeping the
// original in the chain.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}

	if isMissingSheet(err) {
		return fmt.Errorf("%w %q: %v", tables.ErrUnknownTable, table, err)
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	var kind error
	switch gerr.Code {
	case http.StatusUnauthorized:
		kind = ErrUnauthorized
	case http.StatusForbidden:
		kind = ErrForbidden
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
