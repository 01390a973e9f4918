package records

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrReferential marks a missing foreign key target. Never retried.
	ErrReferential = errors.New("referenced record does not exist")
	// ErrNotFound marks a lookup miss.
	ErrNotFound = errors.New("record not found")
	// ErrImmutableField marks an attempt to change a write-once field.
	ErrImmutableField = errors.New("field is write-once")
	// ErrAlreadySynced is informational: the evaluation is already in the ATS.
	ErrAlreadySynced = errors.New("evaluation already synced")
	// ErrConfiguration marks data that is present but not configured for use,
	// e.g. a job post without a default prompt version.
	ErrConfiguration = errors.New("configuration error")
)

// Error carries one of the sentinel kinds above together with the record it
// is about.
type Error struct {
	Kind  error
	Table string
	Key   string
	Field string
	Msg   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	var ctx []string
	if e.Table != "" {
		ctx = append(ctx, "table="+e.Table)
	}
	if e.Key != "" {
		ctx = append(ctx, "key="+e.Key)
	}
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if len(ctx) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString("]")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}

	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func Validation(table, field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Table: table, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func Referential(table, key, format string, args ...any) error {
	return &Error{Kind: ErrReferential, Table: table, Key: key, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(table, key string) error {
	return &Error{Kind: ErrNotFound, Table: table, Key: key}
}

func Immutable(table, key, field string) error {
	return &Error{Kind: ErrImmutableField, Table: table, Key: key, Field: field, Msg: "write-once field cannot be modified"}
}

func AlreadySynced(key string) error {
	return &Error{Kind: ErrAlreadySynced, Table: TableEvaluations, Key: key}
}

func Configuration(table, key, format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Table: table, Key: key, Msg: fmt.Sprintf(format, args...)}
}

// Kind returns the sentinel carried by err, or nil when err is outside the taxonomy.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation, ErrReferential, ErrNotFound,
		ErrImmutableField, ErrAlreadySynced, ErrConfiguration,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
