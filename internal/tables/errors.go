package tables

import (
	"context"
	"errors"
	"fmt"
)

// TransportError wraps a collaborator I/O failure. It is the only retryable
// error category; Table and Key tell a caller-side retry policy what failed.
type TransportError struct {
	Backend string
	Op      string
	Table   string
	Key     string
	Err     error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s transport: %s %s", e.Backend, e.Op, e.Table)
	if e.Key != "" {
		msg += " (" + e.Key + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Wrap builds a TransportError unless err is nil or already one.
func Wrap(backend, op, table string, key Key, err error) error {
	if err == nil {
		return nil
	}

	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}

	k := ""
	if key != nil {
		k = key.String()
	}

	return &TransportError{Backend: backend, Op: op, Table: table, Key: k, Err: err}
}

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
