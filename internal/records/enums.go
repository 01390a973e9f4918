package records

import (
	"fmt"
	"strings"
)

// Source identifies the platform a candidate was ingested from.
type Source string

const (
	SourceGetOnBoard Source = "getonboard"
)

// Sources returns every known source in declaration order.
func Sources() []Source {
	return []Source{SourceGetOnBoard}
}

func (s Source) Valid() bool {
	switch s {
	case SourceGetOnBoard:
		return true
	default:
		return false
	}
}

func (s Source) String() string { return string(s) }

// ParseSource normalizes v and fails with ErrValidation on unknown values.
func ParseSource(v string) (Source, error) {
	s := Source(normalizeEnum(v))
	if !s.Valid() {
		return "", invalidEnum("source", v, Sources())
	}
	return s, nil
}

// FitLabel is the categorical fit assessment produced by the model.
type FitLabel string

const (
	FitStrongYes FitLabel = "strong_yes"
	FitYes       FitLabel = "yes"
	FitMaybe     FitLabel = "maybe"
	FitNo        FitLabel = "no"
)

func FitLabels() []FitLabel {
	return []FitLabel{FitStrongYes, FitYes, FitMaybe, FitNo}
}

func (l FitLabel) Valid() bool {
	switch l {
	case FitStrongYes, FitYes, FitMaybe, FitNo:
		return true
	default:
		return false
	}
}

// Positive reports whether the label recommends moving the candidate forward.
func (l FitLabel) Positive() bool {
	switch l {
	case FitStrongYes, FitYes:
		return true
	case FitMaybe, FitNo:
		return false
	default:
		return false
	}
}

func (l FitLabel) String() string { return string(l) }

func ParseFitLabel(v string) (FitLabel, error) {
	l := FitLabel(normalizeEnum(v))
	if !l.Valid() {
		return "", invalidEnum("fit_label", v, FitLabels())
	}
	return l, nil
}

// Decision is the recruiter (or automation) verdict on an evaluation.
type Decision string

const (
	DecisionPush   Decision = "push"
	DecisionHold   Decision = "hold"
	DecisionReject Decision = "reject"
)

func Decisions() []Decision {
	return []Decision{DecisionPush, DecisionHold, DecisionReject}
}

func (d Decision) Valid() bool {
	switch d {
	case DecisionPush, DecisionHold, DecisionReject:
		return true
	default:
		return false
	}
}

func (d Decision) String() string { return string(d) }

func ParseDecision(v string) (Decision, error) {
	d := Decision(normalizeEnum(v))
	if !d.Valid() {
		return "", invalidEnum("decision", v, Decisions())
	}
	return d, nil
}

// SyncStatus tracks the push-to-ATS lifecycle of an evaluation.
type SyncStatus string

const (
	SyncNotSent SyncStatus = "not_sent"
	SyncSent    SyncStatus = "sent"
	SyncFailed  SyncStatus = "failed"
)

func SyncStatuses() []SyncStatus {
	return []SyncStatus{SyncNotSent, SyncSent, SyncFailed}
}

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncNotSent, SyncSent, SyncFailed:
		return true
	default:
		return false
	}
}

// Pushable reports whether a push attempt may start from this status.
func (s SyncStatus) Pushable() bool {
	switch s {
	case SyncNotSent, SyncFailed:
		return true
	case SyncSent:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
// sent is terminal; rewriting sent with sent is accepted as a no-op.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	if !next.Valid() {
		return false
	}

	switch s {
	case SyncNotSent, SyncFailed:
		return true
	case SyncSent:
		return next == SyncSent
	default:
		return false
	}
}

func (s SyncStatus) String() string { return string(s) }

func ParseSyncStatus(v string) (SyncStatus, error) {
	s := SyncStatus(normalizeEnum(v))
	if !s.Valid() {
		return "", invalidEnum("teamtailor_status", v, SyncStatuses())
	}
	return s, nil
}

func normalizeEnum(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func invalidEnum[T ~string](field, value string, allowed []T) error {
	values := make([]string, 0, len(allowed))
	for _, a := range allowed {
		values = append(values, string(a))
	}

	return &Error{
		Kind:  ErrValidation,
		Field: field,
		Msg:   fmt.Sprintf("unknown value %q (allowed: %s)", value, strings.Join(values, ", ")),
	}
}

// EnumValues returns the string form of every variant, used for sheet validation.
func EnumValues[T ~string](variants []T) []string {
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		out = append(out, string(v))
	}
	return out
}
