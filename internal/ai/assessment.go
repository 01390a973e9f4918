// Package ai describes model-backed candidate assessment independently of
// the provider.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/hiring-pipeline/internal/records"
)

// ErrMalformedOutput marks model output that does not conform to the
// assessment shape: bad JSON, unknown label or an out-of-range score.
var ErrMalformedOutput = errors.New("malformed model output")

// Assessment is the model-authored part of an evaluation.
type Assessment struct {
	FitLabel records.FitLabel `json:"fit_label"`
	FitScore int              `json:"fit_score"`
	Reasons  string           `json:"reasons"`
	RedFlags string           `json:"red_flags,omitempty"`

	// Raw is the unparsed model response, kept for debugging.
	Raw string `json:"-"`
}

// Validate checks the assessment against the evaluation invariants.
func (a *Assessment) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: empty assessment", ErrMalformedOutput)
	}
	if !a.FitLabel.Valid() {
		return fmt.Errorf("%w: unknown fit_label %q", ErrMalformedOutput, a.FitLabel)
	}
	if !records.ValidFitScore(a.FitScore) {
		return fmt.Errorf("%w: fit_score %d outside [%d,%d]", ErrMalformedOutput, a.FitScore, records.MinFitScore, records.MaxFitScore)
	}
	if strings.TrimSpace(a.Reasons) == "" {
		return fmt.Errorf("%w: reasons are empty", ErrMalformedOutput)
	}
	return nil
}

// Assessor turns a fully built prompt into an assessment.
type Assessor interface {
	Assess(ctx context.Context, prompt string) (*Assessment, error)
	Model() string
}
