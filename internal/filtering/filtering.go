// Package filtering selects the evaluations a bulk push sends to the ATS.
// Selection runs as a list of steps, each reporting how many evaluations it
// dropped.
package filtering

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
)

// Filter represents a single selection step applied to evaluations.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, v *Evaluations) (*Evaluations, Step, error)
}

type JobPostLister interface {
	ListJobPosts(ctx context.Context, activeOnly bool) ([]records.JobPost, error)
}

// Deps aggregates dependencies shared across all steps.
type Deps struct {
	Logger   *zap.Logger
	JobPosts JobPostLister
}

// Step describes the result of executing a step.
type Step struct {
	Initial int `json:"initial"`
	Dropped int `json:"dropped"`
	Left    int `json:"left"`
}

// Report is a step result together with the step name.
type Report struct {
	Name string `json:"name"`
	Step
}

// Config contains the selection settings.
type Config struct {
	// MinimumFitScore drops evaluations scored below it. Zero disables the step.
	MinimumFitScore int
	// RetryFailed also selects evaluations whose previous push failed.
	RetryFailed bool
	// JobPostID restricts selection to one job post.
	JobPostID string
}

// Status represents runtime information about a step.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Evaluations is the working set passed between steps.
type Evaluations struct {
	Items []records.CandidateEvaluation
}

func (e *Evaluations) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Items)
}

// Keep retains items for which keep returns true and returns the ids of the
// removed ones.
func (e *Evaluations) Keep(keep func(records.CandidateEvaluation) bool) []string {
	var excluded []string
	kept := make([]records.CandidateEvaluation, 0, len(e.Items))
	for _, ev := range e.Items {
		if keep(ev) {
			kept = append(kept, ev)
			continue
		}
		excluded = append(excluded, ev.EvaluationID)
	}
	e.Items = kept
	return excluded
}

// IDs returns the evaluation ids in order.
func (e *Evaluations) IDs() []string {
	ids := make([]string, 0, e.Len())
	for _, ev := range e.Items {
		ids = append(ids, ev.EvaluationID)
	}
	return ids
}

// ByJobPost counts the evaluations per job post.
func (e *Evaluations) ByJobPost() map[string]int {
	counts := make(map[string]int)
	for _, ev := range e.Items {
		counts[ev.JobPostID]++
	}
	return counts
}

// DumpToTmpFile writes the evaluations as indented JSON to a new temporary
// file and returns its name.
func (e *Evaluations) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "evaluations_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// Default returns the push selection steps in the order they run. Latest
// runs before decision and sync status, so a superseded attempt is never
// selected.
func Default() []Filter {
	return []Filter{
		NewJobPost(),
		NewLatest(),
		NewDecision(),
		NewPending(),
		NewMinimumScore(),
		NewActiveJob(),
	}
}

// DisableByName marks a step with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the steps sequentially and returns the selected evaluations
// with a report per enabled step.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, v *Evaluations) (*Evaluations, []Report, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	reports := make([]Report, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		reports = append(reports, Report{Name: step.Name(), Step: info})
		v = next
	}

	return v, reports, nil
}

// Describe returns status entries for the provided steps.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
