package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
)

// toggle carries the enable/disable state shared by all steps.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func step(initial int, v *Evaluations) Step {
	return Step{Initial: initial, Dropped: initial - v.Len(), Left: v.Len()}
}

type jobPostFilter struct {
	toggle
	jobPostID string
}

// NewJobPost creates a step that keeps evaluations of the configured job post.
func NewJobPost() Filter {
	return &jobPostFilter{}
}

func (f *jobPostFilter) Name() string { return "job_post" }

func (f *jobPostFilter) Validate(cfg *Config) error {
	f.jobPostID = ""
	if cfg != nil {
		f.jobPostID = cfg.JobPostID
	}
	return nil
}

func (f *jobPostFilter) Apply(_ context.Context, _ Deps, v *Evaluations) (*Evaluations, Step, error) {
	initial := v.Len()
	if f.jobPostID == "" {
		return v, step(initial, v), nil
	}
	v.Keep(func(ev records.CandidateEvaluation) bool { return ev.JobPostID == f.jobPostID })
	return v, step(initial, v), nil
}

func (f *jobPostFilter) Status() Status {
	details := map[string]string{}
	if f.jobPostID != "" {
		details["job_post_id"] = f.jobPostID
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type decisionFilter struct {
	toggle
}

// NewDecision creates a step that keeps evaluations a recruiter marked push.
func NewDecision() Filter {
	return &decisionFilter{}
}

func (f *decisionFilter) Name() string { return "decision" }

func (f *decisionFilter) Disable(string) {}

func (f *decisionFilter) Validate(*Config) error { return nil }

func (f *decisionFilter) Apply(_ context.Context, _ Deps, v *Evaluations) (*Evaluations, Step, error) {
	initial := v.Len()
	v.Keep(func(ev records.CandidateEvaluation) bool { return ev.Decision == records.DecisionPush })
	return v, step(initial, v), nil
}

type pendingFilter struct {
	toggle
	retryFailed bool
}

// NewPending creates a step that keeps evaluations not yet in the ATS.
func NewPending() Filter {
	return &pendingFilter{}
}

func (f *pendingFilter) Name() string { return "pending" }

func (f *pendingFilter) Disable(string) {}

func (f *pendingFilter) Validate(cfg *Config) error {
	f.retryFailed = cfg != nil && cfg.RetryFailed
	return nil
}

func (f *pendingFilter) Apply(_ context.Context, deps Deps, v *Evaluations) (*Evaluations, Step, error) {
	initial := v.Len()
	excluded := v.Keep(func(ev records.CandidateEvaluation) bool {
		switch ev.TeamtailorStatus {
		case records.SyncNotSent:
			return true
		case records.SyncFailed:
			return f.retryFailed
		case records.SyncSent:
			return false
		default:
			return false
		}
	})
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding evaluations already sent or failed", zap.Strings("excluded_evaluations", excluded))
	}
	return v, step(initial, v), nil
}

func (f *pendingFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"retry_failed": strconv.FormatBool(f.retryFailed)},
	}
}

type minimumScoreFilter struct {
	toggle
	minimum int
}

// NewMinimumScore creates a step that drops evaluations scored below the
// configured minimum.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_fit_score" }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg != nil {
		f.minimum = cfg.MinimumFitScore
	}
	if f.minimum != 0 && !records.ValidFitScore(f.minimum) {
		return fmt.Errorf("minimum fit score %d is outside [%d,%d]", f.minimum, records.MinFitScore, records.MaxFitScore)
	}
	return nil
}

func (f *minimumScoreFilter) Apply(_ context.Context, deps Deps, v *Evaluations) (*Evaluations, Step, error) {
	initial := v.Len()
	if f.minimum == 0 {
		return v, step(initial, v), nil
	}

	excluded := v.Keep(func(ev records.CandidateEvaluation) bool { return ev.FitScore >= f.minimum })
	if len(excluded) > 0 {
		deps.Logger.Info("excluding evaluations below minimum fit score",
			zap.Int("minimum_fit_score", f.minimum),
			zap.Strings("excluded_evaluations", excluded),
		)
	}
	return v, step(initial, v), nil
}

func (f *minimumScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled() && f.minimum > 0,
		Reason:  f.reason,
		Details: map[string]string{"minimum": strconv.Itoa(f.minimum)},
	}
}

type activeJobFilter struct {
	toggle
}

// NewActiveJob creates a step that drops evaluations of inactive or missing
// job posts.
func NewActiveJob() Filter {
	return &activeJobFilter{}
}

func (f *activeJobFilter) Name() string { return "active_job" }

func (f *activeJobFilter) Validate(*Config) error { return nil }

func (f *activeJobFilter) Apply(ctx context.Context, deps Deps, v *Evaluations) (*Evaluations, Step, error) {
	initial := v.Len()
	if deps.JobPosts == nil {
		return v, Step{}, fmt.Errorf("job post lister is required")
	}

	active, err := deps.JobPosts.ListJobPosts(ctx, true)
	if err != nil {
		return v, Step{}, fmt.Errorf("list active job posts: %w", err)
	}
	ids := make(map[string]struct{}, len(active))
	for _, j := range active {
		ids[j.JobPostID] = struct{}{}
	}

	excluded := v.Keep(func(ev records.CandidateEvaluation) bool {
		_, ok := ids[ev.JobPostID]
		return ok
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding evaluations of inactive job posts", zap.Strings("excluded_evaluations", excluded))
	}
	return v, step(initial, v), nil
}

type latestFilter struct {
	toggle
}

// NewLatest creates a step that keeps only the most recent evaluation per
// candidate and job post. A candidate with any attempt already in the ATS is
// dropped altogether, so a re-evaluated candidate is sent once.
func NewLatest() Filter {
	return &latestFilter{}
}

func (f *latestFilter) Name() string { return "latest_per_candidate" }

func (f *latestFilter) Validate(*Config) error { return nil }

func (f *latestFilter) Apply(_ context.Context, deps Deps, v *Evaluations) (*Evaluations, Step, error) {
	initial := v.Len()

	type pair struct{ candidate, job string }
	latest := make(map[pair]records.CandidateEvaluation, v.Len())
	sent := make(map[pair]bool)
	for _, ev := range v.Items {
		key := pair{ev.CandidateID, ev.JobPostID}
		if ev.TeamtailorStatus == records.SyncSent {
			sent[key] = true
		}
		if cur, ok := latest[key]; !ok || !ev.EvaluatedAt.Before(cur.EvaluatedAt) {
			latest[key] = ev
		}
	}

	var synced []string
	v.Keep(func(ev records.CandidateEvaluation) bool {
		key := pair{ev.CandidateID, ev.JobPostID}
		if latest[key].EvaluationID != ev.EvaluationID {
			return false
		}
		if sent[key] && ev.TeamtailorStatus != records.SyncSent {
			synced = append(synced, ev.EvaluationID)
			return false
		}
		return true
	})
	if len(synced) > 0 {
		deps.Logger.Info("excluding evaluations of candidates already in the ats", zap.Strings("excluded_evaluations", synced))
	}
	return v, step(initial, v), nil
}
