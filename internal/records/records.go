// Package records holds the four record kinds persisted by the store, their
// closed enumerations and the error taxonomy shared by every component.
package records

import (
	"strings"
	"time"
)

const (
	TableCandidates  = "candidates_raw"
	TableEvaluations = "candidates_evaluations"
	TableJobPosts    = "job_posts"
	TablePrompts     = "prompts"
)

// Field names of CandidateEvaluation as stored in the table.
const (
	FieldEvaluationID     = "evaluation_id"
	FieldCandidateID      = "candidate_id"
	FieldJobPostID        = "job_post_id"
	FieldPromptVersion    = "prompt_version"
	FieldEvaluatedAt      = "evaluated_at"
	FieldFitLabel         = "fit_label"
	FieldFitScore         = "fit_score"
	FieldReasons          = "reasons"
	FieldRedFlags         = "red_flags"
	FieldDecision         = "decision"
	FieldTeamtailorStatus = "teamtailor_status"
)

const (
	MinFitScore = 1
	MaxFitScore = 5
)

// CandidateRaw is one person as seen by one source.
type CandidateRaw struct {
	CandidateID       string    `mapstructure:"candidate_id" json:"candidate_id"`
	Source            Source    `mapstructure:"source" json:"source"`
	SourceCandidateID string    `mapstructure:"source_candidate_id" json:"source_candidate_id"`
	CreatedAt         time.Time `mapstructure:"created_at" json:"created_at"`
	FullName          string    `mapstructure:"full_name" json:"full_name"`
	Email             string    `mapstructure:"email" json:"email"`
	Phone             string    `mapstructure:"phone" json:"phone,omitempty"`
	LinkedInURL       string    `mapstructure:"linkedin_url" json:"linkedin_url,omitempty"`
	CVURL             string    `mapstructure:"cv_url" json:"cv_url,omitempty"`
	RawProfileURL     string    `mapstructure:"raw_profile_url" json:"raw_profile_url"`
}

// NaturalKey is the upsert key (source, source_candidate_id).
func (c CandidateRaw) NaturalKey() string {
	return string(c.Source) + "/" + c.SourceCandidateID
}

// JobPost is one posting on the source platform.
type JobPost struct {
	JobPostID            string `mapstructure:"job_post_id" json:"job_post_id"`
	JobPostName          string `mapstructure:"job_post_name" json:"job_post_name"`
	Active               bool   `mapstructure:"active" json:"active"`
	GetOnBoardURL        string `mapstructure:"getonboard_url" json:"getonboard_url,omitempty"`
	DefaultPromptVersion string `mapstructure:"default_prompt_version" json:"default_prompt_version,omitempty"`
}

// Prompt is one version of the evaluation instructions for a job post.
type Prompt struct {
	PromptVersion string `mapstructure:"prompt_version" json:"prompt_version"`
	JobPostID     string `mapstructure:"job_post_id" json:"job_post_id"`
	PromptContent string `mapstructure:"prompt_content" json:"prompt_content"`
}

// CandidateEvaluation is a single evaluation attempt. The LLM-authored fields
// are set once at creation.
type CandidateEvaluation struct {
	EvaluationID     string     `mapstructure:"evaluation_id" json:"evaluation_id"`
	CandidateID      string     `mapstructure:"candidate_id" json:"candidate_id"`
	JobPostID        string     `mapstructure:"job_post_id" json:"job_post_id"`
	PromptVersion    string     `mapstructure:"prompt_version" json:"prompt_version"`
	EvaluatedAt      time.Time  `mapstructure:"evaluated_at" json:"evaluated_at"`
	FitLabel         FitLabel   `mapstructure:"fit_label" json:"fit_label"`
	FitScore         int        `mapstructure:"fit_score" json:"fit_score"`
	Reasons          string     `mapstructure:"reasons" json:"reasons"`
	RedFlags         string     `mapstructure:"red_flags" json:"red_flags,omitempty"`
	Decision         Decision   `mapstructure:"decision" json:"decision"`
	TeamtailorStatus SyncStatus `mapstructure:"teamtailor_status" json:"teamtailor_status"`
}

// WriteOnceFields lists the evaluation fields authored by the model.
func WriteOnceFields() []string {
	return []string{FieldFitLabel, FieldFitScore, FieldReasons, FieldRedFlags, FieldEvaluatedAt}
}

// IsWriteOnceField reports whether name is LLM-authored or an identity column.
func IsWriteOnceField(name string) bool {
	name = strings.TrimSpace(name)
	for _, f := range WriteOnceFields() {
		if f == name {
			return true
		}
	}

	switch name {
	case FieldEvaluationID, FieldCandidateID, FieldJobPostID, FieldPromptVersion:
		return true
	default:
		return false
	}
}

// ValidFitScore reports whether score lies in the inclusive [1,5] range.
func ValidFitScore(score int) bool {
	return score >= MinFitScore && score <= MaxFitScore
}
