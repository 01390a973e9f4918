package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/hiring-pipeline/internal/records"
)

// Placeholders recognised in prompt templates.
const (
	PlaceholderCandidateJSON = "{{CANDIDATE_JSON}}"
	PlaceholderCandidateName = "{{CANDIDATE_NAME}}"
	PlaceholderJobPostName   = "{{JOB_POST_NAME}}"
	PlaceholderJobPostURL    = "{{JOB_POST_URL}}"
	PlaceholderCVURL         = "{{CV_URL}}"
	PlaceholderProfileURL    = "{{PROFILE_URL}}"
)

type candidatePayload struct {
	Name        string `json:"name,omitempty"`
	Source      string `json:"source"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	CVURL       string `json:"cv_url,omitempty"`
	ProfileURL  string `json:"profile_url"`
	JobPost     string `json:"job_post,omitempty"`
}

// Build renders a recruiter template for one candidate and job post.
// Templates that do not place the candidate JSON themselves get it appended,
// so a prompt can never silently omit the candidate.
func Build(template string, c records.CandidateRaw, job records.JobPost) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", errors.New("prompt template is empty")
	}

	payload, err := json.MarshalIndent(candidatePayload{
		Name:        c.FullName,
		Source:      string(c.Source),
		LinkedInURL: c.LinkedInURL,
		CVURL:       c.CVURL,
		ProfileURL:  c.RawProfileURL,
		JobPost:     job.JobPostName,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate payload: %w", err)
	}

	prompt := template
	appendCandidate := !strings.Contains(prompt, PlaceholderCandidateJSON)

	prompt = strings.NewReplacer(
		PlaceholderCandidateJSON, string(payload),
		PlaceholderCandidateName, orNone(c.FullName),
		PlaceholderJobPostName, orNone(job.JobPostName),
		PlaceholderJobPostURL, orNone(job.GetOnBoardURL),
		PlaceholderCVURL, orNone(c.CVURL),
		PlaceholderProfileURL, orNone(c.RawProfileURL),
	).Replace(prompt)

	if appendCandidate {
		prompt = strings.TrimRight(prompt, "\n") + "\n\nCandidate:\n" + string(payload) + "\n"
	}
	return prompt, nil
}

func orNone(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "none"
	}
	return v
}
