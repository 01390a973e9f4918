// Package teamtailor pushes evaluated candidates to the TeamTailor ATS
// through its JSON:API.
package teamtailor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
)

const (
	apiURL     = "https://api.teamtailor.com/v1"
	apiVersion = "20240904"
	userAgent  = "spigell/hiring-pipeline"
	backend    = "teamtailor"

	tagSource = "getonboard"
)

type Config struct {
	Token      string
	APIURL     string
	APIVersion string
	// Jobs maps job_post_id to a TeamTailor job id. Candidates for unmapped
	// jobs are created without a job application.
	Jobs    map[string]string
	Timeout time.Duration
}

type Client struct {
	token      string
	apiVersion string
	jobs       map[string]string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		token:      cfg.Token,
		apiVersion: cfg.APIVersion,
		jobs:       cfg.Jobs,
		logger:     logger,
		APIURL:     strings.TrimRight(cfg.APIURL, "/"),
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if c.APIURL == "" {
		c.APIURL = apiURL
	}
	if c.apiVersion == "" {
		c.apiVersion = apiVersion
	}
	if c.HTTPClient.Timeout <= 0 {
		c.HTTPClient.Timeout = 15 * time.Second
	}
	return c
}

// Submission is everything the ATS receives for one evaluation.
type Submission struct {
	Candidate  records.CandidateRaw
	Evaluation records.CandidateEvaluation
	JobPost    records.JobPost
}

// Push creates (or reuses, matched by email) the TeamTailor candidate, applies
// it to the mapped job and attaches the evaluation as a note. It returns the
// TeamTailor candidate id.
func (c *Client) Push(ctx context.Context, s Submission) (string, error) {
	candidateID, err := c.findCandidate(ctx, s.Candidate.Email)
	if err != nil {
		return "", err
	}

	if candidateID == "" {
		candidateID, err = c.createCandidate(ctx, s)
		if err != nil {
			return "", err
		}
		c.logger.Info("teamtailor candidate created",
			zap.String("teamtailor_candidate_id", candidateID),
			zap.String(records.FieldCandidateID, s.Candidate.CandidateID),
		)
	}

	if jobID := c.jobs[s.JobPost.JobPostID]; jobID != "" {
		if err := c.createJobApplication(ctx, candidateID, jobID); err != nil {
			return "", err
		}
	}

	if err := c.createNote(ctx, candidateID, note(s)); err != nil {
		return "", err
	}

	return candidateID, nil
}

func (c *Client) findCandidate(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("filter[email]", email)

	var doc document
	if err := c.do(ctx, http.MethodGet, "/candidates", q, nil, &doc); err != nil {
		return "", err
	}

	items, err := doc.list()
	if err != nil {
		return "", fmt.Errorf("decode candidates: %w", err)
	}
	if len(items) == 0 {
		return "", nil
	}
	return items[0].ID, nil
}

func (c *Client) createCandidate(ctx context.Context, s Submission) (string, error) {
	first, last := splitName(s.Candidate.FullName)

	attrs := map[string]any{
		"first-name": first,
		"last-name":  last,
		"email":      s.Candidate.Email,
		"sourced":    true,
		"tags":       []string{tagSource, "fit-" + string(s.Evaluation.FitLabel)},
	}
	if s.Candidate.Phone != "" {
		attrs["phone"] = s.Candidate.Phone
	}
	if s.Candidate.LinkedInURL != "" {
		attrs["linkedin-url"] = s.Candidate.LinkedInURL
	}
	if s.Candidate.CVURL != "" {
		attrs["resume"] = s.Candidate.CVURL
	}

	body := document{Data: mustRaw(resource{Type: "candidates", Attributes: attrs})}

	var created document
	if err := c.do(ctx, http.MethodPost, "/candidates", nil, body, &created); err != nil {
		return "", err
	}

	res, err := created.single()
	if err != nil {
		return "", fmt.Errorf("decode created candidate: %w", err)
	}
	if res.ID == "" {
		return "", fmt.Errorf("teamtailor returned no candidate id")
	}
	return res.ID, nil
}

func (c *Client) createJobApplication(ctx context.Context, candidateID, jobID string) error {
	body := document{Data: mustRaw(resource{
		Type: "job-applications",
		Relationships: map[string]relationship{
			"candidate": {Data: reference{Type: "candidates", ID: candidateID}},
			"job":       {Data: reference{Type: "jobs", ID: jobID}},
		},
	})}

	err := c.do(ctx, http.MethodPost, "/job-applications", nil, body, nil)
	if isConflict(err) {
		// The candidate already applied; a previous push got this far.
		return nil
	}
	return err
}

func (c *Client) createNote(ctx context.Context, candidateID, text string) error {
	body := document{Data: mustRaw(resource{
		Type:       "notes",
		Attributes: map[string]any{"note": text},
		Relationships: map[string]relationship{
			"candidate": {Data: reference{Type: "candidates", ID: candidateID}},
		},
	})}

	return c.do(ctx, http.MethodPost, "/notes", nil, body, nil)
}

func note(s Submission) string {
	ev := s.Evaluation

	var b strings.Builder
	fmt.Fprintf(&b, "AI evaluation for %s (prompt %s)\n", s.JobPost.JobPostName, ev.PromptVersion)
	fmt.Fprintf(&b, "Fit: %s, score %d/%d\n", ev.FitLabel, ev.FitScore, records.MaxFitScore)
	fmt.Fprintf(&b, "Reasons: %s\n", ev.Reasons)
	if ev.RedFlags != "" {
		fmt.Fprintf(&b, "Red flags: %s\n", ev.RedFlags)
	}
	if s.Candidate.RawProfileURL != "" {
		fmt.Fprintf(&b, "Profile: %s\n", s.Candidate.RawProfileURL)
	}
	return strings.TrimSpace(b.String())
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
