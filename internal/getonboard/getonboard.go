// Package getonboard reads job posts and their applications from the
// GetOnBoard API and maps them to candidate records.
package getonboard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
)

const (
	apiURL    = "https://www.getonbrd.com/api/v0"
	userAgent = "spigell/hiring-pipeline"
	backend   = "getonboard"
	// Max value for applications per page.
	perPage = 100

	jobsPath = "/jobs"

	statePublished = "published"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Job is a job post as published on GetOnBoard.
type Job struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
	URL   string `json:"public_url"`
}

// JobPost maps the job to its stored form. Only published jobs are active.
func (j Job) JobPost() records.JobPost {
	return records.JobPost{
		JobPostID:     j.ID,
		JobPostName:   j.Title,
		Active:        j.State == statePublished,
		GetOnBoardURL: j.URL,
	}
}

// Application is one candidate applying to a job.
type Application struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	LinkedIn       string    `json:"linkedin_url"`
	CVURL          string    `json:"cv_url"`
	ProfileURL     string    `json:"profile_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// Candidate maps the application to a raw candidate record. The professional
// id identifies the person across jobs; the application id is used when the
// API omits it.
func (a Application) Candidate() records.CandidateRaw {
	sourceID := a.ProfessionalID
	if sourceID == "" {
		sourceID = a.ID
	}

	return records.CandidateRaw{
		Source:            records.SourceGetOnBoard,
		SourceCandidateID: sourceID,
		CreatedAt:         a.CreatedAt,
		FullName:          a.Name,
		Email:             a.Email,
		Phone:             a.Phone,
		LinkedInURL:       a.LinkedIn,
		CVURL:             a.CVURL,
		RawProfileURL:     a.ProfileURL,
	}
}

// GetJob fetches a single job post.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	endpoint := fmt.Sprintf("%s%s/%s", c.APIURL, jobsPath, url.PathEscape(jobID))

	var doc document
	if err := c.getJSON(ctx, endpoint, nil, &doc); err != nil {
		return nil, err
	}

	res, err := doc.single()
	if err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}

	job := &Job{}
	if err := decodeAttributes(res, job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, nil
}

// ListApplications returns the applications of a job from all pages.
func (c *Client) ListApplications(ctx context.Context, jobID string) ([]Application, error) {
	endpoint := fmt.Sprintf("%s%s/%s/applications", c.APIURL, jobsPath, url.PathEscape(jobID))
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))

	items, err := c.getItems(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}

	applications := make([]Application, 0, len(items))
	for _, item := range items {
		var app Application
		if err := decodeAttributes(item, &app); err != nil {
			return nil, fmt.Errorf("decode application %s: %w", item.ID, err)
		}
		applications = append(applications, app)
	}

	c.logger.Debug("fetched applications", zap.String("job_post_id", jobID), zap.Int("applications", len(applications)))
	return applications, nil
}
