package getonboard

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(zaptest.NewLogger(t), "secret")
	c.APIURL = srv.URL
	c.HTTPClient = srv.Client()
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/backend-go", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		writeJSON(w, map[string]any{
			"data": map[string]any{
				"id":   "backend-go",
				"type": "job",
				"attributes": map[string]any{
					"title":      "Backend Go Engineer",
					"state":      "published",
					"public_url": "https://www.getonbrd.com/jobs/backend-go",
				},
			},
		})
	})

	job, err := c.GetJob(context.Background(), "backend-go")
	require.NoError(t, err)
	assert.Equal(t, records.JobPost{
		JobPostID:     "backend-go",
		JobPostName:   "Backend Go Engineer",
		Active:        true,
		GetOnBoardURL: "https://www.getonbrd.com/jobs/backend-go",
	}, job.JobPost())
}

func TestListApplicationsFollowsPages(t *testing.T) {
	var pages []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/J1/applications", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		var data []map[string]any
		switch page {
		case "1":
			data = []map[string]any{{
				"id":   "app-1",
				"type": "application",
				"attributes": map[string]any{
					"professional_id": 42,
					"name":            "Ada Lovelace",
					"email":           "ada@example.com",
					"profile_url":     "https://www.getonbrd.com/p/ada",
					"created_at":      "2025-02-01T10:00:00Z",
				},
			}}
		case "2":
			data = []map[string]any{{
				"id":   "app-2",
				"type": "application",
				"attributes": map[string]any{
					"name":        "Grace Hopper",
					"email":       "grace@example.com",
					"profile_url": "https://www.getonbrd.com/p/grace",
					"created_at":  "",
				},
			}}
		}
		writeJSON(w, map[string]any{
			"data": data,
			"meta": map[string]any{"total_pages": 2},
		})
	})

	apps, err := c.ListApplications(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, apps, 2)

	ada := apps[0].Candidate()
	assert.Equal(t, records.SourceGetOnBoard, ada.Source)
	assert.Equal(t, "42", ada.SourceCandidateID)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), ada.CreatedAt)

	grace := apps[1].Candidate()
	assert.Equal(t, "app-2", grace.SourceCandidateID, "falls back to the application id")
	assert.True(t, grace.CreatedAt.IsZero())
}

func TestGzipResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_ = json.NewEncoder(gz).Encode(map[string]any{
			"data": map[string]any{"id": "J1", "attributes": map[string]any{"title": "Data", "state": "closed"}},
		})
	})

	job, err := c.GetJob(context.Background(), "J1")
	require.NoError(t, err)
	assert.False(t, job.JobPost().Active)
}

func TestErrorStatuses(t *testing.T) {
	status := http.StatusServiceUnavailable
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	_, err := c.ListApplications(context.Background(), "J1")
	require.Error(t, err)
	assert.True(t, tables.IsRetryable(err))

	var terr *tables.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, backend, terr.Backend)
	assert.Equal(t, "/jobs/J1/applications", terr.Table)

	status = http.StatusNotFound
	_, err = c.GetJob(context.Background(), "J404")
	require.Error(t, err)
	assert.False(t, tables.IsRetryable(err))
	assert.True(t, IsNotFound(err))
}
