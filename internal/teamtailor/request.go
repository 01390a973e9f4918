package teamtailor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/tables"
	"github.com/spigell/hiring-pipeline/internal/utils"
)

const contentType = "application/vnd.api+json"

type reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data reference `json:"data"`
}

type resource struct {
	ID            string                  `json:"id,omitempty"`
	Type          string                  `json:"type"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type document struct {
	Data json.RawMessage `json:"data"`
}

func (d document) single() (resource, error) {
	var res resource
	err := json.Unmarshal(d.Data, &res)
	return res, err
}

func (d document) list() ([]resource, error) {
	var items []resource
	if len(d.Data) == 0 {
		return nil, nil
	}
	err := json.Unmarshal(d.Data, &items)
	return items, err
}

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return data
}

// StatusError is a non-2xx answer from TeamTailor.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status: %s", e.Status)
	}
	return fmt.Sprintf("bad status: %s: %s", e.Status, e.Body)
}

func isConflict(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusConflict
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, target any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+path, payload)
	if err != nil {
		return err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("method", method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return tables.Wrap(backend, method, path, nil, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tables.Wrap(backend, method, path, nil, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: utils.TruncateForLog(string(data), 300)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return tables.Wrap(backend, method, path, nil, serr)
		}
		return serr
	}

	if target == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Token token=%s", c.token))
	req.Header.Set("X-Api-Version", c.apiVersion)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	if req.Body != nil {
		req.Header.Set("Content-Type", contentType)
	}
}
