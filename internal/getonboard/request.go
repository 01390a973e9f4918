package getonboard

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/tables"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// resource is a JSON:API style resource object.
type resource struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type document struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

func (d document) single() (resource, error) {
	var res resource
	if err := json.Unmarshal(d.Data, &res); err != nil {
		return resource{}, err
	}
	return res, nil
}

func (d document) list() ([]resource, error) {
	var items []resource
	if len(d.Data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(d.Data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %s", e.Status)
}

// temporary reports whether the status is worth retrying later.
func (e *StatusError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// getItems makes GET requests to GetOnBoard and returns items from all pages.
func (c *Client) getItems(ctx context.Context, endpoint string, q url.Values) ([]resource, error) {
	var items []resource

	page := 1
	for {
		q.Set("page", strconv.Itoa(page))

		var doc document
		if err := c.getJSON(ctx, endpoint, q, &doc); err != nil {
			return nil, err
		}

		batch, err := doc.list()
		if err != nil {
			return nil, fmt.Errorf("decode page %d: %w", page, err)
		}
		items = append(items, batch...)

		if doc.Meta.TotalPages <= page || len(batch) == 0 {
			break
		}

		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", page, doc.Meta.TotalPages),
		))
		page++
	}

	return items, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	c.setHeaders(req)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	path := req.URL.Path
	resp, err := c.request(req)
	if err != nil {
		return tables.Wrap(backend, "get", path, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if serr.temporary() {
			return tables.Wrap(backend, "get", path, nil, serr)
		}
		return serr
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	if err := json.NewDecoder(reader).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
}

// decodeAttributes fills out from the resource attributes. Ids may arrive as
// numbers and are decoded into strings.
func decodeAttributes(res resource, out any) error {
	attrs := make(map[string]any, len(res.Attributes)+1)
	for k, v := range res.Attributes {
		attrs[k] = v
	}
	if _, ok := attrs["id"]; !ok {
		attrs["id"] = res.ID
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       timeHook,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}

func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s, _ := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound
}
