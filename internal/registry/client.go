// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry talks to the API registry that stores typed attributes
// against versioned API resources.
//
// All calls are blocking round-trips with no local caching. Each request
// carries a bearer credential from the configured oauth2.TokenSource and is
// bounded by the client timeout; a timeout is reported as ErrUnavailable and
// never retried here.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 1 << 20

// Options configures a Client.
type Options struct {
	// Endpoint is the registry base URL, without the /v1 suffix.
	Endpoint string
	Project  string
	Location string

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration

	// TokenSource supplies bearer credentials. Ignored when HTTPClient is set.
	TokenSource oauth2.TokenSource

	// HTTPClient overrides the authenticated client.
	HTTPClient *http.Client
}

// Client is the attribute store and registration client.
type Client struct {
	base     string
	project  string
	location string
	timeout  time.Duration
	http     *http.Client
}

// New returns a Client. Project and location are required.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Project) == "" {
		return nil, errors.New("registry: project is required")
	}
	if strings.TrimSpace(opts.Location) == "" {
		return nil, errors.New("registry: location is required")
	}
	if opts.Endpoint == "" {
		return nil, errors.New("registry: endpoint is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		if opts.TokenSource == nil {
			return nil, errors.New("registry: token source is required")
		}
		hc = oauth2.NewClient(context.Background(), opts.TokenSource)
	}

	to := opts.Timeout
	if to <= 0 {
		to = 30 * time.Second
	}

	return &Client{
		base:     strings.TrimRight(opts.Endpoint, "/"),
		project:  opts.Project,
		location: opts.Location,
		timeout:  to,
		http:     hc,
	}, nil
}

func (c *Client) locationPath() string {
	return "projects/" + url.PathEscape(c.project) + "/locations/" + url.PathEscape(c.location)
}

// AttributeName is the fully qualified resource name of an attribute, the
// key used in a version's attribute map.
func (c *Client) AttributeName(attributeID string) string {
	return c.locationPath() + "/attributes/" + url.PathEscape(attributeID)
}

func (c *Client) apiPath(apiID string) string {
	return c.locationPath() + "/apis/" + url.PathEscape(apiID)
}

func (c *Client) versionPath(ref VersionRef) string {
	return c.apiPath(ref.APIID) + "/versions/" + url.PathEscape(ref.VersionID)
}

// response is a fully read registry answer.
type response struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *response) notFound() bool {
	return r.StatusCode == http.StatusNotFound
}

func (r *response) conflict() bool {
	return r.StatusCode == http.StatusConflict
}

func (r *response) statusError(op string) error {
	return &StatusError{
		Op:         op,
		Method:     r.Method,
		URL:        r.URL,
		StatusCode: r.StatusCode,
		Body:       strings.TrimSpace(string(r.Body)),
	}
}

func (r *response) decode(op string, v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// send performs one round-trip. Only transport failures return an error;
// every HTTP status is handed back for the caller to classify.
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	u := c.base + "/v1/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	t := timeout.New[*response](timeout.Config{DefaultTimeout: c.timeout})
	resp, err := t.Execute(ctx, c.timeout, func(ctx context.Context) (*response, error) {
		var rd io.Reader = http.NoBody
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return &response{Method: method, URL: u, StatusCode: res.StatusCode, Body: data}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	slog.Debug("registry: response", "op", op, "method", method, "url", u, "status", resp.StatusCode)
	return resp, nil
}

// createOutcome classifies the answer to a create call. A conflict means a
// concurrent writer created the resource first and counts as success.
func createOutcome(resp *response) (EnsureResult, bool) {
	switch {
	case resp.ok():
		return Created, true
	case resp.conflict():
		return AlreadyExists, true
	default:
		return 0, false
	}
}
