// Package client is a small HTTP client for the timeline API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"narrative-timeline/backend/pkg/models"
)

// ErrNotFound is returned when the server has no timeline with the given id.
var ErrNotFound = errors.New("timeline not found")

// APIError is a non-2xx reply decoded from its problem+json body.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client for the API at baseURL. A non-empty token is sent as
// a Bearer credential.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Create(ctx context.Context, query string) (*models.TimelineStatus, error) {
	var st models.TimelineStatus
	if err := c.do(ctx, http.MethodPost, "/api/timelines/create", models.TimelineCreate{Query: query}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Status(ctx context.Context, id string) (*models.TimelineStatus, error) {
	var st models.TimelineStatus
	if err := c.do(ctx, http.MethodGet, "/api/timelines/"+url.PathEscape(id)+"/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Get(ctx context.Context, id string) (*models.Timeline, error) {
	var t models.Timeline
	if err := c.do(ctx, http.MethodGet, "/api/timelines/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Wait polls Status every interval until the timeline reaches a terminal
// status or ctx is done. onPoll, when set, sees every observed status.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration, onPoll func(*models.TimelineStatus)) (*models.TimelineStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(st)
		}
		if st.Status.IsTerminal() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var problem models.ProblemDetails
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &problem) != nil || problem.Detail == "" {
			problem.Detail = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: problem.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
