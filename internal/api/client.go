// Package api provides the HTTP client for the podscrub backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/podscrub/podscrub/internal/metrics"
	"github.com/podscrub/podscrub/internal/models"
)

// Client talks to the ad-removal backend's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses PODSCRUB_SERVER_URL env var or defaults to localhost:5001.
// Timeout can be configured via PODSCRUB_CLIENT_TIMEOUT env var (default 30s).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PODSCRUB_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:5001"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("PODSCRUB_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TriggerStatus fetches episode status through the public trigger link,
// authorized by the feed access token pair.
func (c *Client) TriggerStatus(ctx context.Context, guid, feedToken, feedSecret string) Outcome {
	q := url.Values{}
	q.Set("guid", guid)
	q.Set("feed_token", feedToken)
	q.Set("feed_secret", feedSecret)
	return c.fetchStatus(ctx, "/api/trigger/status?"+q.Encode())
}

// EpisodeStatus fetches the processing status of one episode for an
// authenticated console session.
func (c *Client) EpisodeStatus(ctx context.Context, guid string) Outcome {
	return c.fetchStatus(ctx, "/api/posts/"+url.PathEscape(guid)+"/status")
}

// fetchStatus performs one status GET and classifies the result. It never
// returns an error: every transport-level failure becomes an Outcome.
func (c *Client) fetchStatus(ctx context.Context, path string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return NetworkFailure(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NetworkFailure(fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NetworkFailure(fmt.Errorf("read response: %w", err))
	}

	return Classify(resp.StatusCode, body)
}

// Classify maps an HTTP status code plus body onto a tagged outcome.
// Transport status wins over body content: a 5xx with a parseable terminal
// payload is still a server error.
func Classify(code int, body []byte) Outcome {
	switch {
	case code >= 500:
		return ServerError(code)
	case code >= 400:
		// Keep the payload when it parses so its message can surface.
		var p models.StatusPayload
		if err := json.Unmarshal(body, &p); err == nil {
			return ClientError(code, &p)
		}
		return ClientError(code, nil)
	case code >= 200 && code < 300:
		var p models.StatusPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return NetworkFailure(fmt.Errorf("unmarshal status payload: %w", err))
		}
		return Success(&p)
	default:
		return NetworkFailure(fmt.Errorf("unexpected status: %d", code))
	}
}

// ProcessEpisode starts ad-removal processing for an episode.
func (c *Client) ProcessEpisode(ctx context.Context, guid string) (*models.StatusPayload, error) {
	var p models.StatusPayload
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(guid)+"/process", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReprocessEpisode cancels any active job for an episode, clears its
// processing state and starts from scratch.
func (c *Client) ReprocessEpisode(ctx context.Context, guid string) (*models.StatusPayload, error) {
	var p models.StatusPayload
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(guid)+"/reprocess", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CancelJob requests cancellation of a job by ID.
func (c *Client) CancelJob(ctx context.Context, jobID string) (*models.StatusPayload, error) {
	var p models.StatusPayload
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/cancel", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveJobs lists currently pending and running jobs.
func (c *Client) ActiveJobs(ctx context.Context, limit int) (*models.JobListPayload, error) {
	path := "/api/jobs/active"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var p models.JobListPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ManagerStatus fetches the manager-level run summary. Run is nil when no
// processing run exists.
func (c *Client) ManagerStatus(ctx context.Context) (*models.ManagerStatusPayload, error) {
	var p models.ManagerStatusPayload
	if err := c.do(ctx, http.MethodGet, "/api/job-manager/status", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// HistoryOptions filter the job-history listing.
type HistoryOptions struct {
	Limit         int
	Status        string
	TriggerSource string
}

// JobHistory fetches completed and failed jobs with summary stats.
func (c *Client) JobHistory(ctx context.Context, opts HistoryOptions) (*models.HistoryPayload, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.TriggerSource != "" {
		q.Set("trigger_source", opts.TriggerSource)
	}
	path := "/api/jobs/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var p models.HistoryPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ServerMetrics fetches the server's in-memory runtime statistics.
func (c *Client) ServerMetrics(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/metrics", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// do performs one JSON request/response cycle for the non-polling endpoints.
func (c *Client) do(ctx context.Context, method, path string, reqBody, result any) error {
	var reader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error bodies carry a message/error_code pair; prefer it over the
		// raw status line.
		var p models.StatusPayload
		if jsonErr := json.Unmarshal(body, &p); jsonErr == nil && p.Message != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, p.Message)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
