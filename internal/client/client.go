// Package client provides an HTTP client for the stem separation job service.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
)

// Sentinel errors for service calls.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrServer indicates the service answered with a non-2xx status.
	ErrServer = errors.New("server error")

	// ErrMalformedResponse indicates a body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrMissingJobID indicates a submit response without a job identifier.
	ErrMissingJobID = errors.New("missing job id in response")

	// ErrUnknownStatus indicates a status value outside the known set.
	ErrUnknownStatus = errors.New("unknown job status")
)

// Profile names the route layout exposed by a service deployment.
type Profile string

const (
	// ProfileTask is the celery-backed layout used by the desktop client.
	ProfileTask Profile = "task"
	// ProfileRequest is the queue-manager layout used by the web client.
	ProfileRequest Profile = "request"
)

// routes holds the path templates for one profile. %s is the escaped id.
type routes struct {
	submit string
	status string
	result string
}

var profileRoutes = map[Profile]routes{
	ProfileTask: {
		submit: "/api/video/id/%s",
		status: "/api/task/status/%s",
		result: "/api/task/result/%s",
	},
	ProfileRequest: {
		submit: "/api/request/%s",
		status: "/api/status/%s",
		result: "/api/download/%s",
	},
}

// ParseProfile validates a profile name. Empty selects ProfileTask.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProfileTask, nil
	}
	if _, ok := profileRoutes[p]; !ok {
		return "", fmt.Errorf("unknown api profile %q", s)
	}
	return p, nil
}

// Client talks to the job service over HTTP.
type Client struct {
	baseURL    string
	routes     routes
	httpClient *http.Client
}

// New creates a new service client.
// If baseURL is empty, uses FLBT_SERVER_URL env var or defaults to localhost:8000.
// The transport timeout can be configured via FLBT_CLIENT_TIMEOUT (default 2m); per-call
// deadlines come from the caller's context.
func New(baseURL string, profile Profile) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("FLBT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("FLBT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	r, ok := profileRoutes[profile]
	if !ok {
		r = profileRoutes[ProfileTask]
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		routes:  r,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitResult is the service answer to a job submission.
type SubmitResult struct {
	JobID  string
	Status models.Status
}

// StatusResult is the service answer to a status query.
type StatusResult struct {
	Status       models.Status
	ErrorMessage string
}

// submitResponse accepts both profiles' spellings of the job identifier.
type submitResponse struct {
	TaskID  string  `json:"task_id"`
	JobID   string  `json:"job_id"`
	VideoID string  `json:"video_id"`
	Status  *string `json:"status"`
}

type statusResponse struct {
	TaskID string  `json:"task_id"`
	Status string  `json:"status"`
	Result *string `json:"result"`
	Error  *string `json:"error"`
}

// Submit asks the service to process externalID.
func (c *Client) Submit(ctx context.Context, externalID string) (*SubmitResult, error) {
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf(c.routes.submit, url.PathEscape(externalID)))
	if err != nil {
		return nil, err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	jobID := firstNonEmpty(resp.TaskID, resp.JobID, resp.VideoID)
	if jobID == "" {
		return nil, ErrMissingJobID
	}

	// The desktop service only returns the task id; a fresh task is pending.
	status := models.StatusPending
	if resp.Status != nil {
		status, err = models.ParseStatus(*resp.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownStatus, err)
		}
	}

	return &SubmitResult{JobID: jobID, Status: status}, nil
}

// Status queries the current state of jobID.
func (c *Client) Status(ctx context.Context, jobID string) (*StatusResult, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf(c.routes.status, url.PathEscape(jobID)))
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	status, err := models.ParseStatus(resp.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownStatus, err)
	}

	result := &StatusResult{Status: status}
	if resp.Error != nil {
		result.ErrorMessage = *resp.Error
	}
	return result, nil
}

// Download opens the artifact stream for jobID. The caller must close it.
func (c *Client) Download(ctx context.Context, jobID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf(c.routes.result, url.PathEscape(jobID)), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, serverError(resp)
	}
	return resp.Body, nil
}

// Health probes the service liveness endpoint.
func (c *Client) Health(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/health")
	if err != nil {
		return "", err
	}

	// FastAPI encodes plain string returns as JSON strings.
	var msg string
	if err := json.Unmarshal(body, &msg); err == nil {
		return msg, nil
	}
	return strings.TrimSpace(string(body)), nil
}

// do sends a request without body and returns the full response body.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// maxErrorBody bounds how much of an error body ends up in messages.
const maxErrorBody = 512

func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: %s - %s", ErrServer, resp.Status, strings.TrimSpace(string(body)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
