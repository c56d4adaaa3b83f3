// Package lipsync talks to the external lip-sync generation service: job
// submission, status polling with escalating backoff, and artifact download.
// The core never inspects job internals beyond status and output reference.
package lipsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the observable state of a submitted job.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// PollResult is one observation of a job's state.
type PollResult struct {
	Status    Status
	OutputURL string
	Message   string
}

// Client is the lip-sync job capability.
type Client interface {
	// Submit starts a job for the staged video and audio references and
	// returns the job ID.
	Submit(ctx context.Context, videoURL, audioURL string) (string, error)

	// Poll observes a job's current state.
	Poll(ctx context.Context, jobID string) (PollResult, error)

	// Fetch downloads a finished job's output into destDir and returns the
	// local path.
	Fetch(ctx context.Context, outputURL, destDir string) (string, error)
}

// APIError represents an error response from the lip-sync service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lipsync API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx)
// are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient is the production client for the lip-sync HTTP API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient builds a client for the given service base URL.
func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type submitRequest struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type pollResponse struct {
	Status    string `json:"status"`
	OutputURL string `json:"output_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (c *HTTPClient) Submit(ctx context.Context, videoURL, audioURL string) (string, error) {
	body, err := json.Marshal(submitRequest{VideoURL: videoURL, AudioURL: audioURL})
	if err != nil {
		return "", fmt.Errorf("marshal submit payload: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/jobs", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("cannot parse submit response: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit response carries no job id")
	}

	if c.logger != nil {
		c.logger.Info("lip-sync job submitted", "job_id", resp.JobID)
	}
	return resp.JobID, nil
}

func (c *HTTPClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return PollResult{}, err
	}

	var resp pollResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return PollResult{}, fmt.Errorf("cannot parse poll response: %w", err)
	}

	result := PollResult{OutputURL: resp.OutputURL, Message: resp.Error}
	switch resp.Status {
	case "done", "completed", "succeeded":
		result.Status = StatusDone
	case "failed", "error":
		result.Status = StatusFailed
	default:
		// queued, pending, processing and friends all count as pending.
		result.Status = StatusPending
	}
	return result, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, outputURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("cannot create fetch dir: %w", err)
	}
	outPath := filepath.Join(destDir, "synced_"+uuid.NewString()[:8]+".mp4")

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("cannot create output file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("cannot download output: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("lip-sync output fetched", "path", outPath)
	}
	return outPath, nil
}

// Health probes the service health endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Castline-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// StubClient stands in when no lip-sync service is configured. Submissions
// fail immediately so sync-lane segments are reported as failed while the
// rest of the run proceeds.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (s *StubClient) Submit(ctx context.Context, videoURL, audioURL string) (string, error) {
	if s.logger != nil {
		s.logger.Warn("lip-sync stub: no service configured, submission rejected")
	}
	return "", fmt.Errorf("lip-sync service not configured")
}

func (s *StubClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	return PollResult{}, fmt.Errorf("lip-sync service not configured")
}

func (s *StubClient) Fetch(ctx context.Context, outputURL, destDir string) (string, error) {
	return "", fmt.Errorf("lip-sync service not configured")
}
