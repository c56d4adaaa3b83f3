// Package staging hands local files to services that need externally
// reachable URLs. Handles are best-effort cleaned at run end; cleanup
// failures are logged, never fatal.
package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handle references one staged file.
type Handle struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Stager is the asset staging capability.
type Stager interface {
	// Stage uploads a local file and returns a sharable reference.
	Stage(ctx context.Context, localPath string) (Handle, error)

	// Unstage removes a previously staged file.
	Unstage(ctx context.Context, h Handle) error
}

// HTTPStager uploads files to a staging HTTP service via multipart POST.
type HTTPStager struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPStager(baseURL, token string, logger *slog.Logger) *HTTPStager {
	return &HTTPStager{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

type stageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *HTTPStager) Stage(ctx context.Context, localPath string) (Handle, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Handle{}, fmt.Errorf("cannot open file for staging: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return Handle{}, fmt.Errorf("cannot build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Handle{}, fmt.Errorf("cannot read file for staging: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Handle{}, fmt.Errorf("cannot finalise upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/files", &body)
	if err != nil {
		return Handle{}, fmt.Errorf("create stage request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-Castline-Request-Id", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Handle{}, fmt.Errorf("stage request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Handle{}, fmt.Errorf("staging service returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var sr stageResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return Handle{}, fmt.Errorf("cannot parse stage response: %w", err)
	}
	if sr.URL == "" {
		return Handle{}, fmt.Errorf("stage response carries no URL")
	}

	if s.logger != nil {
		s.logger.Info("file staged", "id", sr.ID, "file", filepath.Base(localPath))
	}
	return Handle{ID: sr.ID, URL: sr.URL}, nil
}

func (s *HTTPStager) Unstage(ctx context.Context, h Handle) error {
	if h.ID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/v1/files/"+h.ID, nil)
	if err != nil {
		return fmt.Errorf("create unstage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unstage request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || (resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound) {
		return fmt.Errorf("staging service returned HTTP %d on delete", resp.StatusCode)
	}
	return nil
}

// StubStager hands out file:// URLs for local development where the
// lip-sync service can read the filesystem directly.
type StubStager struct {
	logger *slog.Logger
}

func NewStubStager(logger *slog.Logger) *StubStager {
	return &StubStager{logger: logger}
}

func (s *StubStager) Stage(ctx context.Context, localPath string) (Handle, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return Handle{}, err
	}
	if s.logger != nil {
		s.logger.Debug("staging stub: returning local file URL", "path", abs)
	}
	return Handle{ID: "", URL: "file://" + abs}, nil
}

func (s *StubStager) Unstage(ctx context.Context, h Handle) error {
	return nil
}
