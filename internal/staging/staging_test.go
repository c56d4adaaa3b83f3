package staging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestHTTPStager_Stage(t *testing.T) {
	var gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/files" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotFilename = header.Filename
		gotContent = string(data)

		json.NewEncoder(w).Encode(stageResponse{ID: "f_1", URL: "https://cdn.example/f_1"})
	}))
	defer srv.Close()

	stager := NewHTTPStager(srv.URL, "tok", testLogger())
	h, err := stager.Stage(context.Background(), writeTempFile(t, "clip-data"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if h.ID != "f_1" || h.URL != "https://cdn.example/f_1" {
		t.Fatalf("handle = %+v", h)
	}
	if gotFilename != "clip.mp4" || gotContent != "clip-data" {
		t.Fatalf("uploaded %q with content %q", gotFilename, gotContent)
	}
}

func TestHTTPStager_StageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "full", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	stager := NewHTTPStager(srv.URL, "tok", testLogger())
	_, err := stager.Stage(context.Background(), writeTempFile(t, "x"))
	if err == nil || !strings.Contains(err.Error(), "507") {
		t.Fatalf("error = %v, want HTTP 507", err)
	}
}

func TestHTTPStager_StageMissingFile(t *testing.T) {
	stager := NewHTTPStager("http://unused", "tok", testLogger())
	_, err := stager.Stage(context.Background(), "/nonexistent/clip.mp4")
	if err == nil {
		t.Fatal("expected error for missing local file")
	}
}

func TestHTTPStager_Unstage(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("method = %s, want DELETE", r.Method)
		}
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	stager := NewHTTPStager(srv.URL, "tok", testLogger())
	if err := stager.Unstage(context.Background(), Handle{ID: "f_1"}); err != nil {
		t.Fatalf("Unstage: %v", err)
	}
	if gotPath != "/v1/files/f_1" {
		t.Fatalf("delete path = %q", gotPath)
	}
}

func TestHTTPStager_UnstageToleratesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	stager := NewHTTPStager(srv.URL, "tok", testLogger())
	if err := stager.Unstage(context.Background(), Handle{ID: "f_1"}); err != nil {
		t.Fatalf("Unstage on 404 = %v, want nil", err)
	}
}

func TestHTTPStager_UnstageEmptyHandle(t *testing.T) {
	stager := NewHTTPStager("http://unused", "tok", testLogger())
	if err := stager.Unstage(context.Background(), Handle{}); err != nil {
		t.Fatalf("Unstage empty handle = %v, want nil", err)
	}
}

func TestStubStager(t *testing.T) {
	stub := NewStubStager(testLogger())
	path := writeTempFile(t, "x")

	h, err := stub.Stage(context.Background(), path)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !strings.HasPrefix(h.URL, "file:///") {
		t.Fatalf("stub URL = %q, want file:// absolute path", h.URL)
	}
	if err := stub.Unstage(context.Background(), h); err != nil {
		t.Fatalf("Unstage: %v", err)
	}
}
