package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/castline/castline/internal/engine"
	"github.com/castline/castline/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/runs", listRunsHandler(cfg))
		r.Post("/runs", createRunHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))
		r.Get("/runs/{id}/segments", getRunSegmentsHandler(cfg))
		r.Get("/runs/{id}/artifact", getRunArtifactHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		runs, err := cfg.Repository.ListRuns(ctx, 10)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		state := "idle"
		var activeRun *RunResponse
		runsRunning := 0
		lastError := ""

		for _, run := range runs {
			if run.Status == store.RunStatusRunning {
				state = "composing"
				resp := RunToResponse(run)
				activeRun = &resp
				runsRunning++
			}
			if run.Status == store.RunStatusFailed && lastError == "" {
				lastError = run.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:       state,
			LastError:   lastError,
			RunsTotal:   len(runs),
			RunsRunning: runsRunning,
			ActiveRun:   activeRun,
		}

		if cfg.Doctor != nil {
			caps := cfg.Doctor.Get(ctx)
			if caps != nil {
				resp.Capabilities = &CapabilityResponse{
					HasFFmpeg:        caps.HasFFmpeg,
					HasFFprobe:       caps.HasFFprobe,
					LipsyncReachable: caps.LipsyncReachable,
					LastProbeAt:      caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := cfg.Repository.ListRuns(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ScriptPath == "" {
			WriteError(w, http.StatusBadRequest, "script_path is required", "BAD_REQUEST")
			return
		}
		if _, err := os.Stat(req.ScriptPath); err != nil {
			WriteError(w, http.StatusBadRequest, "script not found", "NOT_FOUND")
			return
		}

		runID := engine.NewRunID()
		go func() {
			if _, err := cfg.Engine.Generate(context.Background(), runID, req.ScriptPath); err != nil {
				cfg.Logger.Error("run failed", "run_id", runID, "error", err)
			}
		}()

		WriteJSON(w, http.StatusAccepted, CreateRunResponse{RunID: runID})
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := cfg.Repository.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get run", "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}

func getRunSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")
		run, err := cfg.Repository.GetRun(r.Context(), runID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get run", "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		segments, err := cfg.Repository.GetSegments(r.Context(), runID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get segments", "INTERNAL_ERROR")
			return
		}

		resp := RunSegmentsResponse{Segments: make([]RunSegmentResponse, len(segments))}
		for i, s := range segments {
			resp.Segments[i] = SegmentToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunArtifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := cfg.Repository.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get run", "INTERNAL_ERROR")
			return
		}
		if run == nil || run.ArtifactPath == "" {
			WriteError(w, http.StatusNotFound, "artifact not found", "NOT_FOUND")
			return
		}
		if _, err := os.Stat(run.ArtifactPath); err != nil {
			WriteError(w, http.StatusNotFound, "artifact file missing", "NOT_FOUND")
			return
		}

		// ServeFile handles Range requests for scrubbing playback.
		http.ServeFile(w, r, run.ArtifactPath)
	}
}
