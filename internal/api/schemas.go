package api

import (
	"time"

	"github.com/castline/castline/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string              `json:"state"`
	LastError    string              `json:"last_error,omitempty"`
	RunsTotal    int                 `json:"runs_total"`
	RunsRunning  int                 `json:"runs_running"`
	ActiveRun    *RunResponse        `json:"active_run,omitempty"`
	Capabilities *CapabilityResponse `json:"capabilities,omitempty"`
}

type CapabilityResponse struct {
	HasFFmpeg        bool   `json:"has_ffmpeg"`
	HasFFprobe       bool   `json:"has_ffprobe"`
	LipsyncReachable bool   `json:"lipsync_reachable"`
	LastProbeAt      string `json:"last_probe_at,omitempty"`
}

type CreateRunRequest struct {
	ScriptPath string `json:"script_path"`
}

type CreateRunResponse struct {
	RunID string `json:"run_id"`
}

type RunResponse struct {
	ID            string `json:"id"`
	ScriptPath    string `json:"script_path"`
	Status        string `json:"status"`
	TotalSegments int    `json:"total_segments"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	ArtifactPath  string `json:"artifact_path,omitempty"`
	EDLPath       string `json:"edl_path,omitempty"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type RunSegmentResponse struct {
	SegmentID    string  `json:"segment_id"`
	Speaker      string  `json:"speaker"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Kind         string  `json:"kind"`
	Lane         string  `json:"lane"`
	Status       string  `json:"status"`
	ArtifactPath string  `json:"artifact_path,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type RunSegmentsResponse struct {
	Segments []RunSegmentResponse `json:"segments"`
}

func RunToResponse(run *store.Run) RunResponse {
	return RunResponse{
		ID:            run.ID,
		ScriptPath:    run.ScriptPath,
		Status:        run.Status,
		TotalSegments: run.TotalSegments,
		Succeeded:     run.Succeeded,
		Failed:        run.Failed,
		ArtifactPath:  run.ArtifactPath,
		EDLPath:       run.EDLPath,
		Error:         run.Error,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     run.UpdatedAt.Format(time.RFC3339),
	}
}

func SegmentToResponse(s *store.RunSegment) RunSegmentResponse {
	return RunSegmentResponse{
		SegmentID:    s.SegmentID,
		Speaker:      s.Speaker,
		Start:        s.Start,
		End:          s.End,
		Kind:         s.Kind,
		Lane:         s.Lane,
		Status:       s.Status,
		ArtifactPath: s.ArtifactPath,
		Error:        s.Error,
	}
}
