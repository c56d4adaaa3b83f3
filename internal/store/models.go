package store

import "time"

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"

	SegmentStatusPending   = "pending"
	SegmentStatusCompleted = "completed"
	SegmentStatusFailed    = "failed"

	LaneSync  = "sync"
	LanePlain = "plain"
)

type Run struct {
	ID            string    `json:"id"`
	ScriptPath    string    `json:"script_path"`
	Status        string    `json:"status"`
	TotalSegments int       `json:"total_segments"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	ArtifactPath  string    `json:"artifact_path,omitempty"`
	EDLPath       string    `json:"edl_path,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RunSegment struct {
	RunID        string  `json:"run_id"`
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

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
