// Package media runs ffmpeg/ffprobe subprocesses behind the Operator
// contract the engine consumes: deterministic segment extraction,
// concatenation, and probing, with bounded stderr capture for diagnostics.
package media

import (
	"context"
	"fmt"
	"time"
)

// Dimensions holds a probed video frame size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Operator is the media operation capability. Implementations must be
// deterministic given identical inputs; failures carry a human-readable
// message and propagate as opaque errors.
type Operator interface {
	// ExtractSegment cuts [start, end) seconds out of the source file and
	// returns the path of the produced clip.
	ExtractSegment(ctx context.Context, sourcePath string, start, end float64) (string, error)

	// Concatenate joins the ordered clips into one output file.
	Concatenate(ctx context.Context, orderedPaths []string, outputPath string) error

	// ProbeDuration returns the container duration in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// ProbeDimensions returns the video stream's frame size.
	ProbeDimensions(ctx context.Context, path string) (Dimensions, error)
}

// OperationError wraps a failed media subprocess with its stderr tail.
type OperationError struct {
	Op         string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *OperationError) Error() string {
	if e.StderrTail != "" {
		return fmt.Sprintf("media %s failed: %v: %s", e.Op, e.Err, e.StderrTail)
	}
	return fmt.Sprintf("media %s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Config holds the operator's configuration.
type Config struct {
	FFmpegPath     string        // path to ffmpeg binary; empty = auto-detect
	FFprobePath    string        // path to ffprobe binary; empty = auto-detect
	WorkDir        string        // scratch dir for produced clips
	ExtractTimeout time.Duration // timeout per extraction
	ConcatTimeout  time.Duration // timeout for final concatenation
	ProbeTimeout   time.Duration // timeout per probe
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(workDir string) Config {
	return Config{
		WorkDir:        workDir,
		ExtractTimeout: 5 * time.Minute,
		ConcatTimeout:  10 * time.Minute,
		ProbeTimeout:   30 * time.Second,
	}
}
