package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// FFmpegOperator is the production Operator implementation, invoking ffmpeg
// and ffprobe as subprocesses.
type FFmpegOperator struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewOperator resolves the ffmpeg/ffprobe binaries and prepares the work
// directory.
func NewOperator(cfg Config, logger *slog.Logger) (*FFmpegOperator, error) {
	ffmpeg, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}
	ffprobe, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create work dir: %w", err)
	}

	if logger != nil {
		logger.Info("media operator initialised",
			"ffmpeg", ffmpeg,
			"ffprobe", ffprobe,
			"work_dir", cfg.WorkDir,
		)
	}

	return &FFmpegOperator{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe, logger: logger}, nil
}

// WorkDir returns the scratch directory produced clips land in.
func (o *FFmpegOperator) WorkDir() string {
	return o.cfg.WorkDir
}

func (o *FFmpegOperator) ExtractSegment(ctx context.Context, sourcePath string, start, end float64) (string, error) {
	if end <= start {
		return "", fmt.Errorf("invalid extraction window [%.3f,%.3f)", start, end)
	}
	outPath := filepath.Join(o.cfg.WorkDir, "clip_"+uuid.NewString()[:8]+".mp4")

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
	defer cancel()

	args := buildExtractArgs(sourcePath, outPath, start, end)
	if err := o.exec(ctx, "extract", o.ffmpeg, args); err != nil {
		return "", err
	}
	return outPath, nil
}

func (o *FFmpegOperator) Concatenate(ctx context.Context, orderedPaths []string, outputPath string) error {
	if len(orderedPaths) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}

	listPath := filepath.Join(o.cfg.WorkDir, "concat_"+uuid.NewString()[:8]+".txt")
	if err := writeConcatList(listPath, orderedPaths); err != nil {
		return fmt.Errorf("cannot write concat list: %w", err)
	}
	defer os.Remove(listPath)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("cannot create output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ConcatTimeout)
	defer cancel()

	return o.exec(ctx, "concatenate", o.ffmpeg, buildConcatArgs(listPath, outputPath))
}

func (o *FFmpegOperator) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()

	out, err := o.execOutput(ctx, "probe_duration", o.ffprobe, buildDurationArgs(path))
	if err != nil {
		return 0, err
	}
	return parseDuration(out)
}

func (o *FFmpegOperator) ProbeDimensions(ctx context.Context, path string) (Dimensions, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()

	out, err := o.execOutput(ctx, "probe_dimensions", o.ffprobe, buildDimensionsArgs(path))
	if err != nil {
		return Dimensions{}, err
	}
	return parseDimensions(out)
}

// exec runs a subprocess whose useful output is a file, keeping only a
// bounded stderr tail for diagnostics.
func (o *FFmpegOperator) exec(ctx context.Context, op, bin string, args []string) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	if o.logger != nil {
		o.logger.Debug("executing media command", "op", op, "args", args)
	}

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		if o.logger != nil {
			o.logger.Warn("media command failed",
				"op", op,
				"exit_code", exitCode,
				"duration_ms", elapsed.Milliseconds(),
				"stderr_tail", truncate(stderrBuf.String(), 512),
			)
		}
		return &OperationError{Op: op, ExitCode: exitCode, StderrTail: stderrBuf.String(), Err: err}
	}

	if o.logger != nil {
		o.logger.Debug("media command succeeded", "op", op, "duration_ms", elapsed.Milliseconds())
	}
	return nil
}

// execOutput runs a subprocess whose useful output is stdout.
func (o *FFmpegOperator) execOutput(ctx context.Context, op, bin string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return "", &OperationError{Op: op, ExitCode: exitCode, StderrTail: stderrBuf.String(), Err: err}
	}
	return stdout.String(), nil
}

func writeConcatList(listPath string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		// The concat demuxer treats single quotes as delimiters.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return os.WriteFile(listPath, []byte(b.String()), 0644)
}

func buildExtractArgs(sourcePath, outPath string, start, end float64) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", sourcePath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		outPath,
	}
}

func buildConcatArgs(listPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
}

func buildDurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

func buildDimensionsArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	}
}

func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse ffprobe duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("ffprobe reported negative duration %.3f", d)
	}
	return d, nil
}

func parseDimensions(out string) (Dimensions, error) {
	s := strings.TrimSpace(out)
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return Dimensions{}, fmt.Errorf("cannot parse ffprobe dimensions %q", s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Dimensions{}, fmt.Errorf("cannot parse ffprobe dimensions %q", s)
	}
	return Dimensions{Width: w, Height: h}, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH", name)
	}
	return p, nil
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
