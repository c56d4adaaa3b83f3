// Package engine orchestrates a full composition run: parse the script,
// resolve assets, compose the timeline, schedule segment processing, and
// concatenate the surviving clips into the final video.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/castline/castline/internal/assets"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/export"
	"github.com/castline/castline/internal/lipsync"
	"github.com/castline/castline/internal/logging"
	"github.com/castline/castline/internal/media"
	"github.com/castline/castline/internal/meta"
	"github.com/castline/castline/internal/scheduler"
	"github.com/castline/castline/internal/script"
	"github.com/castline/castline/internal/staging"
	"github.com/castline/castline/internal/store"
	"github.com/castline/castline/internal/timeline"
)

const edlFrameRate = 30.0

// Report summarizes one composition run.
type Report struct {
	RunID        string                   `json:"run_id"`
	Total        int                      `json:"total"`
	Succeeded    int                      `json:"succeeded"`
	Failed       []scheduler.SegmentError `json:"failed,omitempty"`
	ArtifactPath string                   `json:"artifact_path,omitempty"`
	EDLPath      string                   `json:"edl_path,omitempty"`
	Duration     time.Duration            `json:"duration"`
}

// Partial reports whether the run produced output but lost segments.
func (r *Report) Partial() bool {
	return r.Succeeded > 0 && len(r.Failed) > 0
}

// Engine drives composition runs end to end.
type Engine struct {
	cfg     config.Config
	logger  *slog.Logger
	media   media.Operator
	lipsync lipsync.Client
	stager  staging.Stager
	repo    store.Repository
	pollCfg lipsync.PollConfig
}

// New assembles an engine from its collaborators. repo may be nil when no
// run ledger is wanted (ad-hoc invocations from tests).
func New(cfg config.Config, mediaOp media.Operator, lipsyncClient lipsync.Client, stager staging.Stager, repo store.Repository, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logging.WithComponent(logger, "engine"),
		media:   mediaOp,
		lipsync: lipsyncClient,
		stager:  stager,
		repo:    repo,
		pollCfg: lipsync.DefaultPollConfig(),
	}
}

// NewRunID mints an identifier for a composition run.
func NewRunID() string {
	return uuid.NewString()
}

// Generate runs the full pipeline for one script. Single-segment failures
// degrade the run to partial; the error return is reserved for faults that
// leave nothing to deliver.
func (e *Engine) Generate(ctx context.Context, runID, scriptPath string) (*Report, error) {
	started := time.Now()
	logger := logging.WithRunID(e.logger, runID)
	logger.Info("starting run", "script", scriptPath)

	tl, err := e.prepare(ctx, runID, scriptPath, logger)
	if err != nil {
		e.finishFailed(ctx, runID, err)
		return nil, err
	}

	batch, err := e.process(ctx, tl, logger)
	report := &Report{
		RunID:     runID,
		Total:     len(tl.Segments),
		Succeeded: len(batch.Successful),
		Failed:    batch.Errors,
	}
	e.recordSegmentOutcomes(ctx, runID, batch)
	if err != nil {
		e.finishFailed(ctx, runID, err)
		report.Duration = time.Since(started)
		return report, err
	}

	artifactPath, edlPath, err := e.assemble(ctx, runID, tl, batch, logger)
	if err != nil {
		e.finishFailed(ctx, runID, err)
		report.Duration = time.Since(started)
		return report, err
	}

	report.ArtifactPath = artifactPath
	report.EDLPath = edlPath
	report.Duration = time.Since(started)

	e.finishRun(ctx, report)
	logger.Info("run finished",
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"artifact", artifactPath,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// prepare parses and validates the script, resolves every referenced asset,
// and composes the final timeline. Any failure here aborts the run before
// media work starts.
func (e *Engine) prepare(ctx context.Context, runID, scriptPath string, logger *slog.Logger) (timeline.Timeline, error) {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return timeline.Timeline{}, fmt.Errorf("failed to read script: %w", err)
	}

	doc, err := script.Parse(data, script.FormatForPath(scriptPath))
	if err != nil {
		return timeline.Timeline{}, err
	}

	if violations := script.Validate(doc.Segments); len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		return timeline.Timeline{}, fmt.Errorf("script validation failed: %s", strings.Join(msgs, "; "))
	}

	resolver, err := assets.NewResolver(assets.ResolverConfig{
		Dir:      e.cfg.CharactersDir(),
		Synonyms: assets.DefaultSynonyms(),
		Logger:   logger,
	})
	if err != nil {
		return timeline.Timeline{}, err
	}

	names := uniqueNames(doc.Segments)
	mapping := resolver.ValidateMapping(names)
	if len(mapping.Missing) > 0 {
		errs := make([]error, len(mapping.Missing))
		for i, name := range mapping.Missing {
			errs[i] = &assets.ResolutionError{Name: name, Suggestions: resolver.Suggest(name)}
		}
		return timeline.Timeline{}, errors.Join(errs...)
	}

	for i := range doc.Segments {
		if a, ok := mapping.Resolved[doc.Segments[i].SpeakerOrVideo]; ok {
			doc.Segments[i].SourcePath = a.Path
		}
	}

	total := doc.TotalDuration()
	metaResolver := meta.NewResolver(e.cfg.MetaDir(), logger)
	insertions := metaResolver.ResolveAll(doc.Meta, total)

	tl, err := timeline.Compose(doc.Segments, insertions, total, logger)
	if err != nil {
		return timeline.Timeline{}, err
	}

	e.recordRunStart(ctx, runID, scriptPath, tl)
	return tl, nil
}

// process runs both scheduling lanes over the composed timeline.
func (e *Engine) process(ctx context.Context, tl timeline.Timeline, logger *slog.Logger) (scheduler.Batch, error) {
	schedCfg := scheduler.DefaultConfig(logger)
	schedCfg.SyncConcurrency = int64(e.cfg.SyncConcurrency())
	schedCfg.BatchPause = e.cfg.BatchPause()

	sched := scheduler.New(
		scheduler.ProcessorFunc(e.processSyncSegment),
		scheduler.ProcessorFunc(e.processPlainSegment),
		schedCfg,
	)
	return sched.Schedule(ctx, tl.Segments)
}

// processPlainSegment cuts the segment's clip straight from its source.
func (e *Engine) processPlainSegment(ctx context.Context, seg timeline.Segment) (string, error) {
	clipStart, clipEnd, err := e.clipWindow(ctx, seg)
	if err != nil {
		return "", err
	}
	return e.media.ExtractSegment(ctx, seg.SourcePath, clipStart, clipEnd)
}

// processSyncSegment cuts the clip, stages it for the lip-sync service,
// submits the job, waits for completion, and fetches the synced result.
// Staged files are released regardless of outcome.
func (e *Engine) processSyncSegment(ctx context.Context, seg timeline.Segment) (string, error) {
	logger := logging.WithSegmentID(e.logger, seg.ID)

	clipStart, clipEnd, err := e.clipWindow(ctx, seg)
	if err != nil {
		return "", err
	}
	clipPath, err := e.media.ExtractSegment(ctx, seg.SourcePath, clipStart, clipEnd)
	if err != nil {
		return "", err
	}

	videoHandle, err := e.stager.Stage(ctx, clipPath)
	if err != nil {
		return "", fmt.Errorf("failed to stage clip: %w", err)
	}
	defer func() {
		if err := e.stager.Unstage(context.WithoutCancel(ctx), videoHandle); err != nil {
			logger.Warn("failed to unstage clip", "error", err)
		}
	}()

	// Without a dedicated audio track the clip's own audio drives the sync.
	audioURL := videoHandle.URL
	if seg.AudioPath != "" {
		audioHandle, err := e.stager.Stage(ctx, seg.AudioPath)
		if err != nil {
			return "", fmt.Errorf("failed to stage audio: %w", err)
		}
		defer func() {
			if err := e.stager.Unstage(context.WithoutCancel(ctx), audioHandle); err != nil {
				logger.Warn("failed to unstage audio", "error", err)
			}
		}()
		audioURL = audioHandle.URL
	}

	jobID, err := e.lipsync.Submit(ctx, videoHandle.URL, audioURL)
	if err != nil {
		return "", err
	}
	logger.Info("lip-sync job submitted", "job_id", jobID)

	outputURL, err := lipsync.Await(ctx, e.lipsync, jobID, e.pollCfg, logger)
	if err != nil {
		return "", err
	}
	return e.lipsync.Fetch(ctx, outputURL, e.cfg.WorkDir())
}

// clipWindow resolves the trim window within the segment's source. An open
// clip end is bounded by probing the source duration.
func (e *Engine) clipWindow(ctx context.Context, seg timeline.Segment) (float64, float64, error) {
	if seg.SourcePath == "" {
		return 0, 0, fmt.Errorf("segment %s has no resolved source", seg.ID)
	}
	if seg.ClipEnd > 0 {
		return seg.ClipStart, seg.ClipEnd, nil
	}

	end := seg.ClipStart + seg.Duration()
	sourceDuration, err := e.media.ProbeDuration(ctx, seg.SourcePath)
	if err == nil && sourceDuration > seg.ClipStart && sourceDuration < end {
		end = sourceDuration
	}
	if end <= seg.ClipStart {
		return 0, 0, fmt.Errorf("segment %s has an empty clip window", seg.ID)
	}
	return seg.ClipStart, end, nil
}

// assemble concatenates the surviving clips in chronological order and
// writes the EDL next to the final video.
func (e *Engine) assemble(ctx context.Context, runID string, tl timeline.Timeline, batch scheduler.Batch, logger *slog.Logger) (string, string, error) {
	if err := export.ValidateOutputDir(e.cfg.OutputDir()); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(e.cfg.OutputDir(), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, res := range batch.Successful {
		if res.Overlay {
			continue
		}
		paths = append(paths, res.ArtifactPath)
	}
	if len(paths) == 0 {
		return "", "", fmt.Errorf("only overlay segments survived: %w", scheduler.ErrNoContentProduced)
	}

	artifactPath := filepath.Join(e.cfg.OutputDir(), fmt.Sprintf("castline_%s.mp4", runID))
	if err := e.media.Concatenate(ctx, paths, artifactPath); err != nil {
		return "", "", err
	}

	edlPath := filepath.Join(e.cfg.OutputDir(), fmt.Sprintf("castline_%s.edl", runID))
	title := export.SanitizeName("castline "+runID, 64)
	edl := export.GenerateEDL(successfulSegments(tl, batch), title, edlFrameRate)
	if err := os.WriteFile(edlPath, []byte(edl), 0644); err != nil {
		logger.Warn("failed to write EDL", "error", err)
		edlPath = ""
	}

	return artifactPath, edlPath, nil
}

// successfulSegments maps batch results back to their timeline segments,
// preserving chronological order.
func successfulSegments(tl timeline.Timeline, batch scheduler.Batch) []timeline.Segment {
	byID := make(map[string]timeline.Segment, len(tl.Segments))
	for _, seg := range tl.Segments {
		byID[seg.ID] = seg
	}
	var out []timeline.Segment
	for _, res := range batch.Successful {
		if seg, ok := byID[res.SegmentID]; ok {
			out = append(out, seg)
		}
	}
	return out
}

func uniqueNames(segs []timeline.Segment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range segs {
		if seg.SpeakerOrVideo == "" || seen[seg.SpeakerOrVideo] {
			continue
		}
		seen[seg.SpeakerOrVideo] = true
		names = append(names, seg.SpeakerOrVideo)
	}
	return names
}

func (e *Engine) recordRunStart(ctx context.Context, runID, scriptPath string, tl timeline.Timeline) {
	if e.repo == nil {
		return
	}
	now := time.Now().UTC()
	run := &store.Run{
		ID:            runID,
		ScriptPath:    scriptPath,
		Status:        store.RunStatusRunning,
		TotalSegments: len(tl.Segments),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.repo.CreateRun(ctx, run); err != nil {
		e.logger.Warn("failed to record run", "run_id", runID, "error", err)
		return
	}

	segments := make([]*store.RunSegment, 0, len(tl.Segments))
	for _, seg := range tl.Segments {
		lane := store.LanePlain
		if seg.RequiresSync {
			lane = store.LaneSync
		}
		segments = append(segments, &store.RunSegment{
			RunID:     runID,
			SegmentID: seg.ID,
			Speaker:   seg.SpeakerOrVideo,
			Start:     seg.Start,
			End:       seg.End,
			Kind:      string(seg.Kind),
			Lane:      lane,
			Status:    store.SegmentStatusPending,
		})
	}
	if err := e.repo.CreateSegments(ctx, segments); err != nil {
		e.logger.Warn("failed to record run segments", "run_id", runID, "error", err)
	}
}

func (e *Engine) recordSegmentOutcomes(ctx context.Context, runID string, batch scheduler.Batch) {
	if e.repo == nil {
		return
	}
	for _, res := range batch.Successful {
		if err := e.repo.UpdateSegment(ctx, runID, res.SegmentID, store.SegmentStatusCompleted, res.ArtifactPath, ""); err != nil {
			e.logger.Warn("failed to record segment outcome", "segment_id", res.SegmentID, "error", err)
		}
	}
	for _, segErr := range batch.Errors {
		if err := e.repo.UpdateSegment(ctx, runID, segErr.SegmentID, store.SegmentStatusFailed, "", segErr.Reason); err != nil {
			e.logger.Warn("failed to record segment outcome", "segment_id", segErr.SegmentID, "error", err)
		}
	}
}

func (e *Engine) finishRun(ctx context.Context, report *Report) {
	if e.repo == nil {
		return
	}
	status := store.RunStatusCompleted
	if report.Partial() {
		status = store.RunStatusPartial
	}
	run := &store.Run{
		ID:           report.RunID,
		Status:       status,
		Succeeded:    report.Succeeded,
		Failed:       len(report.Failed),
		ArtifactPath: report.ArtifactPath,
		EDLPath:      report.EDLPath,
	}
	if err := e.repo.FinishRun(ctx, run); err != nil {
		e.logger.Warn("failed to finish run", "run_id", report.RunID, "error", err)
	}
}

func (e *Engine) finishFailed(ctx context.Context, runID string, cause error) {
	if e.repo == nil {
		return
	}
	if err := e.repo.UpdateRunStatus(ctx, runID, store.RunStatusFailed, cause.Error()); err != nil {
		e.logger.Warn("failed to mark run failed", "run_id", runID, "error", err)
	}
}
