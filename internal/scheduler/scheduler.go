// Package scheduler partitions a composed timeline into independent
// processing lanes (lip-sync-required and plain clips), dispatches them
// concurrently, and merges per-segment results back into chronological
// order. The batch contract is best effort: one segment's failure never
// aborts its siblings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/castline/castline/internal/timeline"
)

// ErrNoContentProduced marks a run where zero segments yielded output.
// Fatal: there is nothing to concatenate.
var ErrNoContentProduced = errors.New("no segments produced any output")

// Processor produces a playable clip for one segment and returns the
// artifact path.
type Processor interface {
	Process(ctx context.Context, seg timeline.Segment) (string, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, seg timeline.Segment) (string, error)

func (f ProcessorFunc) Process(ctx context.Context, seg timeline.Segment) (string, error) {
	return f(ctx, seg)
}

// Result is a successfully produced clip for one segment.
type Result struct {
	SegmentID    string  `json:"segment_id"`
	ArtifactPath string  `json:"artifact_path"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Overlay      bool    `json:"overlay,omitempty"`
}

// SegmentError records one segment's failure.
type SegmentError struct {
	SegmentID string `json:"segment_id"`
	Reason    string `json:"reason"`
}

// Batch is the outcome of scheduling one timeline: partial success is an
// accepted terminal state. Successful results are ordered by each
// segment's original start time, never by completion order.
type Batch struct {
	Successful []Result
	Errors     []SegmentError
}

// Config bounds the scheduler's concurrency.
type Config struct {
	// SyncConcurrency is the number of lip-sync jobs in flight at once.
	// Default 1, respecting external service rate limits.
	SyncConcurrency int64

	// BatchPause is a brief wait between sync-lane slot acquisitions to
	// avoid bursting the external rate limit.
	BatchPause time.Duration

	// PlainWorkers bounds the plain-clip lane. Zero means "size from the
	// local machine".
	PlainWorkers int

	Logger *slog.Logger
}

// DefaultConfig returns production defaults, sizing the plain lane from
// the logical CPU count.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		SyncConcurrency: 1,
		BatchPause:      500 * time.Millisecond,
		PlainWorkers:    detectWorkers(),
		Logger:          logger,
	}
}

// detectWorkers sizes the plain lane from the machine's logical CPU count.
func detectWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Scheduler dispatches timeline segments to their lane processors.
type Scheduler struct {
	syncProc  Processor
	plainProc Processor
	cfg       Config
}

// New creates a scheduler over the two lane processors.
func New(syncProc, plainProc Processor, cfg Config) *Scheduler {
	if cfg.SyncConcurrency < 1 {
		cfg.SyncConcurrency = 1
	}
	if cfg.PlainWorkers < 1 {
		cfg.PlainWorkers = detectWorkers()
	}
	return &Scheduler{syncProc: syncProc, plainProc: plainProc, cfg: cfg}
}

// Schedule partitions the segments into lanes, runs both lanes
// concurrently, and reassembles results in original chronological order.
// Returns ErrNoContentProduced when nothing succeeded.
func (s *Scheduler) Schedule(ctx context.Context, segs []timeline.Segment) (Batch, error) {
	var syncLane, plainLane []timeline.Segment
	for _, seg := range segs {
		if seg.RequiresSync {
			syncLane = append(syncLane, seg)
		} else {
			plainLane = append(plainLane, seg)
		}
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Info("scheduling segments",
			"total", len(segs),
			"sync_lane", len(syncLane),
			"plain_lane", len(plainLane),
		)
	}

	var (
		mu    sync.Mutex
		batch Batch
	)
	record := func(seg timeline.Segment, artifact string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			batch.Errors = append(batch.Errors, SegmentError{SegmentID: seg.ID, Reason: err.Error()})
			return
		}
		batch.Successful = append(batch.Successful, Result{
			SegmentID:    seg.ID,
			ArtifactPath: artifact,
			Start:        seg.Start,
			End:          seg.End,
			Overlay:      seg.Overlay,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.runSyncLane(gctx, syncLane, record)
		return nil
	})
	g.Go(func() error {
		s.runPlainLane(gctx, plainLane, record)
		return nil
	})
	// Lane funcs never return errors; Wait only synchronises.
	_ = g.Wait()

	sort.SliceStable(batch.Successful, func(i, j int) bool {
		return batch.Successful[i].Start < batch.Successful[j].Start
	})

	if len(batch.Successful) == 0 {
		return batch, fmt.Errorf("%d segments attempted: %w", len(segs), ErrNoContentProduced)
	}
	return batch, nil
}

// runSyncLane processes sync-required segments with a bounded number in
// flight and a brief pause between slot starts. A slow or failing job
// never stalls siblings beyond the concurrency boundary.
func (s *Scheduler) runSyncLane(ctx context.Context, segs []timeline.Segment, record func(timeline.Segment, string, error)) {
	if len(segs) == 0 {
		return
	}

	sem := semaphore.NewWeighted(s.cfg.SyncConcurrency)
	var wg sync.WaitGroup

	for i, seg := range segs {
		if err := sem.Acquire(ctx, 1); err != nil {
			record(seg, "", fmt.Errorf("cancelled before processing"))
			continue
		}

		wg.Add(1)
		go func(seg timeline.Segment) {
			defer wg.Done()
			defer sem.Release(1)
			artifact, err := s.syncProc.Process(ctx, seg)
			record(seg, artifact, err)
		}(seg)

		if s.cfg.BatchPause > 0 && i < len(segs)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.BatchPause):
			}
		}
	}

	wg.Wait()
}

// runPlainLane processes plain clips with a local worker pool; there is no
// external rate limit, only machine capacity.
func (s *Scheduler) runPlainLane(ctx context.Context, segs []timeline.Segment, record func(timeline.Segment, string, error)) {
	if len(segs) == 0 {
		return
	}

	workers := s.cfg.PlainWorkers
	if workers > len(segs) {
		workers = len(segs)
	}

	jobs := make(chan timeline.Segment)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range jobs {
				if ctx.Err() != nil {
					record(seg, "", fmt.Errorf("cancelled before processing"))
					continue
				}
				artifact, err := s.plainProc.Process(ctx, seg)
				record(seg, artifact, err)
			}
		}()
	}

	for _, seg := range segs {
		jobs <- seg
	}
	close(jobs)
	wg.Wait()
}
