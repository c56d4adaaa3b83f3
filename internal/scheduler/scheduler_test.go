package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/castline/castline/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		SyncConcurrency: 1,
		BatchPause:      0,
		PlainWorkers:    2,
		Logger:          testLogger(),
	}
}

func okProcessor(prefix string) Processor {
	return ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		return prefix + "/" + seg.ID + ".mp4", nil
	})
}

func TestSchedule_PartitionsLanes(t *testing.T) {
	var syncCount, plainCount atomic.Int32
	syncProc := ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		syncCount.Add(1)
		return "/sync/" + seg.ID, nil
	})
	plainProc := ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		plainCount.Add(1)
		return "/plain/" + seg.ID, nil
	})

	segs := []timeline.Segment{
		{ID: "segment_0", Start: 0, End: 5, RequiresSync: true},
		{ID: "segment_1", Start: 5, End: 10, RequiresSync: false},
		{ID: "segment_2", Start: 10, End: 15, RequiresSync: true},
	}

	batch, err := New(syncProc, plainProc, testConfig()).Schedule(context.Background(), segs)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if syncCount.Load() != 2 || plainCount.Load() != 1 {
		t.Fatalf("lane counts = sync %d plain %d, want 2/1", syncCount.Load(), plainCount.Load())
	}
	if len(batch.Successful) != 3 || len(batch.Errors) != 0 {
		t.Fatalf("batch = %d ok %d err, want 3/0", len(batch.Successful), len(batch.Errors))
	}
}

func TestSchedule_ResultsOrderedByStart(t *testing.T) {
	// Delay the earliest segment so completion order differs from start order.
	syncProc := ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		if seg.ID == "segment_0" {
			time.Sleep(20 * time.Millisecond)
		}
		return "/" + seg.ID, nil
	})

	segs := []timeline.Segment{
		{ID: "segment_0", Start: 0, End: 5, RequiresSync: true},
		{ID: "segment_1", Start: 5, End: 10},
		{ID: "segment_2", Start: 10, End: 15},
	}

	cfg := testConfig()
	cfg.SyncConcurrency = 2
	batch, err := New(syncProc, okProcessor("p"), cfg).Schedule(context.Background(), segs)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	var prev float64 = -1
	for _, res := range batch.Successful {
		if res.Start < prev {
			t.Fatalf("results out of order: %+v", batch.Successful)
		}
		prev = res.Start
	}
	if batch.Successful[0].SegmentID != "segment_0" {
		t.Fatalf("first result = %s, want segment_0", batch.Successful[0].SegmentID)
	}
}

func TestSchedule_PartialFailure(t *testing.T) {
	plainProc := ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		if seg.ID == "segment_1" {
			return "", fmt.Errorf("extraction failed")
		}
		return "/" + seg.ID, nil
	})

	segs := []timeline.Segment{
		{ID: "segment_0", Start: 0, End: 5},
		{ID: "segment_1", Start: 5, End: 10},
		{ID: "segment_2", Start: 10, End: 15},
	}

	batch, err := New(okProcessor("s"), plainProc, testConfig()).Schedule(context.Background(), segs)
	if err != nil {
		t.Fatalf("partial failure must not fail the batch: %v", err)
	}
	if len(batch.Successful) != 2 {
		t.Fatalf("successful = %d, want 2", len(batch.Successful))
	}
	if len(batch.Errors) != 1 || batch.Errors[0].SegmentID != "segment_1" {
		t.Fatalf("errors = %+v, want one for segment_1", batch.Errors)
	}
}

func TestSchedule_AllFailed(t *testing.T) {
	failing := ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		return "", fmt.Errorf("boom")
	})

	segs := []timeline.Segment{
		{ID: "segment_0", Start: 0, End: 5},
		{ID: "segment_1", Start: 5, End: 10, RequiresSync: true},
	}

	batch, err := New(failing, failing, testConfig()).Schedule(context.Background(), segs)
	if !errors.Is(err, ErrNoContentProduced) {
		t.Fatalf("error = %v, want ErrNoContentProduced", err)
	}
	if len(batch.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(batch.Errors))
	}
}

func TestSchedule_Empty(t *testing.T) {
	_, err := New(okProcessor("s"), okProcessor("p"), testConfig()).Schedule(context.Background(), nil)
	if !errors.Is(err, ErrNoContentProduced) {
		t.Fatalf("error = %v, want ErrNoContentProduced", err)
	}
}

func TestSchedule_SyncConcurrencyBound(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	syncProc := ProcessorFunc(func(ctx context.Context, seg timeline.Segment) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "/" + seg.ID, nil
	})

	var segs []timeline.Segment
	for i := 0; i < 6; i++ {
		segs = append(segs, timeline.Segment{
			ID:           fmt.Sprintf("segment_%d", i),
			Start:        float64(i),
			End:          float64(i + 1),
			RequiresSync: true,
		})
	}

	cfg := testConfig()
	cfg.SyncConcurrency = 2
	if _, err := New(syncProc, okProcessor("p"), cfg).Schedule(context.Background(), segs); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if maxInFlight > 2 {
		t.Fatalf("max in-flight sync jobs = %d, want <= 2", maxInFlight)
	}
}

func TestSchedule_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	segs := []timeline.Segment{
		{ID: "segment_0", Start: 0, End: 5, RequiresSync: true},
		{ID: "segment_1", Start: 5, End: 10},
	}

	batch, err := New(okProcessor("s"), okProcessor("p"), testConfig()).Schedule(ctx, segs)
	if !errors.Is(err, ErrNoContentProduced) {
		t.Fatalf("error = %v, want ErrNoContentProduced", err)
	}
	if len(batch.Errors) != 2 {
		t.Fatalf("errors = %d, want 2 cancelled segments", len(batch.Errors))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(testLogger())
	if cfg.SyncConcurrency != 1 {
		t.Fatalf("SyncConcurrency = %d, want 1", cfg.SyncConcurrency)
	}
	if cfg.PlainWorkers < 1 {
		t.Fatalf("PlainWorkers = %d, want >= 1", cfg.PlainWorkers)
	}
}
