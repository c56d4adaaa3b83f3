package media

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeHealth struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeHealth) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeHealth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDoctor_LipsyncReachability(t *testing.T) {
	ctx := context.Background()

	healthy := &fakeHealth{}
	caps := NewDoctor(healthy, nil).Refresh(ctx)
	if !caps.LipsyncReachable {
		t.Error("LipsyncReachable = false with healthy service")
	}

	down := &fakeHealth{err: errors.New("connection refused")}
	caps = NewDoctor(down, nil).Refresh(ctx)
	if caps.LipsyncReachable {
		t.Error("LipsyncReachable = true with failing service")
	}
}

func TestDoctor_NilHealthChecker(t *testing.T) {
	caps := NewDoctor(nil, nil).Refresh(context.Background())
	if caps.LipsyncReachable {
		t.Error("LipsyncReachable = true with no service configured")
	}
	if caps.ProbedAt.IsZero() {
		t.Error("ProbedAt is zero")
	}
}

func TestDoctor_GetCachesProbe(t *testing.T) {
	ctx := context.Background()
	health := &fakeHealth{}
	doctor := NewDoctor(health, nil)

	first := doctor.Get(ctx)
	second := doctor.Get(ctx)

	if health.callCount() != 1 {
		t.Errorf("health probed %d times, want 1", health.callCount())
	}
	if first.ProbedAt != second.ProbedAt {
		t.Error("second Get re-probed despite fresh cache")
	}

	doctor.Invalidate()
	doctor.Get(ctx)
	if health.callCount() != 2 {
		t.Errorf("health probed %d times after Invalidate, want 2", health.callCount())
	}
}
