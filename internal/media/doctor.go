package media

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// Capabilities reports what the local environment can do for a run.
type Capabilities struct {
	HasFFmpeg        bool      `json:"has_ffmpeg"`
	HasFFprobe       bool      `json:"has_ffprobe"`
	LipsyncReachable bool      `json:"lipsync_reachable"`
	ProbedAt         time.Time `json:"probed_at"`
}

// HealthChecker is implemented by the lip-sync client so the doctor can
// report service reachability without importing it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Doctor probes local binaries and the lip-sync service, caching results
// with a TTL so capability checks stay cheap during a run.
type Doctor struct {
	health HealthChecker
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewDoctor creates a capability prober. health may be nil when no lip-sync
// service is configured.
func NewDoctor(health HealthChecker, logger *slog.Logger) *Doctor {
	return &Doctor{
		health: health,
		ttl:    defaultProbeTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *Doctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{ProbedAt: time.Now()}

	if _, err := exec.LookPath("ffmpeg"); err == nil {
		caps.HasFFmpeg = true
	}
	if _, err := exec.LookPath("ffprobe"); err == nil {
		caps.HasFFprobe = true
	}
	if d.health != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		caps.LipsyncReachable = d.health.Health(probeCtx) == nil
		cancel()
	}

	if d.logger != nil {
		d.logger.Info("capability probe complete",
			"ffmpeg", caps.HasFFmpeg,
			"ffprobe", caps.HasFFprobe,
			"lipsync_reachable", caps.LipsyncReachable,
		)
	}

	d.cached = caps
	return caps
}

// Invalidate clears the cached capabilities.
func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
