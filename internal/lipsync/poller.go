package lipsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// JobError reports a job that terminally failed or exhausted its polling
// budget. Recorded per segment; never fatal to the run.
type JobError struct {
	JobID  string
	Reason string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("lip-sync job %s: %s", e.JobID, e.Reason)
}

// PollConfig bounds the polling loop.
type PollConfig struct {
	Initial       time.Duration // first wait before polling
	Step          time.Duration // added per attempt
	Max           time.Duration // backoff ceiling
	FailureBudget int           // consecutive transient poll errors tolerated
	MaxAttempts   int           // overall attempt ceiling
}

// DefaultPollConfig returns the production polling schedule: 2s start,
// +1s per attempt, capped at 10s, three consecutive failures tolerated,
// 120 attempts overall.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Initial:       2 * time.Second,
		Step:          1 * time.Second,
		Max:           10 * time.Second,
		FailureBudget: 3,
		MaxAttempts:   120,
	}
}

// nextDelay computes the escalating backoff for the given zero-based
// attempt number.
func nextDelay(cfg PollConfig, attempt int) time.Duration {
	d := cfg.Initial + time.Duration(attempt)*cfg.Step
	if d > cfg.Max {
		return cfg.Max
	}
	return d
}

// Await polls a submitted job until completion, terminal failure, or budget
// exhaustion, and returns the output reference. Transient poll errors are
// tolerated up to the consecutive-failure budget; a cancelled context stops
// in-flight polling immediately.
func Await(ctx context.Context, c Client, jobID string, cfg PollConfig, logger *slog.Logger) (string, error) {
	consecutiveFailures := 0

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", &JobError{JobID: jobID, Reason: "cancelled while polling"}
		case <-time.After(nextDelay(cfg, attempt)):
		}

		result, err := c.Poll(ctx, jobID)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
				return "", &JobError{JobID: jobID, Reason: fmt.Sprintf("poll rejected: %v", err)}
			}
			consecutiveFailures++
			if logger != nil {
				logger.Warn("poll attempt failed",
					"job_id", jobID,
					"attempt", attempt,
					"consecutive_failures", consecutiveFailures,
					"error", err,
				)
			}
			if consecutiveFailures > cfg.FailureBudget {
				return "", &JobError{JobID: jobID, Reason: fmt.Sprintf("poll failure budget exhausted: %v", err)}
			}
			continue
		}
		consecutiveFailures = 0

		switch result.Status {
		case StatusDone:
			if result.OutputURL == "" {
				return "", &JobError{JobID: jobID, Reason: "job done but no output reference"}
			}
			return result.OutputURL, nil
		case StatusFailed:
			reason := result.Message
			if reason == "" {
				reason = "job failed"
			}
			return "", &JobError{JobID: jobID, Reason: reason}
		default:
			if logger != nil {
				logger.Debug("job still pending", "job_id", jobID, "attempt", attempt)
			}
		}
	}

	return "", &JobError{JobID: jobID, Reason: fmt.Sprintf("job not done after %d attempts", cfg.MaxAttempts)}
}
