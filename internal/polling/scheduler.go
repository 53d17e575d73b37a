// Package polling runs bounded verification loops against asynchronous upstream services.
package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/shared"
)

// ErrPermanent marks a probe failure that must stop the loop
var ErrPermanent = errors.New("permanent probe failure")

// Permanent wraps err so the scheduler stops instead of retrying
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Outcome is how a polling loop ended
type Outcome string

const (
	Resolved  Outcome = "resolved"
	Failed    Outcome = "failed"
	TimedOut  Outcome = "timed_out"
	Cancelled Outcome = "cancelled"
)

// Probe checks the upstream once. done=true ends the loop successfully;
// a non-nil error is retried unless it wraps ErrPermanent.
type Probe func(ctx context.Context) (done bool, err error)

// Policy bounds one polling loop
type Policy struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // measured from the start of Poll
}

// Result summarizes a finished loop
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	Err      error // set for Failed, TimedOut and Cancelled
}

// Scheduler runs probes at a fixed interval until they resolve, fail
// permanently, reach the deadline or the context is cancelled
type Scheduler struct {
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Poll probes immediately and then once per interval tick. It blocks until the loop ends.
func (s *Scheduler) Poll(ctx context.Context, policy Policy, probe Probe) Result {
	logger := s.logger.With("poll", policy.Name)
	start := time.Now()

	pollCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	logger.Debug("Starting polling loop",
		"interval", policy.Interval.String(),
		"timeout", policy.Timeout.String(),
	)

	attempts := 0
	for {
		attempts++
		done, err := probe(pollCtx)
		switch {
		case err == nil && done:
			logger.Debug("Polling loop resolved", "attempts", attempts)
			return Result{Outcome: Resolved, Attempts: attempts, Elapsed: time.Since(start)}
		case errors.Is(err, ErrPermanent):
			logger.Warn("Polling loop stopped by permanent failure", "attempts", attempts, "error", err)
			return Result{Outcome: Failed, Attempts: attempts, Elapsed: time.Since(start), Err: err}
		case err != nil && pollCtx.Err() == nil:
			logger.Warn("Probe failed, will retry", "attempt", attempts, "error", err)
		}

		select {
		case <-pollCtx.Done():
			return s.stopped(ctx, logger, policy, attempts, start)
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) stopped(parent context.Context, logger *slog.Logger, policy Policy, attempts int, start time.Time) Result {
	elapsed := time.Since(start)
	if parent.Err() != nil {
		logger.Debug("Polling loop cancelled", "attempts", attempts)
		return Result{Outcome: Cancelled, Attempts: attempts, Elapsed: elapsed, Err: parent.Err()}
	}
	logger.Debug("Polling loop reached its deadline", "attempts", attempts)
	return Result{
		Outcome:  TimedOut,
		Attempts: attempts,
		Elapsed:  elapsed,
		Err:      &shared.TimeoutError{Op: policy.Name, After: policy.Timeout},
	}
}
