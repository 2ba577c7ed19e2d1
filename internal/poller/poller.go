// Package poller waits on externally owned asynchronous jobs by querying their
// status on a fixed interval until a terminal state or the attempt budget is reached.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
)

// DefaultMaxConsecutiveErrors is how many failed status checks in a row are
// tolerated before polling aborts.
const DefaultMaxConsecutiveErrors = 3

// CheckFunc queries the external system once. attempt is 1-indexed.
type CheckFunc func(ctx context.Context, attempt int) (domain.JobStatus, error)

// StatusFunc observes every successfully fetched status, terminal ones included.
type StatusFunc func(attempt int, status domain.JobStatus)

// Poller holds the polling policy for one job.
type Poller struct {
	Interval             time.Duration
	MaxAttempts          int
	MaxConsecutiveErrors int
	Clock                Clock
	Logger               *infra.Logger
}

// Result is the outcome of a finished polling loop.
type Result struct {
	Status   domain.JobStatus
	Attempts int
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks a status-check error that must stop polling immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Run checks immediately, then every Interval, until the status is terminal,
// MaxAttempts checks were made, MaxConsecutiveErrors checks in a row failed,
// or ctx is done. No check is issued after a terminal status.
func (p Poller) Run(ctx context.Context, check CheckFunc, onStatus StatusFunc) (Result, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	maxErrors := p.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxConsecutiveErrors
	}
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := p.logger()

	var (
		last      domain.JobStatus
		streak    int
		lastErr   error
		attempted int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Status: last, Attempts: attempted}, fmt.Errorf("%w: %v", domain.ErrCanceled, err)
		}
		attempted = attempt

		status, err := check(ctx, attempt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{Status: last, Attempts: attempted}, fmt.Errorf("%w: %v", domain.ErrCanceled, ctxErr)
			}
			if isPermanent(err) {
				return Result{Status: last, Attempts: attempted}, err
			}
			streak++
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt).Int("consecutive_errors", streak).Msg("poller: status check failed")
			if streak >= maxErrors {
				return Result{Status: last, Attempts: attempted}, fmt.Errorf("status check failed %d times in a row: %w", streak, lastErr)
			}
		} else {
			streak = 0
			last = status
			if onStatus != nil {
				onStatus(attempt, status)
			}
			if status.IsTerminal() {
				return Result{Status: status, Attempts: attempted}, terminalError(status)
			}
		}

		if attempt == maxAttempts {
			break
		}
		if err := wait(ctx, clock, p.Interval); err != nil {
			return Result{Status: last, Attempts: attempted}, fmt.Errorf("%w: %v", domain.ErrCanceled, err)
		}
	}
	return Result{Status: last, Attempts: attempted}, fmt.Errorf("%w after %d attempts", domain.ErrTimeout, attempted)
}

func (p Poller) logger() *infra.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	l := zerolog.New(io.Discard)
	return &l
}

func wait(ctx context.Context, clock Clock, d time.Duration) error {
	t := clock.NewTimer(d)
	select {
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

func terminalError(status domain.JobStatus) error {
	if status.State != domain.JobStateFailed {
		return nil
	}
	msg := status.ErrorMessage
	if msg == "" {
		msg = "generation failed"
	}
	return fmt.Errorf("%w: %s", domain.ErrJobFailed, msg)
}

func isPermanent(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return true
	}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		// Client errors repeat on retry, apart from throttling and request timeouts.
		if perr.Status >= 400 && perr.Status < 500 {
			return perr.Status != http.StatusTooManyRequests && perr.Status != http.StatusRequestTimeout
		}
	}
	return errors.Is(err, domain.ErrMissingConfig) || errors.Is(err, domain.ErrUnauthorized)
}
