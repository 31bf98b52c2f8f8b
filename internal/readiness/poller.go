// Package readiness provides the bounded fixed-interval polling loop used for
// every readiness wait of the pipeline.
package readiness

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// RetryPolicy governs one readiness wait.
type RetryPolicy struct {
	// MaxAttempts is the number of checks performed before giving up.
	MaxAttempts int `toml:"max_attempts"`

	// Interval is slept between two checks.
	Interval time.Duration `toml:"interval"`

	// MaxCycles bounds apply/poll/delete cycles. Only deployments use it.
	MaxCycles int `toml:"max_cycles"`
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", p.Interval)
	}
	if p.MaxCycles < 0 {
		return fmt.Errorf("max cycles must not be negative, got %d", p.MaxCycles)
	}
	return nil
}

// Window is the longest time a single poll can wait.
func (p RetryPolicy) Window() time.Duration {
	return time.Duration(p.MaxAttempts-1) * p.Interval
}

// CheckFunc reports whether the awaited condition holds. Errors count as "not yet".
type CheckFunc func(ctx context.Context) (bool, error)

type Result struct {
	Ready    bool
	Attempts int
}

type Poller struct {
	clock clock.Clock
}

func NewPoller(c clock.Clock) *Poller {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Poller{clock: c}
}

// WaitUntilReady calls check up to policy.MaxAttempts times and sleeps policy.Interval
// between calls. It returns as soon as check succeeds; there is no sleep after the
// last attempt. A cancelled context ends the wait as not ready.
func (p *Poller) WaitUntilReady(ctx context.Context, check CheckFunc, policy RetryPolicy, fields log.Fields) Result {
	logger := log.WithFields(fields)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("wait cancelled")
			return Result{Attempts: attempt - 1}
		}

		ready, err := check(ctx)
		if err != nil {
			logger.WithError(err).WithField("attempt", attempt).Debug("check failed, treating as not ready")
		}
		if err == nil && ready {
			return Result{Ready: true, Attempts: attempt}
		}

		if attempt < policy.MaxAttempts {
			logger.Infof("waiting to be ready (attempt %d/%d)", attempt, policy.MaxAttempts)
			p.clock.Sleep(policy.Interval)
		}
	}

	return Result{Attempts: policy.MaxAttempts}
}
