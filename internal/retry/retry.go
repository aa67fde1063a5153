// Package retry runs repository network operations with bounded exponential
// backoff, retrying only failures that look like the network blinked.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// Defaults: three retries after the first attempt, waiting 1s, 2s, 4s.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// ErrExhausted marks a transient failure that kept failing past the retry bound.
var ErrExhausted = errors.New("retries exhausted")

// transientPatterns are lower-cased fragments of git/ssh/http error output
// that indicate a retry may succeed.
var transientPatterns = []string{
	"could not resolve host",
	"temporary failure in name resolution",
	"name or service not known",
	"connection reset",
	"connection refused",
	"connection timed out",
	"operation timed out",
	"non-fast-forward",
	"[rejected]",
	"fetch first",
	"could not read from remote repository",
	"failed to connect",
	"early eof",
	"the remote end hung up unexpectedly",
	"broken pipe",
}

// IsTransient reports whether err looks like a temporary network or
// remote-state failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRejected reports whether err is a push rejected because the remote moved
// ahead. A merge-pull before the next attempt can fix it.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "non-fast-forward") ||
		strings.Contains(msg, "fetch first") ||
		strings.Contains(msg, "[rejected]")
}

// Policy bounds retries of one operation.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *log.Logger

	// Timer replaces the wall-clock timer between attempts. Tests use it to
	// observe delays without sleeping.
	Timer backoff.Timer
}

// Default returns the standard policy.
func Default(logger *log.Logger) Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay, Logger: logger}
}

// Do runs op until it succeeds, fails with a non-transient error, the retry
// bound is exhausted, or ctx is done. Non-transient errors are returned
// unchanged. Exhaustion wraps both ErrExhausted and the last error. name only
// labels log lines.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := 0
	var last error

	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("transient failure, retrying",
				"op", name,
				"attempt", attempts,
				"delay", delay,
				"error", err,
			)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.Timer)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		if last != nil {
			return fmt.Errorf("%w (last error: %v)", err, last)
		}
		return err
	case IsTransient(err):
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	return err
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(base),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(base<<uint(retries)),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}
