// Package retrylimit retries operations with exponential backoff behind an
// adaptive rate limiter. HTTP status errors get special treatment: 429 slows
// the limiter down, 5xx backs off, 4xx stops immediately.
//
//	lim := retrylimit.NewAdaptiveLimiter(2, 1, 10, 1, 0.5)
//	err := retrylimit.WithRetryConfig(ctx, doRequest, lim, retrylimit.DefaultRetryConfig())
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter is a rate limit that rises on success and drops on overload.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per second,
// bounded by [lo, hi]. Success adds stepUp; a rate-limit error multiplies by stepDown.
func NewAdaptiveLimiter(initial, lo, hi, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, max(1, int(initial))),
		minLimit: lo,
		maxLimit: hi,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate, unless an error was seen in the last ten seconds.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.setLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate after an overload signal.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.setLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(l rate.Limit) {
	l = min(max(l, a.minLimit), a.maxLimit)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(max(1, int(l)))
	}
}

// HTTPError is an error that carries an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError is the HTTPError returned by clients in this module.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string   { return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code) }
func (e *StatusError) StatusCode() int { return e.Code }

// FatalError stops retrying immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal wraps err so WithRetryConfig gives up on it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// RetryConfig configures WithRetryConfig.
type RetryConfig struct {
	MaxAttempts    int // 0 means unlimited
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	Jitter         bool
	Logger         zerolog.Logger
	OnRetry        func(attempt int, err error)
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		Logger:         zerolog.Nop(),
	}
}

// WithRetryConfig runs fn until it succeeds, returns a FatalError or a 4xx
// status, ctx ends, or MaxAttempts is reached.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	delay := cfg.InitialDelay
	log := cfg.Logger

	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}
		if isClientError(err) {
			return err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		wait := delay
		switch {
		case isRateLimitError(err):
			if lim != nil {
				lim.RateLimited()
			}
			wait = cfg.RateLimitDelay
			log.Warn().Int("attempt", attempt).Dur("wait", wait).Msg("rate limited")
		case isServerError(err):
			if lim != nil {
				lim.RateLimited()
			}
			log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("server error")
		default:
			log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("attempt failed")
		}

		if cfg.Jitter {
			wait = addJitter(wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 {
			delay = min(delay, cfg.MaxDelay)
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded", cfg.MaxAttempts)
}

// addJitter adds up to 25% on top of delay.
func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + rand.N(delay/4)
}

func statusOf(err error) (int, bool) {
	var herr HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode(), true
	}
	return 0, false
}

func isRateLimitError(err error) bool {
	code, ok := statusOf(err)
	return ok && code == http.StatusTooManyRequests
}

func isServerError(err error) bool {
	code, ok := statusOf(err)
	return ok && code >= 500 && code < 600
}

func isClientError(err error) bool {
	code, ok := statusOf(err)
	return ok && code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
