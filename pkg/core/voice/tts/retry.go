package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/metrics"
)

const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 60 * time.Second
	defaultBackoffStep    = 2 * time.Second
)

// Retrier wraps a Provider with bounded attempts, linear backoff and a
// per-attempt timeout.
type Retrier struct {
	provider    Provider
	maxAttempts int
	timeout     time.Duration
	backoff     func(attempt int) time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithMaxAttempts sets the number of attempts per call.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds each individual attempt.
func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(r *Retrier) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBackoff sets the delay after a failed attempt (1-based).
func WithBackoff(fn func(attempt int) time.Duration) RetryOption {
	return func(r *Retrier) {
		if fn != nil {
			r.backoff = fn
		}
	}
}

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrier) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records each attempt.
func WithMetrics(m *metrics.Metrics) RetryOption {
	return func(r *Retrier) {
		r.metrics = m
	}
}

// LinearBackoff waits attempt×2s after a failed attempt.
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * defaultBackoffStep
}

// NewRetrier wraps provider.
func NewRetrier(provider Provider, opts ...RetryOption) *Retrier {
	r := &Retrier{
		provider:    provider,
		maxAttempts: DefaultMaxAttempts,
		timeout:     DefaultAttemptTimeout,
		backoff:     LinearBackoff,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the wrapped provider's identifier.
func (r *Retrier) Name() string {
	return r.provider.Name()
}

// Synthesize tries the wrapped provider up to maxAttempts times. After the
// last failure it returns a synthesis error wrapping the final cause.
// Typed errors that are not retryable, such as configuration errors, are
// returned as is after the first attempt.
func (r *Retrier) Synthesize(ctx context.Context, text, voiceID string) (*Synthesis, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		r.logger.Debug("tts attempt", "attempt", attempt, "max", r.maxAttempts, "voice", voiceID)

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		syn, err := r.provider.Synthesize(attemptCtx, text, voiceID)
		cancel()

		if err == nil && syn != nil && len(syn.Audio) > 0 {
			r.metrics.RecordSynthesisAttempt("success", time.Since(start), len(syn.Audio))
			if attempt > 1 {
				r.logger.Info("tts succeeded after retry", "attempt", attempt, "voice", voiceID)
			}
			return syn, nil
		}
		if err == nil {
			err = ErrNoAudio
		}
		lastErr = err
		r.metrics.RecordSynthesisAttempt("error", time.Since(start), 0)

		var ce *core.Error
		if errors.As(err, &ce) && !ce.IsRetryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, core.NewSynthesisError("synthesis canceled", ctx.Err())
		}

		r.logger.Warn("tts attempt failed", "attempt", attempt, "voice", voiceID, "error", err)
		if attempt < r.maxAttempts {
			delay := r.backoff(attempt)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, core.NewSynthesisError("synthesis canceled", err)
			}
		}
	}

	r.logger.Error("all tts attempts failed", "attempts", r.maxAttempts, "voice", voiceID, "error", lastErr)
	return nil, core.NewSynthesisError(fmt.Sprintf("all %d attempts failed", r.maxAttempts), lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
