// Package notify delivers pipeline outcomes: the evaluation callback owned by
// the task submitter, and an optional Slack alert for operators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yangwenmai/taskforge/internal/model"
)

const (
	defaultAttempts = 3
	defaultInitial  = time.Second
	defaultTimeout  = 30 * time.Second
)

// Evaluator posts JSON results to a caller-supplied callback URL.
type Evaluator struct {
	client      *http.Client
	maxAttempts int
	initial     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.client.Timeout = d
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Evaluator) { e.client.Transport = rt }
}

// WithSleep replaces the delay function used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Evaluator) { e.sleep = fn }
}

// WithInitialInterval sets the first retry delay; later delays double.
func WithInitialInterval(d time.Duration) Option {
	return func(e *Evaluator) { e.initial = d }
}

// NewEvaluator creates an Evaluator with three attempts and 1s/2s/4s backoff.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		client:      &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultAttempts,
		initial:     defaultInitial,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 64 * e.initial
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Notify posts payload as JSON. Connection and timeout errors are retried;
// anything else returns immediately. A non-2xx response is logged and is not
// an error. Returned errors wrap model.ErrNotification.
func (e *Evaluator) Notify(ctx context.Context, callbackURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", model.ErrNotification, err)
	}

	delays := e.newBackOff()
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%w: build request: %w", model.ErrNotification, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err == nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				slog.Info("evaluation notified", "url", callbackURL, "status", resp.StatusCode, "attempt", attempt)
			} else {
				slog.Warn("evaluation endpoint rejected notification", "url", callbackURL, "status", resp.StatusCode, "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		if !isTransient(ctx, err) {
			slog.Error("evaluation notification failed", "url", callbackURL, "attempt", attempt, "error", err)
			return fmt.Errorf("%w: %w", model.ErrNotification, err)
		}

		slog.Warn("evaluation notification attempt failed", "url", callbackURL, "attempt", attempt, "error", err)
		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, delays.NextBackOff()); err != nil {
				return fmt.Errorf("%w: %w", model.ErrNotification, err)
			}
		}
	}

	slog.Error("evaluation notification gave up", "url", callbackURL, "attempts", e.maxAttempts, "error", lastErr)
	return fmt.Errorf("%w: after %d attempts: %w", model.ErrNotification, e.maxAttempts, lastErr)
}

// isTransient reports whether err is a connection or timeout failure worth retrying.
// Cancellation of the caller's context is not.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET)
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
