package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"VolumeSentinel/internal/model"
)

// RetryPolicy bounds the attempts made against the provider for one window.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Jitter   time.Duration // up to this much is added to every delay
}

// Window is one date range to request.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// Attempt describes one provider call, reported to ChainHooks.OnAttempt.
type Attempt struct {
	Window Window
	Number int
	Err    error
}

// ChainHooks observes a FetchChain run. Nil hooks are skipped.
type ChainHooks struct {
	OnAttempt func(a Attempt)
}

// Retryable reports whether err is worth another attempt on the same window.
// Malformed dates and cancellation are not.
func Retryable(err error) bool {
	var mde *model.MalformedDateError
	switch {
	case err == nil:
		return false
	case errors.As(err, &mde):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p RetryPolicy) wait(ctx context.Context) error {
	d := p.Delay
	if p.Jitter > 0 {
		d += rand.N(p.Jitter)
	}
	return Sleep(ctx, d)
}

// Retry calls fn up to p.Attempts times, sleeping between attempts, and stops
// early on success or on an error Retryable rejects.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.Attempts, 1)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = fn(ctx, i)
		if lastErr == nil || !Retryable(lastErr) {
			return lastErr
		}
		if i < attempts {
			if err := p.wait(ctx); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// FetchChain requests each window in order under the retry policy and returns
// the first window the provider answers without error, empty or not, with its
// index. When every window fails the last error is returned with index -1.
func FetchChain(ctx context.Context, f Fetcher, code string, windows []Window, p RetryPolicy, hooks ChainHooks) ([]model.Bar, int, error) {
	if len(windows) == 0 {
		return nil, -1, errors.New("fetch chain: no windows")
	}
	var lastErr error
	for idx, w := range windows {
		var bars []model.Bar
		err := Retry(ctx, p, func(ctx context.Context, attempt int) error {
			var err error
			bars, err = f.Fetch(ctx, code, w.Start, w.End)
			if hooks.OnAttempt != nil {
				hooks.OnAttempt(Attempt{Window: w, Number: attempt, Err: err})
			}
			return err
		})
		if err == nil {
			return bars, idx, nil
		}
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		lastErr = fmt.Errorf("window %s: %w", w.Label, err)
	}
	return nil, -1, lastErr
}
