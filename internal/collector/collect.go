package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options tunes one Collect loop. Zero values fall back to sane defaults.
type Options struct {
	MaxRetries int
	Backoff    BackoffPolicy
	Limiter    *RateLimiter
	Clock      Clock
	Logger     *zap.Logger

	// sleep is swapped out by tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
	return o
}

// Collect wraps one fetch+parse cycle with a bounded retry loop. The loop is
// identical across all connectors: apply the rate limiter, fetch, parse,
// return. Retryable failures sleep the backoff delay and try again until the
// retry budget is exhausted; non-retryable failures propagate immediately.
// Error paths never return partial records.
func Collect[T any](ctx context.Context, c Connector[T], target Target, opts Options) (Result[T], error) {
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("connector", c.Name()))

	var lastErr error
	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return Result[T]{}, err
			}
		}

		log.Info("fetching",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", opts.MaxRetries),
			zap.Int64("complex_id", target.ComplexID),
		)
		start := opts.Clock.Now()
		raw, meta, err := c.Fetch(ctx, target)
		if err == nil {
			var items []T
			items, err = c.Parse(raw)
			if err == nil {
				meta.Connector = c.Name()
				meta.FetchedAt = opts.Clock.Now().UTC()
				meta.Attempt = attempt + 1
				observeCollection(c.Name(), string(meta.Method), "success", time.Since(start))
				return Result[T]{Items: items, Metadata: meta, Raw: raw}, nil
			}
		}

		if !Retryable(err) {
			log.Error("non-retryable failure", zap.String("kind", KindOf(err).String()), zap.Error(err))
			observeCollection(c.Name(), string(meta.Method), KindOf(err).String(), time.Since(start))
			return Result[T]{}, err
		}

		lastErr = err
		if attempt < opts.MaxRetries-1 {
			delay := opts.Backoff.Delay(attempt)
			log.Warn("retryable failure, backing off",
				zap.String("kind", KindOf(err).String()),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if sleepErr := opts.sleep(ctx, delay); sleepErr != nil {
				return Result[T]{}, sleepErr
			}
			continue
		}
		log.Error("retry budget exhausted", zap.Error(err))
		observeCollection(c.Name(), string(meta.Method), KindOf(err).String(), time.Since(start))
	}

	if lastErr == nil {
		// Should not happen: the loop either returns or records an error.
		return Result[T]{}, fmt.Errorf("collection failed without a recorded error")
	}
	return Result[T]{}, fmt.Errorf("collection failed after %d attempts: %w", opts.MaxRetries, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
