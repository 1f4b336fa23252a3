package prompt

import (
	"context"
	"time"

	"studio/internal/infra"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

type RetryOptions struct {
	Attempts int
	Delay    time.Duration
	Logger   infra.Logger
	// OnFallback is called when every attempt failed and MockedPair is served.
	OnFallback func(err error)
}

// Retrying retries a generator and falls back to MockedPair once the last
// attempt fails. It only returns an error when ctx is cancelled.
type Retrying struct {
	inner      Generator
	attempts   int
	delay      time.Duration
	logger     infra.Logger
	onFallback func(err error)
}

func NewRetrying(inner Generator, opts RetryOptions) *Retrying {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	return &Retrying{
		inner:      inner,
		attempts:   attempts,
		delay:      delay,
		logger:     opts.Logger,
		onFallback: opts.OnFallback,
	}
}

func (r *Retrying) Generate(ctx context.Context, instruction string) (Pair, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		pair, err := r.inner.Generate(ctx, instruction)
		if err == nil {
			return pair, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Pair{}, ctx.Err()
		}
		if attempt == r.attempts {
			break
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", r.delay).Msg("prompt generation failed")
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Pair{}, ctx.Err()
		case <-timer.C:
		}
	}
	r.logger.Error().Err(lastErr).Int("attempts", r.attempts).Msg("prompt generation failed, using mocked response")
	if r.onFallback != nil {
		r.onFallback(lastErr)
	}
	return MockedPair, nil
}

var _ Generator = (*Retrying)(nil)
