package utils

import (
	"context"
	"time"
)

// PollConfig holds bounded-poll configuration.
type PollConfig struct {
	Interval time.Duration
	Deadline time.Duration
}

// DefaultPollConfig returns the default poll configuration.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: 2 * time.Second,
		Deadline: 3 * time.Minute,
	}
}

// PollUntil calls fn every Interval until fn reports done, the deadline
// elapses, or the context is cancelled. The timeout is returned as a value
// (done == false, err == nil) rather than an unbounded block, so callers can
// turn it into a status decision.
func PollUntil(ctx context.Context, cfg PollConfig, fn func() (bool, error)) (bool, error) {
	deadline := time.NewTimer(cfg.Deadline)
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// First probe immediately; many orders fill before the first interval.
	done, err := fn()
	if done || err != nil {
		return done, err
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
			done, err := fn()
			if done || err != nil {
				return done, err
			}
		}
	}
}

// Retry executes fn up to maxAttempts times with a fixed delay between
// attempts, stopping early on success or context cancellation.
func Retry(ctx context.Context, maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if attempt < maxAttempts-1 {
				time.Sleep(delay)
			}
		} else {
			return nil
		}
	}
	return lastErr
}
