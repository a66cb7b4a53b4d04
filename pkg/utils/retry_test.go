package utils

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPollUntilImmediateSuccess(t *testing.T) {
	calls := 0
	done, err := PollUntil(context.Background(), PollConfig{
		Interval: time.Hour, // never reached
		Deadline: time.Hour,
	}, func() (bool, error) {
		calls++
		return true, nil
	})
	if err != nil || !done {
		t.Fatalf("Expected immediate success, got done=%v err=%v", done, err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one probe, got %d", calls)
	}
}

func TestPollUntilEventualSuccess(t *testing.T) {
	calls := 0
	done, err := PollUntil(context.Background(), PollConfig{
		Interval: time.Millisecond,
		Deadline: time.Second,
	}, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil || !done {
		t.Fatalf("Expected success, got done=%v err=%v", done, err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 probes, got %d", calls)
	}
}

func TestPollUntilDeadlineIsAValue(t *testing.T) {
	done, err := PollUntil(context.Background(), PollConfig{
		Interval: time.Millisecond,
		Deadline: 20 * time.Millisecond,
	}, func() (bool, error) {
		return false, nil
	})
	// The deadline is an outcome, not an error.
	if err != nil {
		t.Fatalf("Deadline should not be an error, got %v", err)
	}
	if done {
		t.Error("Expected done=false at the deadline")
	}
}

func TestPollUntilPropagatesErrors(t *testing.T) {
	boom := fmt.Errorf("probe failed")
	done, err := PollUntil(context.Background(), PollConfig{
		Interval: time.Millisecond,
		Deadline: time.Second,
	}, func() (bool, error) {
		return false, boom
	})
	if done || err != boom {
		t.Errorf("Expected the probe error back, got done=%v err=%v", done, err)
	}
}

func TestPollUntilContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done, err := PollUntil(ctx, PollConfig{
		Interval: time.Millisecond,
		Deadline: time.Second,
	}, func() (bool, error) {
		return false, nil
	})
	if done || err != context.Canceled {
		t.Errorf("Expected context.Canceled, got done=%v err=%v", done, err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("attempt %d failed", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return fmt.Errorf("always fails")
	})
	if err == nil {
		t.Fatal("Expected the last error, got nil")
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}
