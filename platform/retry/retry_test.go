package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFixedStopsOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Fixed(context.Background(), "probe", 4, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestFixedRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Fixed(context.Background(), "probe", 4, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestFixedExhaustsAttempts(t *testing.T) {
	calls := 0
	underlying := errors.New("still broken")
	err := Fixed(context.Background(), "probe", 4, time.Millisecond, func() error {
		calls++
		return underlying
	})
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped underlying error, got %v", err)
	}
	if !strings.Contains(err.Error(), "probe failed after 4 attempts") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, "connect", 5, 10*time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	if calls != 1 {
		t.Fatalf("expected a single call before cancellation, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoNormalizesAttempts(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), "connect", 0, time.Millisecond, func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("expected attempts floor of 1, got %d calls", calls)
	}
}
