package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p := New(3, time.Millisecond, 0)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fetch: %w", domain.ErrTransient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := New(3, time.Millisecond, 0)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrUnauthorized
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustionWrapsLastError(t *testing.T) {
	p := New(3, time.Millisecond, 0)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrRateLimited
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want wrapped ErrRateLimited", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoHonoursCancellationDuringWait(t *testing.T) {
	p := New(5, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context) error {
			calls++
			return domain.ErrTransient
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestAttemptTimeoutIsRetried(t *testing.T) {
	p := New(2, time.Millisecond, 5*time.Millisecond)
	calls := 0
	v, err := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v != 42 || calls != 2 {
		t.Fatalf("v=%d calls=%d, want 42 and 2", v, calls)
	}
}

func TestCustomClassifier(t *testing.T) {
	p := New(2, time.Millisecond, 0)
	p.Retryable = func(error) bool { return false }
	calls := 0
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrTransient
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
