package circuit

import (
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestOpensOnMaxErrors(t *testing.T) {
	b := NewBreaker(Config{MaxErrors: 5, Cooldown: 300 * time.Second})
	var trips int
	b.OnTrip(func(s domain.CircuitBreakerState) {
		trips++
		if s.ConsecutiveFailures != 5 {
			t.Errorf("expected trip at 5 failures, got %d", s.ConsecutiveFailures)
		}
	})

	for i := 1; i <= 4; i++ {
		b.RecordFailureAt(t0)
		if b.IsOpen(t0) {
			t.Fatalf("opened early after %d failures", i)
		}
	}
	b.RecordFailureAt(t0)
	if !b.IsOpen(t0) {
		t.Fatal("expected open after 5th failure")
	}
	if trips != 1 {
		t.Errorf("expected one trip callback, got %d", trips)
	}

	// Further failures while open do not re-trip.
	b.RecordFailureAt(t0.Add(time.Second))
	if trips != 1 {
		t.Errorf("expected no second trip, got %d", trips)
	}
}

func TestSuccessBeforeThresholdResets(t *testing.T) {
	b := NewBreaker(Config{MaxErrors: 5, Cooldown: time.Minute})
	for i := 0; i < 4; i++ {
		b.RecordFailureAt(t0)
	}
	b.RecordSuccess()
	if got := b.State().ConsecutiveFailures; got != 0 {
		t.Fatalf("expected counter reset, got %d", got)
	}
	for i := 0; i < 4; i++ {
		b.RecordFailureAt(t0)
	}
	if b.IsOpen(t0) {
		t.Fatal("expected closed after 4 fresh failures")
	}
}

func TestSuccessDoesNotCloseOpenBreaker(t *testing.T) {
	b := NewBreaker(Config{MaxErrors: 2, Cooldown: time.Minute})
	b.RecordFailureAt(t0)
	b.RecordFailureAt(t0)
	b.RecordSuccess()
	if !b.IsOpen(t0.Add(30 * time.Second)) {
		t.Fatal("expected breaker to stay open until the cool-down elapses")
	}
}

func TestCooldownResets(t *testing.T) {
	b := NewBreaker(Config{MaxErrors: 5, Cooldown: 300 * time.Second})
	var resets int
	b.OnReset(func() { resets++ })

	for i := 0; i < 5; i++ {
		b.RecordFailureAt(t0)
	}
	if !b.IsOpen(t0.Add(299 * time.Second)) {
		t.Fatal("expected open before the cool-down elapses")
	}
	if r := b.Remaining(t0.Add(299 * time.Second)); r != time.Second {
		t.Errorf("expected 1s remaining, got %s", r)
	}
	if b.IsOpen(t0.Add(300 * time.Second)) {
		t.Fatal("expected closed once the cool-down elapsed")
	}
	st := b.State()
	if st.Open || st.ConsecutiveFailures != 0 {
		t.Errorf("expected reset state, got %+v", st)
	}
	if resets != 1 {
		t.Errorf("expected one reset callback, got %d", resets)
	}
}

func TestDefaultsApplied(t *testing.T) {
	b := NewBreaker(Config{})
	for i := 0; i < 4; i++ {
		b.RecordFailureAt(t0)
	}
	if b.IsOpen(t0) {
		t.Fatal("expected default threshold of 5")
	}
	b.RecordFailureAt(t0)
	if !b.IsOpen(t0.Add(299 * time.Second)) {
		t.Fatal("expected default cool-down of 300s")
	}
}
