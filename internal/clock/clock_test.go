package clock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// RealClock tests
// =============================================================================

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()

	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClock_AfterFunc(t *testing.T) {
	c := NewRealClock()
	fired := make(chan struct{})

	timer := c.AfterFunc(10*time.Millisecond, func() { close(fired) })
	if timer == nil {
		t.Fatal("AfterFunc should return a non-nil Timer")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback never ran")
	}
	if timer.Stop() {
		t.Error("Stop() after firing should return false")
	}
}

func TestRealClock_AfterFunc_StopBeforeFiring(t *testing.T) {
	c := NewRealClock()
	var calls int32

	timer := c.AfterFunc(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if !timer.Stop() {
		t.Error("Stop() before firing should return true")
	}

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("stopped timer should not fire")
	}
}

func TestRealClock_ImplementsClock(t *testing.T) {
	var _ Clock = (*RealClock)(nil)
	var _ Timer = (*realTimer)(nil)
}

// =============================================================================
// Sleep tests
// =============================================================================

func TestSleep_Waits(t *testing.T) {
	c := NewRealClock()
	start := time.Now()

	if err := Sleep(context.Background(), c, 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 20ms", elapsed)
	}
}

func TestSleep_ZeroDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if err := Sleep(context.Background(), NewRealClock(), d); err != nil {
			t.Errorf("Sleep(%v) error = %v", d, err)
		}
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, NewRealClock(), time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Sleep did not return promptly on cancel")
	}
}

func TestSleep_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, NewRealClock(), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
}
