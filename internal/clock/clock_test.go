package clock

import (
	"testing"
	"time"
)

func TestRealClockSuccess(t *testing.T) {
	c := RealClock{}
	now := c.Now()
	if time.Since(now) < 0 {
		t.Fatalf("expected now to be <= current time")
	}
}

func TestFakeClockAdvanceRunsDueTimers(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	var fired []string
	c.AfterFunc(2*time.Minute, func() { fired = append(fired, "second") })
	c.AfterFunc(time.Minute, func() { fired = append(fired, "first") })
	stopped := c.AfterFunc(time.Minute, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Fatalf("expected Stop to report a pending timer")
	}

	c.Advance(90 * time.Second)
	if len(fired) != 1 || fired[0] != "first" {
		t.Fatalf("expected only first timer, got %v", fired)
	}

	c.Advance(time.Minute)
	if len(fired) != 2 || fired[1] != "second" {
		t.Fatalf("expected second timer to fire, got %v", fired)
	}

	if got := c.Now(); !got.Equal(start.Add(150 * time.Second)) {
		t.Fatalf("unexpected now %v", got)
	}

	if c.Waiting() != 0 {
		t.Fatalf("expected no waiting timers, got %d", c.Waiting())
	}
}
