package core

import (
	"testing"
	"time"
)

func TestBackoffDoublesUpToCeiling(t *testing.T) {
	b := newBackoff(time.Second, 8*time.Second)
	b.jitter = func(time.Duration) time.Duration { return 0 }

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("delay %d = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffNonDecreasingWithJitter(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 10*time.Second)

	var last time.Duration
	for i := 0; i < 12; i++ {
		d := b.Next()
		if d < last {
			t.Fatalf("delay %d = %v, below previous %v", i, d, last)
		}
		if d > 10*time.Second {
			t.Fatalf("delay %d = %v, above the ceiling", i, d)
		}
		last = d
	}
}

func TestBackoffResetReturnsToFloor(t *testing.T) {
	b := newBackoff(time.Second, time.Minute)
	b.jitter = func(time.Duration) time.Duration { return 0 }

	b.Next()
	b.Next()
	b.Next()
	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Fatalf("delay after reset = %v, want floor", got)
	}
}
