package core

import (
	"context"
	"math/rand/v2"
	"time"
)

// sleepCtx blocks for d or until ctx is done.
// Returns true if the sleep completed (context still alive).
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoff implements exponential backoff capped at a ceiling, with
// additive jitter bounded to a quarter of the current interval. The
// bound keeps consecutive delays non-decreasing across doublings
// (1.25x of the previous interval is below 2x), which consumers rely
// on for bounding relist frequency.
type backoff struct {
	floor   time.Duration
	ceiling time.Duration
	current time.Duration

	// jitter is swapped out in tests for determinism.
	jitter func(max time.Duration) time.Duration
}

func newBackoff(floor, ceiling time.Duration) *backoff {
	return &backoff{
		floor:   floor,
		ceiling: ceiling,
		current: floor,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int64N(int64(max)))
		},
	}
}

// Next returns the current interval plus jitter, clamped to the
// ceiling, then doubles the interval up to the ceiling. Clamping keeps
// the delay sequence non-decreasing even once the interval has
// saturated.
func (b *backoff) Next() time.Duration {
	d := b.current + b.jitter(b.current/4)
	if d > b.ceiling {
		d = b.ceiling
	}
	if next := b.current * 2; next > b.ceiling {
		b.current = b.ceiling
	} else {
		b.current = next
	}
	return d
}

// Reset sets the interval back to the floor. Called after a
// successful relist.
func (b *backoff) Reset() {
	b.current = b.floor
}
