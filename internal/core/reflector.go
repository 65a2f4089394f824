package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Reflector pulls outcomes from a Watcher and applies them to a Store,
// republishing each applied outcome to subscribers in the exact order
// the Watcher emitted them. It performs no merging, filtering, or
// business transformation; such logic belongs strictly downstream.
type Reflector struct {
	collection string
	watcher    *Watcher
	store      *Store
	log        *slog.Logger
}

// NewReflector glues the given watcher and store together for one
// collection.
func NewReflector(collection string, watcher *Watcher, store *Store) *Reflector {
	return &Reflector{
		collection: collection,
		watcher:    watcher,
		store:      store,
		log:        slog.Default().With("component", "reflector", "collection", collection),
	}
}

// Run drives the pipeline until ctx is cancelled or the watcher
// reports a fatal condition. Cancellation returns nil (a clean stop);
// fatal watcher errors are surfaced to the owner and never retried
// here, since the watcher has already classified them.
func (r *Reflector) Run(ctx context.Context) error {
	for {
		outcome, err := r.watcher.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.log.Info("stopped")
				return nil
			}
			return fmt.Errorf("collection %s: %w", r.collection, err)
		}

		// Apply is atomic per outcome; stale and no-op events report
		// no mutation and are not republished.
		if r.store.Apply(outcome) {
			r.store.publish(outcome)
		}
	}
}
