package core

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// storeEntry pairs a cached object body with the version and sequence
// at which it was last applied.
type storeEntry struct {
	object   *unstructured.Unstructured
	version  string
	sequence uint64
}

// defaultSubscriberBuffer is the queue depth of a subscription when
// the caller passes a non-positive buffer size.
const defaultSubscriberBuffer = 64

// Store is the concurrent, versioned cache of the last-known-good
// object for every identity in one watched collection. The Reflector
// is its single writer; any number of goroutines may read. Reads never
// block on network I/O.
type Store struct {
	mu      sync.RWMutex
	entries map[ObjectIdentity]storeEntry
	version string
	subs    map[string]*subscriber
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[ObjectIdentity]storeEntry),
		subs:    make(map[string]*subscriber),
	}
}

// Get returns the latest applied state for the identity, or false if
// the identity is not present.
func (s *Store) Get(id ObjectIdentity) (*unstructured.Unstructured, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.object, true
}

// Len returns the number of cached objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version returns the collection watermark: the version of the most
// recently applied outcome.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a consistent point-in-time copy of all cached
// objects, ordered by identity. Readers never observe a torn write: an
// apply is visible atomically, in full, to any snapshot taken after it
// commits.
func (s *Store) Snapshot() []*unstructured.Unstructured {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// snapshotLocked builds the identity-ordered copy. Callers must hold
// mu for at least reading.
func (s *Store) snapshotLocked() []*unstructured.Unstructured {
	ids := make([]ObjectIdentity, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	objects := make([]*unstructured.Unstructured, len(ids))
	for i, id := range ids {
		objects[i] = s.entries[id].object
	}
	return objects
}

// Apply mutates the store per the outcome and reports whether a
// mutation actually occurred, so callers can skip redundant
// notifications. The stale-event guard rejects APPLIED and DELETED
// outcomes whose sequence is not newer than the entry's, or whose
// version equals the entry's current version (a re-delivery); the
// stored version for an identity therefore never regresses. RESTARTED
// unconditionally replaces the entire contents.
func (s *Store) Apply(o WatchOutcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch o.Kind {
	case OutcomeRestarted:
		s.entries = make(map[ObjectIdentity]storeEntry, len(o.Snapshot))
		for _, obj := range o.Snapshot {
			s.entries[IdentityOf(obj)] = storeEntry{
				object:   obj,
				version:  o.Version,
				sequence: o.Sequence,
			}
		}
		s.version = o.Version
		return true

	case OutcomeBookmark:
		if o.Version == s.version {
			return false
		}
		s.version = o.Version
		return true

	case OutcomeApplied:
		id := IdentityOf(o.Object)
		if s.stale(id, o) {
			return false
		}
		s.entries[id] = storeEntry{object: o.Object, version: o.Version, sequence: o.Sequence}
		s.version = o.Version
		return true

	case OutcomeDeleted:
		id := IdentityOf(o.Object)
		if s.stale(id, o) {
			return false
		}
		if _, ok := s.entries[id]; !ok {
			return false
		}
		delete(s.entries, id)
		s.version = o.Version
		return true
	}

	return false
}

// stale reports whether the outcome is not newer than the current
// entry for its identity. Callers must hold mu.
func (s *Store) stale(id ObjectIdentity, o WatchOutcome) bool {
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	return o.Sequence <= entry.sequence || o.Version == entry.version
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

// Subscription is an independent channel of committed outcomes,
// delivered in commit order. When the subscriber falls behind, pending
// bookmarks are shed first; if none are pending the queue is replaced
// by a single synthetic RESTARTED snapshot, so an APPLIED or DELETED
// outcome is never silently dropped and observed ordering is never
// corrupted.
type Subscription struct {
	id    string
	sub   *subscriber
	store *Store
	once  sync.Once
}

// C returns the channel the subscription delivers on. It is unbuffered
// and closed after Cancel.
func (sub *Subscription) C() <-chan WatchOutcome {
	return sub.sub.ch
}

// Cancel detaches the subscription from the store; the delivery
// goroutine then closes the channel. Safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		delete(sub.store.subs, sub.id)
		sub.store.mu.Unlock()
		close(sub.sub.done)
	})
}

// subscriber holds one consumer's queue. The pending slice is the
// queue and is mutated only under mu, never through the channel, so
// the overflow policy cannot race a receive on ch: the consumer only
// ever sees outcomes in the order pump sends them.
type subscriber struct {
	mu      sync.Mutex
	pending []WatchOutcome
	buffer  int

	ch   chan WatchOutcome
	wake chan struct{}
	done chan struct{}
}

// Subscribe registers a new independent subscriber with the given
// queue depth (a non-positive buffer selects the default).
func (s *Store) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	sub := &subscriber{
		buffer: buffer,
		ch:     make(chan WatchOutcome),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	subscription := &Subscription{
		id:    uuid.NewString(),
		sub:   sub,
		store: s,
	}

	s.mu.Lock()
	s.subs[subscription.id] = sub
	s.mu.Unlock()

	go sub.pump()
	return subscription
}

// publish fans the outcome out to all current subscribers. It is
// called by the Reflector, after Apply reported a mutation, from the
// single pipeline goroutine; delivery never blocks the pipeline.
func (s *Store) publish(o WatchOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		s.offerLocked(sub, o)
	}
}

// offerLocked enqueues the outcome on one subscriber, applying the
// overflow policy when the queue is full. Callers must hold the store
// mu, which guards the snapshot taken on resync.
func (s *Store) offerLocked(sub *subscriber, o WatchOutcome) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if len(sub.pending) < sub.buffer {
		sub.pending = append(sub.pending, o)
		sub.notify()
		return
	}

	// Queue full. Shed the oldest pending bookmark; bookmarks only
	// advance the watermark, which the newer outcomes carry anyway.
	for i, queued := range sub.pending {
		if queued.Kind == OutcomeBookmark {
			sub.pending = append(sub.pending[:i], sub.pending[i+1:]...)
			sub.pending = append(sub.pending, o)
			sub.notify()
			return
		}
	}

	// Nothing sheddable: replace the whole queue with one synthetic
	// RESTARTED snapshot of the current contents, which already
	// includes the outcome being published. An outcome pump already
	// took is older than everything here, so the consumer still
	// observes a monotone sequence.
	sub.pending = []WatchOutcome{{
		Kind:     OutcomeRestarted,
		Snapshot: s.snapshotLocked(),
		Version:  s.version,
		Sequence: o.Sequence,
	}}
	sub.notify()
}

// notify wakes the pump without blocking. Callers must hold sub.mu.
func (sub *subscriber) notify() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// pump moves queued outcomes to the consumer channel one at a time.
// It is the only sender on ch and closes it once the subscription is
// cancelled.
func (sub *subscriber) pump() {
	defer close(sub.ch)
	for {
		sub.mu.Lock()
		if len(sub.pending) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.wake:
				continue
			case <-sub.done:
				return
			}
		}
		o := sub.pending[0]
		sub.pending = sub.pending[1:]
		sub.mu.Unlock()

		select {
		case sub.ch <- o:
		case <-sub.done:
			return
		}
	}
}
