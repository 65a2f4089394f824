package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

// runReflector drives a reflector in the background and returns a
// cancel function plus a channel carrying its exit error.
func runReflector(r *Reflector) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func waitOutcome(t *testing.T, sub *Subscription) WatchOutcome {
	t.Helper()
	select {
	case o := <-sub.C():
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return WatchOutcome{}
	}
}

// TestReflectorScenario walks the full list -> modify -> delete ->
// gone -> relist sequence end to end through watcher, store, and
// subscription.
func TestReflectorScenario(t *testing.T) {
	idA := ObjectIdentity{Kind: "Pod", Namespace: "default", Name: "a"}
	idB := ObjectIdentity{Kind: "Pod", Namespace: "default", Name: "b"}

	transport := &fakeTransport{
		lists: []listResult{
			{snap: snapshotOf("1", testObj("Pod", "default", "a", "1"), testObj("Pod", "default", "b", "1"))},
			// Relist after Gone: a is absent, only d exists now.
			{snap: snapshotOf("9", testObj("Pod", "default", "d", "9"))},
		},
		watches: []watchResult{
			{stream: &fakeStream{steps: []streamStep{
				{ev: RawEvent{Type: RawEventModified, Object: testObj("Pod", "default", "a", "2")}},
				{ev: RawEvent{Type: RawEventDeleted, Object: testObj("Pod", "default", "b", "3")}},
				{err: NewTransportError(ErrorKindGone, errors.New("resource version too old"))},
			}}},
		},
	}

	store := NewStore()
	watcher := NewWatcher("pods", transport, WithBackoff(time.Millisecond, 8*time.Millisecond))
	reflector := NewReflector("pods", watcher, store)

	sub := store.Subscribe(16)
	defer sub.Cancel()

	cancel, done := runReflector(reflector)
	defer func() { cancel(); <-done }()

	if o := waitOutcome(t, sub); o.Kind != OutcomeRestarted {
		t.Fatalf("outcome 1 = %s, want RESTARTED", o.Kind)
	}
	if got, ok := store.Get(idA); !ok || got.GetResourceVersion() != "1" {
		t.Fatal("a@v1 missing after initial list")
	}
	if got, ok := store.Get(idB); !ok || got.GetResourceVersion() != "1" {
		t.Fatal("b@v1 missing after initial list")
	}

	if o := waitOutcome(t, sub); o.Kind != OutcomeApplied || o.Version != "2" {
		t.Fatalf("outcome 2 = %s v%s, want APPLIED v2", o.Kind, o.Version)
	}
	if got, _ := store.Get(idA); got.GetResourceVersion() != "2" {
		t.Fatal("get(a) did not observe v2")
	}
	if got, _ := store.Get(idB); got.GetResourceVersion() != "1" {
		t.Fatal("get(b) disturbed by an update to a")
	}

	if o := waitOutcome(t, sub); o.Kind != OutcomeDeleted || o.Version != "3" {
		t.Fatalf("outcome 3 = %s v%s, want DELETED v3", o.Kind, o.Version)
	}
	if _, ok := store.Get(idB); ok {
		t.Fatal("get(b) returned an entry after deletion")
	}

	// The Gone error forces a relist; the fresh snapshot replaces the
	// working set, including the previously applied a.
	o := waitOutcome(t, sub)
	if o.Kind != OutcomeRestarted || o.Version != "9" {
		t.Fatalf("outcome 4 = %s v%s, want RESTARTED v9", o.Kind, o.Version)
	}
	if _, ok := store.Get(idA); ok {
		t.Fatal("a survived the relist despite being absent from the snapshot")
	}
	if _, ok := store.Get(ObjectIdentity{Kind: "Pod", Namespace: "default", Name: "d"}); !ok {
		t.Fatal("d missing after relist")
	}
	if store.Version() != "9" {
		t.Fatalf("watermark = %q, want 9", store.Version())
	}
}

func TestReflectorSkipsRedundantNotifications(t *testing.T) {
	transport := &fakeTransport{
		lists: []listResult{{snap: snapshotOf("5", testObj("Pod", "default", "a", "5"))}},
		watches: []watchResult{
			{stream: &fakeStream{steps: []streamStep{
				// Re-delivery of the version the list already carried.
				{ev: RawEvent{Type: RawEventModified, Object: testObj("Pod", "default", "a", "5")}},
				{ev: RawEvent{Type: RawEventModified, Object: testObj("Pod", "default", "a", "6")}},
			}}},
		},
	}

	store := NewStore()
	watcher := NewWatcher("pods", transport, WithBackoff(time.Millisecond, 8*time.Millisecond))
	reflector := NewReflector("pods", watcher, store)

	sub := store.Subscribe(16)
	defer sub.Cancel()

	cancel, done := runReflector(reflector)
	defer func() { cancel(); <-done }()

	if o := waitOutcome(t, sub); o.Kind != OutcomeRestarted {
		t.Fatalf("outcome 1 = %s, want RESTARTED", o.Kind)
	}
	// The stale re-delivery must have been swallowed; the next
	// delivery is the real update.
	if o := waitOutcome(t, sub); o.Kind != OutcomeApplied || o.Version != "6" {
		t.Fatalf("outcome 2 = %s v%s, want APPLIED v6", o.Kind, o.Version)
	}
}

func TestReflectorSurfacesFatalError(t *testing.T) {
	transport := &fakeTransport{
		lists: []listResult{
			{err: NewFatalTransportError(ErrorKindNotFound, errors.New("the server could not find the requested resource"))},
		},
	}

	store := NewStore()
	watcher := NewWatcher("pods", transport, WithBackoff(time.Millisecond, 8*time.Millisecond))
	reflector := NewReflector("pods", watcher, store)

	cancel, done := runReflector(reflector)
	defer cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("fatal condition not surfaced to the owner")
		}
		if !IsFatal(err) {
			t.Fatalf("error %v lost its fatal classification", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reflector kept retrying a fatal condition")
	}
}

func TestReflectorStopsCleanlyOnCancel(t *testing.T) {
	transport := &fakeTransport{
		lists: []listResult{{snap: snapshotOf("1")}},
		// No watch script: the watcher will fail to open the stream
		// and back off; cancellation must interrupt that wait.
	}

	store := NewStore()
	watcher := NewWatcher("pods", transport, WithBackoff(time.Hour, time.Hour))
	reflector := NewReflector("pods", watcher, store)

	sub := store.Subscribe(1)
	defer sub.Cancel()

	cancel, done := runReflector(reflector)
	waitOutcome(t, sub) // initial RESTARTED committed

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancellation returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reflector did not stop on cancellation")
	}
}
