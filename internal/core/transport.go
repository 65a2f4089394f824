package core

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// RawEventType represents the type of a single event on a watch
// stream, before it is translated into a WatchOutcome. The values
// match the Kubernetes wire protocol; ERROR lines never reach this
// layer because transports convert them into classified errors.
type RawEventType string

const (
	RawEventAdded    RawEventType = "ADDED"
	RawEventModified RawEventType = "MODIFIED"
	RawEventDeleted  RawEventType = "DELETED"
	RawEventBookmark RawEventType = "BOOKMARK"
)

// RawEvent is one decoded event from a watch stream. Object is always
// non-nil; for BOOKMARK events it carries only metadata (in particular
// the resourceVersion watermark).
type RawEvent struct {
	Type   RawEventType
	Object *unstructured.Unstructured
}

// Snapshot is the result of a full list: the collection's current
// items plus the resource version the next watch should resume after.
type Snapshot struct {
	Items   []*unstructured.Unstructured
	Version string
}

// EventStream is a lazy sequence of raw watch events. Next is the only
// suspension point; it returns io.EOF when the server closes the
// stream (including the ordinary server-side watch timeout), a
// *TransportError for classified failures, or the context's error on
// cancellation. A blocked Next is only guaranteed to unblock when the
// context the watch was opened with is cancelled; the Watcher passes
// the same context to both. Stop releases the underlying connection
// and may be called concurrently with Next.
type EventStream interface {
	Next(ctx context.Context) (RawEvent, error)
	Stop()
}

// Transport issues authenticated list and watch requests against one
// resource collection endpoint. Implementations live in the providers
// layer; the domain only sees snapshots, raw events, and classified
// errors.
type Transport interface {
	// List fetches the collection's full current contents and the
	// resource version at which the snapshot was taken.
	List(ctx context.Context) (Snapshot, error)
	// Watch opens an incremental event stream starting after the
	// given resource version.
	Watch(ctx context.Context, version string) (EventStream, error)
}

// TransportFactory builds a Transport for one collection. It is
// implemented by the kubernetes and httpwatch providers.
type TransportFactory interface {
	NewTransport(spec CollectionSpec) (Transport, error)
}
