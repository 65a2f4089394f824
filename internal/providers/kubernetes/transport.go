package kubernetes

import (
	"context"
	"fmt"
	"io"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

const (
	// listPageLimit chunks relists so that very large collections do
	// not hold one giant response in flight.
	listPageLimit = 500

	// watchTimeoutSeconds asks the server to close the watch after
	// this many seconds; the watcher treats that as an ordinary
	// stream end and reconnects from its watermark.
	watchTimeoutSeconds = 300
)

// transport implements core.Transport on top of the dynamic client.
type transport struct {
	client   dynamic.Interface
	versions *versionCache
	spec     core.CollectionSpec
}

func newTransport(client dynamic.Interface, versions *versionCache, spec core.CollectionSpec) *transport {
	return &transport{
		client:   client,
		versions: versions,
		spec:     spec,
	}
}

var _ core.Transport = (*transport)(nil)

// resource returns the namespaced or cluster-scoped resource client
// per the collection spec.
func (t *transport) resource() dynamic.ResourceInterface {
	nri := t.client.Resource(t.spec.GVR())
	if t.spec.Namespace != "" {
		return nri.Namespace(t.spec.Namespace)
	}
	return nri
}

// List pages through the collection and returns a flattened snapshot
// at the final page's resource version.
func (t *transport) List(ctx context.Context) (core.Snapshot, error) {
	opts := metav1.ListOptions{
		LabelSelector: t.spec.LabelSelector,
		FieldSelector: t.spec.FieldSelector,
		Limit:         listPageLimit,
	}

	var items []*unstructured.Unstructured
	for {
		page, err := t.resource().List(ctx, opts)
		if err != nil {
			return core.Snapshot{}, wrapK8sError(err)
		}
		for i := range page.Items {
			items = append(items, &page.Items[i])
		}
		if page.GetContinue() == "" {
			return core.Snapshot{
				Items:   items,
				Version: page.GetResourceVersion(),
			}, nil
		}
		opts.Continue = page.GetContinue()
	}
}

// Watch opens an incremental stream resuming after the given version.
func (t *transport) Watch(ctx context.Context, version string) (core.EventStream, error) {
	timeout := int64(watchTimeoutSeconds)
	opts := metav1.ListOptions{
		LabelSelector:       t.spec.LabelSelector,
		FieldSelector:       t.spec.FieldSelector,
		ResourceVersion:     version,
		TimeoutSeconds:      &timeout,
		AllowWatchBookmarks: t.versions.SupportsBookmarks(),
	}

	w, err := t.resource().Watch(ctx, opts)
	if err != nil {
		return nil, wrapK8sError(err)
	}
	return &watchStream{watcher: w}, nil
}

// watchStream adapts watch.Interface to core.EventStream.
type watchStream struct {
	watcher watch.Interface
}

func (s *watchStream) Next(ctx context.Context) (core.RawEvent, error) {
	select {
	case <-ctx.Done():
		return core.RawEvent{}, ctx.Err()
	case ev, ok := <-s.watcher.ResultChan():
		if !ok {
			return core.RawEvent{}, io.EOF
		}
		return translateEvent(ev)
	}
}

func (s *watchStream) Stop() {
	s.watcher.Stop()
}

// translateEvent converts one client-go watch event into a RawEvent,
// classifying embedded error statuses.
func translateEvent(ev watch.Event) (core.RawEvent, error) {
	if ev.Type == watch.Error {
		if status, ok := ev.Object.(*metav1.Status); ok {
			return core.RawEvent{}, wrapStatus(status)
		}
		return core.RawEvent{}, core.NewTransportError(core.ErrorKindOther,
			fmt.Errorf("watch error event of type %T", ev.Object))
	}

	obj, ok := ev.Object.(*unstructured.Unstructured)
	if !ok {
		return core.RawEvent{}, core.NewTransportError(core.ErrorKindDecode,
			fmt.Errorf("watch event object of type %T", ev.Object))
	}

	switch ev.Type {
	case watch.Added:
		return core.RawEvent{Type: core.RawEventAdded, Object: obj}, nil
	case watch.Modified:
		return core.RawEvent{Type: core.RawEventModified, Object: obj}, nil
	case watch.Deleted:
		return core.RawEvent{Type: core.RawEventDeleted, Object: obj}, nil
	case watch.Bookmark:
		return core.RawEvent{Type: core.RawEventBookmark, Object: obj}, nil
	default:
		return core.RawEvent{}, core.NewTransportError(core.ErrorKindDecode,
			fmt.Errorf("unknown watch event type %q", ev.Type))
	}
}
