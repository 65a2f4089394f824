package httpwatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, core.Transport) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := client.NewTransport(core.CollectionSpec{
		Name:      "pods",
		Version:   "v1",
		Resource:  "pods",
		Namespace: "default",
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	return client, tr
}

func TestTransportList(t *testing.T) {
	var gotPath, gotAuth string
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{
			"metadata": {"resourceVersion": "41"},
			"items": [
				{"apiVersion": "v1", "kind": "Pod", "metadata": {"namespace": "default", "name": "a", "resourceVersion": "40"}},
				{"apiVersion": "v1", "kind": "Pod", "metadata": {"namespace": "default", "name": "b", "resourceVersion": "41"}}
			]
		}`)
	}), WithBearerToken("s3cr3t"))

	snap, err := tr.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotPath != "/api/v1/namespaces/default/pods" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer s3cr3t" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if snap.Version != "41" {
		t.Fatalf("version = %q, want 41", snap.Version)
	}
	if len(snap.Items) != 2 || snap.Items[0].GetName() != "a" || snap.Items[1].GetName() != "b" {
		t.Fatalf("unexpected items %v", snap.Items)
	}
}

func TestTransportGroupPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"metadata": {"resourceVersion": "1"}, "items": []}`)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := client.NewTransport(core.CollectionSpec{
		Name:     "deployments",
		Group:    "apps",
		Version:  "v1",
		Resource: "deployments",
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if _, err := tr.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotPath != "/apis/apps/v1/deployments" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestTransportListStatusCodes(t *testing.T) {
	tests := []struct {
		code      int
		wantKind  core.ErrorKind
		wantFatal bool
	}{
		{http.StatusUnauthorized, core.ErrorKindUnauthorized, false},
		{http.StatusForbidden, core.ErrorKindForbidden, false},
		{http.StatusGone, core.ErrorKindGone, false},
		{http.StatusNotFound, core.ErrorKindNotFound, true},
		{http.StatusBadGateway, core.ErrorKindNetwork, false},
		{http.StatusTeapot, core.ErrorKindOther, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			_, err := tr.List(context.Background())
			if core.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %s, want %s", core.KindOf(err), tt.wantKind)
			}
			if core.IsFatal(err) != tt.wantFatal {
				t.Fatalf("fatal = %v, want %v", core.IsFatal(err), tt.wantFatal)
			}
		})
	}
}

func TestTransportListTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}), WithRequestTimeout(30*time.Millisecond))

	_, err := tr.List(context.Background())
	if core.KindOf(err) != core.ErrorKindNetwork {
		t.Fatalf("error = %v (kind %s), want %s", err, core.KindOf(err), core.ErrorKindNetwork)
	}
	if core.IsFatal(err) {
		t.Fatal("stalled list classified fatal; the watcher must retry it")
	}
}

func TestTransportWatch(t *testing.T) {
	var gotQuery map[string]string
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"watch":               r.URL.Query().Get("watch"),
			"resourceVersion":     r.URL.Query().Get("resourceVersion"),
			"allowWatchBookmarks": r.URL.Query().Get("allowWatchBookmarks"),
		}
		fmt.Fprintln(w, `{"type": "ADDED", "object": {"apiVersion": "v1", "kind": "Pod", "metadata": {"namespace": "default", "name": "a", "resourceVersion": "2"}}}`)
		fmt.Fprintln(w, `{"type": "BOOKMARK", "object": {"apiVersion": "v1", "kind": "Pod", "metadata": {"resourceVersion": "5"}}}`)
		fmt.Fprintln(w, `{"type": "DELETED", "object": {"apiVersion": "v1", "kind": "Pod", "metadata": {"namespace": "default", "name": "a", "resourceVersion": "6"}}}`)
	}))

	stream, err := tr.Watch(context.Background(), "41")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Stop()

	if gotQuery["watch"] != "true" || gotQuery["resourceVersion"] != "41" || gotQuery["allowWatchBookmarks"] != "true" {
		t.Fatalf("query = %v", gotQuery)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := []core.RawEventType{core.RawEventAdded, core.RawEventBookmark, core.RawEventDeleted}
	for i, w := range want {
		ev, err := stream.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if ev.Type != w {
			t.Fatalf("event %d type = %s, want %s", i, ev.Type, w)
		}
	}

	if _, err := stream.Next(ctx); err != io.EOF {
		t.Fatalf("Next after stream end = %v, want io.EOF", err)
	}
}

func TestTransportWatchErrorLine(t *testing.T) {
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type": "ERROR", "object": {"kind": "Status", "status": "Failure", "code": 410, "reason": "Expired", "message": "too old resource version"}}`)
	}))

	stream, err := tr.Watch(context.Background(), "1")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Stop()

	_, err = stream.Next(context.Background())
	if !core.IsGone(err) {
		t.Fatalf("error line classified as %s, want gone", core.KindOf(err))
	}
}

func TestTransportWatchMalformedLine(t *testing.T) {
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type": "ADDED", "object": `)
	}))

	stream, err := tr.Watch(context.Background(), "1")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Stop()

	_, err = stream.Next(context.Background())
	if core.KindOf(err) != core.ErrorKindDecode {
		t.Fatalf("kind = %s, want decode", core.KindOf(err))
	}
}

func TestTransportWatchUnknownType(t *testing.T) {
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type": "SYNCED", "object": {}}`)
	}))

	stream, err := tr.Watch(context.Background(), "1")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Stop()

	_, err = stream.Next(context.Background())
	if core.KindOf(err) != core.ErrorKindDecode {
		t.Fatalf("kind = %s, want decode", core.KindOf(err))
	}
}

// An event line the scanner refuses to buffer can never be decoded,
// so replaying it after a reconnect would wedge the watch. The gone
// classification forces a relist that jumps past it.
func TestTransportWatchOversizedLine(t *testing.T) {
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", maxLineBytes+1))
		io.WriteString(w, "\n")
	}))

	stream, err := tr.Watch(context.Background(), "7")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Stop()

	_, err = stream.Next(context.Background())
	if !core.IsGone(err) {
		t.Fatalf("error = %v (kind %s), want gone", err, core.KindOf(err))
	}
}

func TestTransportWatchCancellation(t *testing.T) {
	release := make(chan struct{})
	_, tr := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-release
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := tr.Watch(ctx, "1")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := stream.Next(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Next after cancel = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not unblock on cancellation")
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("not-a-url"); err == nil {
		t.Fatal("expected error for relative base url")
	}
}
