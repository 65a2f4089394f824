package httpwatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

const (
	// watchTimeoutSeconds asks the server to close the watch after
	// this many seconds; the watcher treats the resulting stream end
	// as ordinary and reconnects from its watermark.
	watchTimeoutSeconds = 300

	// maxLineBytes bounds a single NDJSON watch line. Objects larger
	// than the etcd value limit cannot occur on a conforming server.
	maxLineBytes = 4 << 20
)

// transport implements core.Transport against a raw HTTP endpoint.
type transport struct {
	client *Client
	spec   core.CollectionSpec
}

var _ core.Transport = (*transport)(nil)

// path builds the collection URL path following the API server
// convention: /api/{version} for the core group, /apis/{group}/{version}
// otherwise, with an optional namespaces segment.
func (t *transport) path() string {
	var p string
	if t.spec.Group == "" {
		p = "/api/" + t.spec.Version
	} else {
		p = "/apis/" + t.spec.Group + "/" + t.spec.Version
	}
	if t.spec.Namespace != "" {
		p += "/namespaces/" + t.spec.Namespace
	}
	return p + "/" + t.spec.Resource
}

func (t *transport) get(ctx context.Context, query url.Values) (*http.Response, error) {
	u := *t.client.base
	u.Path = t.path()
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, core.NewTransportError(core.ErrorKindOther, err)
	}
	req.Header.Set("Accept", "application/json")
	if t.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.client.token)
	}

	resp, err := t.client.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.NewTransportError(core.ErrorKindNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusCodeError(resp.StatusCode)
	}
	return resp, nil
}

func (t *transport) selectors() url.Values {
	q := url.Values{}
	if t.spec.LabelSelector != "" {
		q.Set("labelSelector", t.spec.LabelSelector)
	}
	if t.spec.FieldSelector != "" {
		q.Set("fieldSelector", t.spec.FieldSelector)
	}
	return q
}

// listBody mirrors the wire shape of a Kubernetes list response: the
// items plus the list-level resourceVersion watermark.
type listBody struct {
	Metadata struct {
		ResourceVersion string `json:"resourceVersion"`
	} `json:"metadata"`
	Items []map[string]any `json:"items"`
}

// List fetches the collection's full contents in one request.
func (t *transport) List(ctx context.Context) (core.Snapshot, error) {
	lctx, cancel := context.WithTimeout(ctx, t.client.listTimeout)
	defer cancel()

	resp, err := t.get(lctx, t.selectors())
	if err != nil {
		// The deadline is ours, not the caller's; a slow server is a
		// retryable network failure.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return core.Snapshot{}, core.NewTransportError(core.ErrorKindNetwork, err)
		}
		return core.Snapshot{}, err
	}
	defer resp.Body.Close()

	var body listBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return core.Snapshot{}, core.NewTransportError(core.ErrorKindDecode,
			fmt.Errorf("decode list response: %w", err))
	}

	items := make([]*unstructured.Unstructured, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, &unstructured.Unstructured{Object: item})
	}
	return core.Snapshot{Items: items, Version: body.Metadata.ResourceVersion}, nil
}

// Watch opens an NDJSON event stream resuming after the given version.
func (t *transport) Watch(ctx context.Context, version string) (core.EventStream, error) {
	q := t.selectors()
	q.Set("watch", "true")
	q.Set("resourceVersion", version)
	q.Set("timeoutSeconds", strconv.Itoa(watchTimeoutSeconds))
	q.Set("allowWatchBookmarks", "true")

	resp, err := t.get(ctx, q)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	return &lineStream{body: resp.Body, scanner: scanner}, nil
}

// lineStream decodes one watch event per NDJSON line. The underlying
// response body is tied to the watch context, so cancellation unblocks
// a pending Scan.
type lineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	stop    sync.Once
}

func (s *lineStream) Next(ctx context.Context) (core.RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return core.RawEvent{}, err
		}
		if !s.scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return core.RawEvent{}, err
			}
			if err := s.scanner.Err(); err != nil {
				// An oversized line would be replayed verbatim on
				// reconnect from the same watermark; only a relist
				// moves the watch past it.
				if errors.Is(err, bufio.ErrTooLong) {
					return core.RawEvent{}, core.NewTransportError(core.ErrorKindGone, err)
				}
				return core.RawEvent{}, core.NewTransportError(core.ErrorKindNetwork, err)
			}
			return core.RawEvent{}, io.EOF
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return decodeLine(line)
	}
}

func (s *lineStream) Stop() {
	s.stop.Do(func() {
		s.body.Close()
	})
}

// watchLine mirrors the wire shape of one watch event.
type watchLine struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

// decodeLine converts one NDJSON line into a RawEvent, classifying
// embedded error statuses.
func decodeLine(line []byte) (core.RawEvent, error) {
	var wl watchLine
	if err := json.Unmarshal(line, &wl); err != nil {
		return core.RawEvent{}, core.NewTransportError(core.ErrorKindDecode,
			fmt.Errorf("decode watch line: %w", err))
	}

	if wl.Type == "ERROR" {
		var status metav1.Status
		if err := json.Unmarshal(wl.Object, &status); err != nil {
			return core.RawEvent{}, core.NewTransportError(core.ErrorKindDecode,
				fmt.Errorf("decode error status: %w", err))
		}
		return core.RawEvent{}, statusError(&status)
	}

	var typ core.RawEventType
	switch wl.Type {
	case "ADDED":
		typ = core.RawEventAdded
	case "MODIFIED":
		typ = core.RawEventModified
	case "DELETED":
		typ = core.RawEventDeleted
	case "BOOKMARK":
		typ = core.RawEventBookmark
	default:
		return core.RawEvent{}, core.NewTransportError(core.ErrorKindDecode,
			fmt.Errorf("unknown watch event type %q", wl.Type))
	}

	var obj map[string]any
	if err := json.Unmarshal(wl.Object, &obj); err != nil {
		return core.RawEvent{}, core.NewTransportError(core.ErrorKindDecode,
			fmt.Errorf("decode %s object: %w", wl.Type, err))
	}
	return core.RawEvent{Type: typ, Object: &unstructured.Unstructured{Object: obj}}, nil
}

// statusCodeError classifies a non-200 HTTP response. A 404 on the
// collection endpoint is configuration, not weather, so it is fatal.
func statusCodeError(code int) error {
	err := fmt.Errorf("unexpected status %d", code)
	switch code {
	case http.StatusUnauthorized:
		return core.NewTransportError(core.ErrorKindUnauthorized, err)
	case http.StatusForbidden:
		return core.NewTransportError(core.ErrorKindForbidden, err)
	case http.StatusGone:
		return core.NewTransportError(core.ErrorKindGone, err)
	case http.StatusNotFound:
		return core.NewFatalTransportError(core.ErrorKindNotFound, err)
	default:
		if code >= 500 {
			return core.NewTransportError(core.ErrorKindNetwork, err)
		}
		return core.NewTransportError(core.ErrorKindOther, err)
	}
}

// statusError classifies a metav1.Status delivered as a watch ERROR
// line. Expired watch windows arrive this way rather than as an HTTP
// 410 on the request itself.
func statusError(status *metav1.Status) error {
	err := errors.New(status.Message)
	if status.Message == "" {
		err = fmt.Errorf("watch error status %q", status.Reason)
	}
	switch {
	case status.Code == http.StatusGone,
		status.Reason == metav1.StatusReasonGone,
		status.Reason == metav1.StatusReasonExpired:
		return core.NewTransportError(core.ErrorKindGone, err)
	case status.Code == http.StatusUnauthorized:
		return core.NewTransportError(core.ErrorKindUnauthorized, err)
	case status.Code == http.StatusForbidden:
		return core.NewTransportError(core.ErrorKindForbidden, err)
	default:
		return core.NewTransportError(core.ErrorKindOther, err)
	}
}
