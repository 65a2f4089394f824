package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/ChinYing-Li/kubemirror/internal/core"
	"github.com/ChinYing-Li/kubemirror/internal/leader"
)

// clusterScope is the namespace path segment used for objects that
// have no namespace.
const clusterScope = "-"

// Handler serves the read-only mirror API. All responses come from
// local stores; no request ever reaches the watched source.
type Handler struct {
	set     *core.MirrorSet
	elector *leader.Elector
	buffer  int
}

// NewHandler returns a handler over the given mirror set. buffer is
// the per-subscriber event queue size for the events endpoint.
func NewHandler(set *core.MirrorSet, elector *leader.Elector, buffer int) *Handler {
	return &Handler{set: set, elector: elector, buffer: buffer}
}

// Mount registers all routes, including the observability endpoints,
// onto the mux.
func (h *Handler) Mount(mux *http.ServeMux) error {
	// Prometheus metrics via the OpenTelemetry bridge. Instruments
	// created earlier on the global meter re-bind to this provider.
	exporter, err := prometheus.New()
	if err != nil {
		return err
	}
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /v1/collections", h.listCollections)
	mux.HandleFunc("GET /v1/collections/{collection}/objects", h.listObjects)
	mux.HandleFunc("GET /v1/collections/{collection}/objects/{namespace}/{name}", h.getObject)
	mux.HandleFunc("GET /v1/collections/{collection}/events", h.streamEvents)

	return nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.elector != nil {
		body["leader"] = h.elector.IsLeader()
		body["identity"] = h.elector.Identity()
	}
	writeJSON(w, http.StatusOK, body)
}

// collectionInfo summarizes one mirrored collection.
type collectionInfo struct {
	Name            string `json:"name"`
	Group           string `json:"group,omitempty"`
	Version         string `json:"version"`
	Resource        string `json:"resource"`
	Namespace       string `json:"namespace,omitempty"`
	Objects         int    `json:"objects"`
	ResourceVersion string `json:"resourceVersion"`
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	var infos []collectionInfo
	for _, p := range h.set.Pipelines() {
		spec := p.Spec()
		infos = append(infos, collectionInfo{
			Name:            spec.Name,
			Group:           spec.Group,
			Version:         spec.Version,
			Resource:        spec.Resource,
			Namespace:       spec.Namespace,
			Objects:         p.Store().Len(),
			ResourceVersion: p.Store().Version(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": infos})
}

// listObjects returns the collection snapshot in the same wire shape
// a list request against the source would return, optionally filtered
// by the namespace query parameter.
func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	namespace := r.URL.Query().Get("namespace")

	items := []map[string]any{}
	for _, obj := range store.Snapshot() {
		if namespace != "" && obj.GetNamespace() != namespace {
			continue
		}
		items = append(items, obj.Object)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": map[string]any{"resourceVersion": store.Version()},
		"items":    items,
	})
}

// getObject looks up a single object by namespace and name. The "-"
// segment addresses cluster-scoped objects.
func (h *Handler) getObject(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	namespace := r.PathValue("namespace")
	if namespace == clusterScope {
		namespace = ""
	}
	name := r.PathValue("name")

	for _, obj := range store.Snapshot() {
		if obj.GetNamespace() == namespace && obj.GetName() == name {
			writeJSON(w, http.StatusOK, obj.Object)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("object %s/%s not found", namespace, name))
}

// eventPayload is the SSE data body for one outcome.
type eventPayload struct {
	Kind     core.OutcomeKind `json:"kind"`
	Version  string           `json:"version,omitempty"`
	Sequence uint64           `json:"sequence,omitempty"`
	Object   map[string]any   `json:"object,omitempty"`
	Items    []map[string]any `json:"items,omitempty"`
}

func toPayload(o core.WatchOutcome) eventPayload {
	p := eventPayload{
		Kind:     o.Kind,
		Version:  o.Version,
		Sequence: o.Sequence,
	}
	if o.Object != nil {
		p.Object = o.Object.Object
	}
	if o.Kind == core.OutcomeRestarted {
		p.Items = make([]map[string]any, 0, len(o.Snapshot))
		for _, obj := range o.Snapshot {
			p.Items = append(p.Items, obj.Object)
		}
	}
	return p
}

// streamEvents bridges a store subscription onto server-sent events.
// The first event is a synthetic RESTARTED carrying the current
// snapshot, so a consumer needs no separate list request.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before snapshotting so no event between the snapshot
	// and the first receive is lost. Duplicates across the seam are
	// tolerated by consumers the same way watch restarts are.
	sub := store.Subscribe(h.buffer)
	defer sub.Cancel()

	restart := core.WatchOutcome{
		Kind:     core.OutcomeRestarted,
		Snapshot: store.Snapshot(),
		Version:  store.Version(),
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, restart); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case outcome, open := <-sub.C():
			if !open {
				return
			}
			if err := writeEvent(w, outcome); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, o core.WatchOutcome) error {
	data, err := json.Marshal(toPayload(o))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", o.Kind, data)
	return err
}

// store resolves the collection path segment, writing a 404 when the
// collection is not mirrored.
func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*core.Store, bool) {
	store, err := h.set.Store(r.PathValue("collection"))
	if err != nil {
		var notFound *core.ErrCollectionNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return store, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
