package core

import (
	"context"
)

// Pipeline is one independently owned Watcher/Store/Reflector triple
// for a single collection, with an explicit lifecycle: create, run,
// cancel. Multiple pipelines share no mutable state.
//
// Start and Stop satisfy the transport.Listener contract so pipelines
// participate in the daemon's managed lifecycle alongside the HTTP
// server.
type Pipeline struct {
	spec      CollectionSpec
	store     *Store
	watcher   *Watcher
	reflector *Reflector
}

// NewPipeline assembles a pipeline for the given collection over the
// given transport.
func NewPipeline(spec CollectionSpec, transport Transport, opts ...WatcherOption) *Pipeline {
	store := NewStore()
	watcher := NewWatcher(spec.Name, transport, opts...)
	return &Pipeline{
		spec:      spec,
		store:     store,
		watcher:   watcher,
		reflector: NewReflector(spec.Name, watcher, store),
	}
}

// Spec returns the collection this pipeline mirrors.
func (p *Pipeline) Spec() CollectionSpec {
	return p.spec
}

// Store returns the pipeline's cache for concurrent readers.
func (p *Pipeline) Store() *Store {
	return p.store
}

// Watcher exposes the pipeline's watcher for state inspection.
func (p *Pipeline) Watcher() *Watcher {
	return p.watcher
}

// Start runs the reflect loop until ctx is cancelled or a fatal
// condition stops the watcher.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.reflector.Run(ctx)
}

// Stop releases the live watch stream. The reflect loop itself stops
// via context cancellation.
func (p *Pipeline) Stop(_ context.Context) error {
	p.watcher.Stop()
	return nil
}

// MirrorSet owns the pipelines of all configured collections and is
// the read-side entry point for consumers: stores are looked up by
// collection name.
type MirrorSet struct {
	order     []string
	pipelines map[string]*Pipeline
}

// NewMirrorSet builds one pipeline per collection spec, creating each
// transport through the factory.
func NewMirrorSet(specs []CollectionSpec, factory TransportFactory, opts ...WatcherOption) (*MirrorSet, error) {
	m := &MirrorSet{
		pipelines: make(map[string]*Pipeline, len(specs)),
	}
	for _, spec := range specs {
		transport, err := factory.NewTransport(spec)
		if err != nil {
			return nil, err
		}
		m.order = append(m.order, spec.Name)
		m.pipelines[spec.Name] = NewPipeline(spec, transport, opts...)
	}
	return m, nil
}

// Pipelines returns the pipelines in configuration order.
func (m *MirrorSet) Pipelines() []*Pipeline {
	out := make([]*Pipeline, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.pipelines[name])
	}
	return out
}

// Store returns the cache for the named collection.
func (m *MirrorSet) Store(collection string) (*Store, error) {
	p, ok := m.pipelines[collection]
	if !ok {
		return nil, &ErrCollectionNotFound{Collection: collection}
	}
	return p.Store(), nil
}

// Pipeline returns the named pipeline.
func (m *MirrorSet) Pipeline(collection string) (*Pipeline, error) {
	p, ok := m.pipelines[collection]
	if !ok {
		return nil, &ErrCollectionNotFound{Collection: collection}
	}
	return p, nil
}
