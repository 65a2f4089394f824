// Package mirror implements the daemon runtime: one watch pipeline
// per configured collection plus the read-only HTTP API, run together
// under the transport lifecycle supervisor.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChinYing-Li/kubemirror/internal/core"
	"github.com/ChinYing-Li/kubemirror/internal/leader"
	"github.com/ChinYing-Li/kubemirror/internal/observe"
	"github.com/ChinYing-Li/kubemirror/internal/transport"
	"github.com/ChinYing-Li/kubemirror/internal/transport/http"
)

// Config holds the runtime parameters for a Mirror.
type Config struct {
	Address          string
	AllowedOrigins   []string
	Collections      []string
	BackoffFloor     time.Duration
	BackoffCeiling   time.Duration
	SubscriberBuffer int
}

// Mirror binds the watch pipelines and the HTTP API. When an elector
// is present the pipelines run only while this replica holds the
// lease; the API stays up on every replica.
type Mirror struct {
	factory core.TransportFactory
	sink    *observe.Sink
	elector *leader.Elector
	log     *slog.Logger
}

// NewMirror returns a Mirror wired to the given transport factory and
// observability sink. elector may be nil when leader election is
// disabled.
func NewMirror(factory core.TransportFactory, sink *observe.Sink, elector *leader.Elector) *Mirror {
	return &Mirror{
		factory: factory,
		sink:    sink,
		elector: elector,
		log:     slog.Default().With("component", "mirror"),
	}
}

// Run starts the pipelines and the HTTP server. It blocks until ctx
// is cancelled or an unrecoverable error occurs.
func (m *Mirror) Run(ctx context.Context, cfg Config) error {
	specs, err := core.ParseCollections(cfg.Collections)
	if err != nil {
		return fmt.Errorf("parse collections: %w", err)
	}
	if len(specs) == 0 {
		return fmt.Errorf("at least one collection must be configured")
	}

	set, err := core.NewMirrorSet(specs, m.factory,
		core.WithBackoff(cfg.BackoffFloor, cfg.BackoffCeiling),
		core.WithSink(m.sink),
	)
	if err != nil {
		return fmt.Errorf("build mirror set: %w", err)
	}
	for _, p := range set.Pipelines() {
		if err := m.sink.ObserveStore(p.Spec().Name, p.Store()); err != nil {
			return err
		}
	}

	handler := NewHandler(set, m.elector, cfg.SubscriberBuffer)
	httpSrv, err := http.NewServer(
		http.WithAddress(cfg.Address),
		http.WithAllowedOrigins(cfg.AllowedOrigins),
		http.WithMount(handler.Mount),
	)
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}

	if m.elector == nil {
		listeners := []transport.Listener{httpSrv}
		for _, p := range set.Pipelines() {
			listeners = append(listeners, p)
		}
		return transport.Serve(ctx, listeners...)
	}
	return m.runElected(ctx, httpSrv, set)
}

// runElected keeps the HTTP API serving on every replica while the
// pipelines follow the lease. On losing leadership the pipeline
// context is cancelled and the stores keep their last mirrored state.
func (m *Mirror) runElected(ctx context.Context, httpSrv *http.Server, set *core.MirrorSet) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return transport.Serve(egCtx, httpSrv)
	})

	eg.Go(func() error {
		return m.elector.Run(egCtx,
			func(leadCtx context.Context) {
				m.log.Info("acquired leadership, starting pipelines",
					"identity", m.elector.Identity())
				var listeners []transport.Listener
				for _, p := range set.Pipelines() {
					listeners = append(listeners, p)
				}
				if err := transport.Serve(leadCtx, listeners...); err != nil {
					m.log.Error("pipelines stopped", "error", err)
				}
			},
			func() {
				m.log.Info("lost leadership, pipelines stopped")
			},
		)
	})

	return eg.Wait()
}
