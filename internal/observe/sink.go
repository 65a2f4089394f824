// Package observe bridges watcher and store activity into structured
// logs and OpenTelemetry metrics. It implements core.WatchSink; sink
// calls never block and never fail the pipeline.
package observe

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

const meterName = "kubemirror"

// Sink records pipeline activity: one counter per outcome kind, a
// relist counter, an error counter keyed by classification, and an
// observable gauge per mirrored store.
type Sink struct {
	log *slog.Logger

	meter    metric.Meter
	outcomes metric.Int64Counter
	relists  metric.Int64Counter
	errs     metric.Int64Counter
}

var _ core.WatchSink = (*Sink)(nil)

// NewSink builds a sink on the global meter provider. The provider
// must be configured (for example by the metrics exporter in the
// daemon handler) before measurements are exported.
func NewSink(log *slog.Logger) (*Sink, error) {
	meter := otel.Meter(meterName)

	outcomes, err := meter.Int64Counter("kubemirror.outcomes",
		metric.WithDescription("Watch outcomes applied per collection and kind"))
	if err != nil {
		return nil, fmt.Errorf("create outcome counter: %w", err)
	}
	relists, err := meter.Int64Counter("kubemirror.relists",
		metric.WithDescription("Full relists per collection"))
	if err != nil {
		return nil, fmt.Errorf("create relist counter: %w", err)
	}
	errs, err := meter.Int64Counter("kubemirror.watch_errors",
		metric.WithDescription("Transport errors per collection and kind"))
	if err != nil {
		return nil, fmt.Errorf("create error counter: %w", err)
	}

	return &Sink{
		log:      log.With("component", "observe"),
		meter:    meter,
		outcomes: outcomes,
		relists:  relists,
		errs:     errs,
	}, nil
}

// OnStateChange logs the transition and counts entries into the
// initializing state, which correspond one-to-one with relists.
func (s *Sink) OnStateChange(collection string, from, to core.WatchState) {
	s.log.Debug("watch state change",
		"collection", collection, "from", string(from), "to", string(to))

	if to == core.StateInitializing {
		s.relists.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("collection", collection)))
	}
}

func (s *Sink) OnOutcome(collection string, kind core.OutcomeKind) {
	s.outcomes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("kind", string(kind)),
	))
}

func (s *Sink) OnError(collection string, err error) {
	s.log.Warn("watch error",
		"collection", collection, "kind", string(core.KindOf(err)), "error", err)

	s.errs.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("kind", string(core.KindOf(err))),
	))
}

// ObserveStore registers a gauge reporting the store's object count.
func (s *Sink) ObserveStore(collection string, store *core.Store) error {
	_, err := s.meter.Int64ObservableGauge("kubemirror.store_objects",
		metric.WithDescription("Objects currently mirrored per collection"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(store.Len()),
				metric.WithAttributes(attribute.String("collection", collection)))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create store gauge: %w", err)
	}
	return nil
}
