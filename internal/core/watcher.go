package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// WatchState identifies a phase of the watcher's reconnect/relist
// state machine.
type WatchState string

const (
	// StateInitializing means the watcher is about to issue a full
	// list to (re)establish its working set.
	StateInitializing WatchState = "initializing"
	// StateWatching means the watcher holds a valid watermark and is
	// streaming incremental events.
	StateWatching WatchState = "watching"
	// StateRelistBackoff means the last list attempt failed and the
	// watcher is waiting out a capped exponential delay.
	StateRelistBackoff WatchState = "relist_backoff"
	// StateStopped is terminal: the watcher hit a fatal condition or
	// its context was cancelled.
	StateStopped WatchState = "stopped"
)

// WatchSink receives state transitions, emitted outcomes, and errors
// for observability. It is decoupled from the outcome stream: sink
// calls never block or fail the watcher.
type WatchSink interface {
	OnStateChange(collection string, from, to WatchState)
	OnOutcome(collection string, kind OutcomeKind)
	OnError(collection string, err error)
}

// NopSink discards all observations.
type NopSink struct{}

func (NopSink) OnStateChange(string, WatchState, WatchState) {}
func (NopSink) OnOutcome(string, OutcomeKind)                {}
func (NopSink) OnError(string, error)                        {}

const (
	defaultBackoffFloor   = 500 * time.Millisecond
	defaultBackoffCeiling = 30 * time.Second
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithBackoff overrides the relist backoff floor and ceiling.
func WithBackoff(floor, ceiling time.Duration) WatcherOption {
	return func(w *Watcher) { w.backoff = newBackoff(floor, ceiling) }
}

// WithSink attaches an observability sink.
func WithSink(sink WatchSink) WatcherOption {
	return func(w *Watcher) { w.sink = sink }
}

// WithWatcherLogger overrides the watcher's structured logger.
func WithWatcherLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log }
}

// Watcher produces a lazy, infinite, restartable sequence of
// WatchOutcome values for one resource collection, hiding all
// reconnect and relist mechanics from its consumer. It owns no object
// state beyond the current resource version and the backoff timer.
//
// A Watcher is driven by a single goroutine calling Next; it is not
// safe for concurrent use.
type Watcher struct {
	collection string
	transport  Transport
	sink       WatchSink
	log        *slog.Logger
	backoff    *backoff

	state   WatchState
	version string
	stream  EventStream
	seq     uint64
}

// NewWatcher returns a watcher for the given collection name and
// transport, starting in the Initializing state.
func NewWatcher(collection string, transport Transport, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		collection: collection,
		transport:  transport,
		sink:       NopSink{},
		log:        slog.Default().With("component", "watcher", "collection", collection),
		backoff:    newBackoff(defaultBackoffFloor, defaultBackoffCeiling),
		state:      StateInitializing,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the watcher's current phase.
func (w *Watcher) State() WatchState {
	return w.state
}

// Version returns the last resource version observed.
func (w *Watcher) Version() string {
	return w.version
}

// Stop releases the underlying watch stream, if any. After Stop the
// watcher may still be driven again; the next call to Next reconnects.
func (w *Watcher) Stop() {
	w.closeStream()
}

// Next blocks until the watcher can emit the next outcome. It returns
// a non-nil error only when ctx is cancelled or a fatal transport
// condition was hit; every other failure is absorbed by the
// reconnect/relist state machine. The first outcome after creation,
// and after every history gap, is a RESTARTED snapshot.
func (w *Watcher) Next(ctx context.Context) (WatchOutcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			w.shutdown()
			return WatchOutcome{}, err
		}

		switch w.state {
		case StateInitializing:
			outcome, ok, err := w.relist(ctx)
			if err != nil {
				return WatchOutcome{}, err
			}
			if ok {
				return outcome, nil
			}

		case StateRelistBackoff:
			delay := w.backoff.Next()
			w.log.Debug("waiting before relist", "delay", delay)
			if !sleepCtx(ctx, delay) {
				w.shutdown()
				return WatchOutcome{}, ctx.Err()
			}
			w.setState(StateInitializing)

		case StateWatching:
			outcome, ok, err := w.stepWatch(ctx)
			if err != nil {
				return WatchOutcome{}, err
			}
			if ok {
				return outcome, nil
			}

		case StateStopped:
			return WatchOutcome{}, errors.New("watcher stopped")
		}
	}
}

// relist performs the full list of the Initializing state. The bool
// result reports whether an outcome was produced; a false result with
// nil error means the state machine moved on without emitting.
func (w *Watcher) relist(ctx context.Context) (WatchOutcome, bool, error) {
	snap, err := w.transport.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			w.shutdown()
			return WatchOutcome{}, false, ctx.Err()
		}
		w.sink.OnError(w.collection, err)
		if IsFatal(err) {
			w.log.Error("list failed permanently", "error", err)
			w.setState(StateStopped)
			return WatchOutcome{}, false, err
		}
		w.log.Warn("list failed, backing off", "kind", KindOf(err), "error", err)
		w.setState(StateRelistBackoff)
		return WatchOutcome{}, false, nil
	}

	w.version = snap.Version
	w.backoff.Reset()
	w.setState(StateWatching)
	w.log.Info("relisted collection", "objects", len(snap.Items), "version", snap.Version)

	return w.emit(WatchOutcome{
		Kind:     OutcomeRestarted,
		Snapshot: snap.Items,
		Version:  snap.Version,
	}), true, nil
}

// stepWatch advances the Watching state by one transition: opening the
// stream if needed, then decoding one event.
func (w *Watcher) stepWatch(ctx context.Context) (WatchOutcome, bool, error) {
	if w.stream == nil {
		stream, err := w.transport.Watch(ctx, w.version)
		if err != nil {
			return WatchOutcome{}, false, w.handleWatchError(ctx, err)
		}
		w.backoff.Reset()
		w.stream = stream
	}

	ev, err := w.stream.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Server-side watch timeout or orderly close; the
			// watermark is still valid, so reconnect in place.
			w.log.Debug("watch stream closed, reconnecting", "version", w.version)
			w.closeStream()
			return WatchOutcome{}, false, nil
		}
		if KindOf(err) == ErrorKindDecode {
			// A single malformed event is skipped; the stream
			// stays open.
			w.sink.OnError(w.collection, err)
			w.log.Warn("skipping undecodable event", "error", err)
			return WatchOutcome{}, false, nil
		}
		w.closeStream()
		return WatchOutcome{}, false, w.handleWatchError(ctx, err)
	}

	return w.translate(ev), true, nil
}

// handleWatchError classifies a watch-open or mid-stream failure. Gone
// is the sole trigger for a full relist; other retryable failures wait
// out the backoff delay while keeping the watermark.
func (w *Watcher) handleWatchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		w.shutdown()
		return ctx.Err()
	}
	if IsGone(err) {
		// The watch history gap can no longer be bridged
		// incrementally. Not an error toward subscribers.
		w.log.Info("resource version expired, forcing relist", "version", w.version)
		w.setState(StateInitializing)
		return nil
	}
	w.sink.OnError(w.collection, err)
	if IsFatal(err) {
		w.log.Error("watch failed permanently", "error", err)
		w.setState(StateStopped)
		return err
	}
	w.log.Warn("watch failed, backing off", "kind", KindOf(err), "error", err)
	if !sleepCtx(ctx, w.backoff.Next()) {
		w.shutdown()
		return ctx.Err()
	}
	return nil
}

// translate converts one raw watch event into a WatchOutcome and
// advances the watermark.
func (w *Watcher) translate(ev RawEvent) WatchOutcome {
	version := ev.Object.GetResourceVersion()
	w.version = version

	switch ev.Type {
	case RawEventBookmark:
		return w.emit(WatchOutcome{Kind: OutcomeBookmark, Version: version})
	case RawEventDeleted:
		return w.emit(WatchOutcome{Kind: OutcomeDeleted, Object: ev.Object, Version: version})
	default: // ADDED and MODIFIED both carry the full current body.
		return w.emit(WatchOutcome{Kind: OutcomeApplied, Object: ev.Object, Version: version})
	}
}

// emit stamps the outcome with the next sequence number and reports it
// to the sink.
func (w *Watcher) emit(o WatchOutcome) WatchOutcome {
	w.seq++
	o.Sequence = w.seq
	w.sink.OnOutcome(w.collection, o.Kind)
	return o
}

func (w *Watcher) setState(to WatchState) {
	from := w.state
	if from == to {
		return
	}
	w.state = to
	w.sink.OnStateChange(w.collection, from, to)
}

func (w *Watcher) closeStream() {
	if w.stream != nil {
		w.stream.Stop()
		w.stream = nil
	}
}

func (w *Watcher) shutdown() {
	w.closeStream()
	w.setState(StateStopped)
}
