package mirror

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ChinYing-Li/kubemirror/internal/observe"
)

func TestMirrorRunStopsOnCancel(t *testing.T) {
	sink, err := observe.NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	m := NewMirror(stubFactory{}, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, Config{
			Address:        "127.0.0.1:0",
			Collections:    []string{"v1/pods"},
			BackoffFloor:   time.Millisecond,
			BackoffCeiling: 4 * time.Millisecond,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestMirrorRunRejectsBadCollections(t *testing.T) {
	sink, err := observe.NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	m := NewMirror(stubFactory{}, sink, nil)

	if err := m.Run(context.Background(), Config{Collections: []string{"pods"}}); err == nil {
		t.Fatal("expected error for malformed collection")
	}
	if err := m.Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty collections")
	}
}
