package observe

import (
	"log/slog"

	"github.com/google/wire"
)

// ProvideSink builds a Sink on the process-wide logger.
func ProvideSink() (*Sink, error) {
	return NewSink(slog.Default())
}

var ProviderSet = wire.NewSet(ProvideSink)
