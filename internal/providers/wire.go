// Package providers aggregates all infrastructure-layer
// implementations (kubernetes, httpwatch) into a single Wire provider
// set.
package providers

import (
	"fmt"

	"github.com/google/wire"
	"k8s.io/client-go/rest"

	"github.com/ChinYing-Li/kubemirror/internal/config"
	"github.com/ChinYing-Li/kubemirror/internal/core"
	"github.com/ChinYing-Li/kubemirror/internal/providers/httpwatch"
	"github.com/ChinYing-Li/kubemirror/internal/providers/kubernetes"
)

// ProvideRestConfig resolves API server access for the kubernetes
// source and for leader election. When the daemon watches an http
// source with leader election disabled, no cluster access is needed
// and a missing configuration is not an error.
func ProvideRestConfig(cfg *config.Config) (*rest.Config, error) {
	restCfg, err := kubernetes.ProvideRestConfig(cfg.MirrorKubeconfig())
	if err != nil {
		if cfg.MirrorSource() == config.SourceHTTP && !cfg.MirrorLeaderEnabled() {
			return nil, nil
		}
		return nil, err
	}
	return restCfg, nil
}

// ProvideTransportFactory selects the watch source per configuration.
func ProvideTransportFactory(cfg *config.Config, restCfg *rest.Config) (core.TransportFactory, error) {
	switch cfg.MirrorSource() {
	case config.SourceKubernetes:
		k, err := kubernetes.New(restCfg)
		if err != nil {
			return nil, err
		}
		return k, nil
	case config.SourceHTTP:
		var opts []httpwatch.Option
		if token := cfg.MirrorHTTPBearerToken(); token != "" {
			opts = append(opts, httpwatch.WithBearerToken(token))
		}
		c, err := httpwatch.New(cfg.MirrorHTTPBaseURL(), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown watch source %q", cfg.MirrorSource())
	}
}

// ProviderSet is the Wire provider set for all external adapters.
var ProviderSet = wire.NewSet(
	ProvideRestConfig,
	ProvideTransportFactory,
)
