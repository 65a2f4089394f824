package kubernetes

import (
	"fmt"
	"time"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

// serverVersionTTL bounds how long a cached server version is trusted
// before the discovery endpoint is asked again.
const serverVersionTTL = 10 * time.Minute

// Kubernetes bundles the dynamic and discovery clients for one API
// server and acts as the core.TransportFactory for collections served
// by it. All transports built from the same bundle share the
// underlying connection pool.
type Kubernetes struct {
	dynamic  dynamic.Interface
	versions *versionCache
}

// New builds the client bundle from a REST configuration.
func New(cfg *rest.Config) (*Kubernetes, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	disco, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create discovery client: %w", err)
	}

	return &Kubernetes{
		dynamic:  dyn,
		versions: newVersionCache(disco, serverVersionTTL),
	}, nil
}

var _ core.TransportFactory = (*Kubernetes)(nil)

// NewTransport returns a core.Transport for the given collection.
func (k *Kubernetes) NewTransport(spec core.CollectionSpec) (core.Transport, error) {
	if spec.Resource == "" || spec.Version == "" {
		return nil, fmt.Errorf("collection %q: incomplete group/version/resource", spec.Name)
	}
	return newTransport(k.dynamic, k.versions, spec), nil
}
