package leader

import (
	"github.com/google/wire"
	"k8s.io/client-go/rest"

	"github.com/ChinYing-Li/kubemirror/internal/config"
)

// ProvideElector builds an Elector from the daemon configuration, or
// nil when leader election is disabled.
func ProvideElector(cfg *config.Config, restCfg *rest.Config) (*Elector, error) {
	if !cfg.MirrorLeaderEnabled() {
		return nil, nil
	}
	return NewElector(restCfg, Config{
		Namespace: cfg.MirrorLeaderNamespace(),
		LeaseName: cfg.MirrorLeaderLeaseName(),
	})
}

var ProviderSet = wire.NewSet(ProvideElector)
