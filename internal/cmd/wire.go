package cmd

import (
	"github.com/google/wire"

	"github.com/ChinYing-Li/kubemirror/internal/cmd/mirror"
)

// ProviderSet is the Wire provider set for the CLI layer.
var ProviderSet = wire.NewSet(
	mirror.NewMirror,
)
