//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/ChinYing-Li/kubemirror/internal/cmd"
	"github.com/ChinYing-Li/kubemirror/internal/cmd/mirror"
	"github.com/ChinYing-Li/kubemirror/internal/config"
	"github.com/ChinYing-Li/kubemirror/internal/leader"
	"github.com/ChinYing-Li/kubemirror/internal/observe"
	"github.com/ChinYing-Li/kubemirror/internal/providers"
)

func wireMirror(*config.Config) (*mirror.Mirror, func(), error) {
	panic(wire.Build(
		cmd.ProviderSet,
		providers.ProviderSet,
		leader.ProviderSet,
		observe.ProviderSet,
	))
}
