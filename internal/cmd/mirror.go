// Package cmd defines the Cobra subcommands and their Wire provider
// sets. It bridges configuration, dependency injection, and the
// daemon runtime.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChinYing-Li/kubemirror/internal/cmd/mirror"
	"github.com/ChinYing-Li/kubemirror/internal/config"
)

// MirrorInjector builds the fully wired daemon runtime; the cleanup
// function releases its resources.
type MirrorInjector func() (*mirror.Mirror, func(), error)

// NewMirrorCommand returns the mirror subcommand, which watches the
// configured collections and serves the read-only API.
func NewMirrorCommand(conf *config.Config, newMirror MirrorInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "mirror",
		Short:   "Watch collections and serve their mirrored state over HTTP",
		Example: "kubemirror mirror --collections=v1/pods --collections=apps/v1/deployments --address=:8383",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, cleanup, err := newMirror()
			if err != nil {
				return fmt.Errorf("failed to initialize mirror: %w", err)
			}
			defer cleanup()

			cfg := mirror.Config{
				Address:          conf.MirrorAddress(),
				AllowedOrigins:   conf.MirrorAllowedOrigins(),
				Collections:      conf.MirrorCollections(),
				BackoffFloor:     conf.MirrorBackoffFloor(),
				BackoffCeiling:   conf.MirrorBackoffCeiling(),
				SubscriberBuffer: conf.MirrorSubscriberBuffer(),
			}

			return m.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.MirrorOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}
