// Package main is the entry point for the kubemirror binary. The
// mirror subcommand watches configured resource collections and
// serves their mirrored state over a read-only HTTP API.
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChinYing-Li/kubemirror/internal/cmd"
	"github.com/ChinYing-Li/kubemirror/internal/cmd/mirror"
	"github.com/ChinYing-Li/kubemirror/internal/config"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration and executes the root Cobra command.
func run(ctx context.Context) error {
	conf, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rootCmd, err := newCmd(conf)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return rootCmd.ExecuteContext(ctx)
}

// newCmd constructs the root Cobra command and registers the mirror
// subcommand. The injector closure defers dependency construction to
// command execution so that flags are parsed first.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "kubemirror",
		Short:         "Mirror watched resource collections into local read-optimized stores",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	mirrorCmd, err := cmd.NewMirrorCommand(conf, func() (*mirror.Mirror, func(), error) {
		return wireMirror(conf)
	})
	if err != nil {
		return nil, err
	}

	c.AddCommand(mirrorCmd)

	return c, nil
}
