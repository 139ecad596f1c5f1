// Package cli wires the customfields commands: the HTTP server and the
// definition and token utilities.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"customfields/internal/config"
	"customfields/internal/logging"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "customfields",
		Short:         "Content types with validated custom fields",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: customfields.yaml in . or ../..)")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		if _, err := logging.New(cfg.Log.Level); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newDefinitionsCmd(load),
		newTokenCmd(load),
	)
	return root
}

type configLoader func() (*config.Config, error)

func syncLogger() {
	// Sync fails on non-file stderr; nothing to do about it.
	_ = zap.L().Sync()
}
