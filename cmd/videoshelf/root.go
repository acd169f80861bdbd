package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"videoshelf/internal/config"
	"videoshelf/internal/indexer"
	"videoshelf/internal/logging"
	"videoshelf/internal/probe"
	"videoshelf/internal/store"
	"videoshelf/internal/thumbs"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	rootCmd := &cobra.Command{
		Use:           "videoshelf",
		Short:         "Video library indexer and server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevelFlag != "" {
				level, ok := logging.ParseLevel(logLevelFlag)
				if !ok {
					return fmt.Errorf("unknown log level %q", logLevelFlag)
				}
				logging.SetLevel(level)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newScanCommand(&configFlag))
	rootCmd.AddCommand(newQueryCommand(&configFlag))
	rootCmd.AddCommand(newPurgeCommand(&configFlag))
	rootCmd.AddCommand(newThumbsGCCommand(&configFlag))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig resolves the runtime configuration and prepares the data
// directories.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return cfg, fmt.Errorf("prepare data directories: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DatabasePath(), store.DefaultOpenOptions())
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return st, nil
}

// buildIndexer assembles the scan pipeline from the configuration.
func buildIndexer(cfg config.Config, st *store.Store) *indexer.Indexer {
	prober := probe.New(cfg.Tools.FFprobePath)
	gen := thumbs.New(cfg.ThumbnailDir(), cfg.Tools.FFmpegPath, cfg.Thumbnails.Width, cfg.Thumbnails.Height)
	return indexer.New(st, prober, gen)
}
