package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"videoshelf/internal/thumbs"
	"videoshelf/internal/version"
)

func newPurgeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete tombstoned records permanently",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			purged, err := st.PurgeTombstoned(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			cmd.Printf("purged %d tombstoned records\n", purged)
			return nil
		},
	}
}

func newThumbsGCCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "thumbs-gc",
		Short: "Remove thumbnails for videos no longer in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			active, err := st.ActivePaths(cmd.Context())
			if err != nil {
				return fmt.Errorf("list active paths: %w", err)
			}

			gen := thumbs.New(cfg.ThumbnailDir(), cfg.Tools.FFmpegPath, cfg.Thumbnails.Width, cfg.Thumbnails.Height)
			removed := gen.Sweep(active)
			cmd.Printf("removed %d orphaned thumbnails\n", removed)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("videoshelf %s (%s) %s\n", version.Version, version.Commit, runtime.Version())
		},
	}
}
