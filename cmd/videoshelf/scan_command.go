package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"videoshelf/internal/indexer"
)

func newScanCommand(configFlag *string) *cobra.Command {
	var workerCount int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the library once and exit",
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

			ix := buildIndexer(cfg, st)
			if workerCount > 0 {
				ix.SetWorkerCount(workerCount)
			}

			res, err := ix.Scan(cmd.Context(), cfg.Library.ScanRoots)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}

			printScanResult(cmd, res)
			if res.Outcome == indexer.OutcomeFailed {
				return fmt.Errorf("scan %s failed", res.RunID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workerCount, "workers", 0, "Number of extraction workers (default: sized from CPU count)")
	return cmd
}

func printScanResult(cmd *cobra.Command, res *indexer.ScanResult) {
	rows := [][]string{
		{"Run", res.RunID},
		{"Outcome", string(res.Outcome)},
		{"Duration", res.Duration().Round(time.Millisecond).String()},
		{"Files found", strconv.Itoa(res.FilesFound)},
		{"Files processed", strconv.Itoa(res.FilesProcessed)},
		{"Files failed", strconv.Itoa(res.FilesFailed)},
		{"Directories failed", strconv.Itoa(res.DirsFailed)},
		{"Tombstoned (missing)", strconv.Itoa(res.TombstonedMissing)},
		{"Tombstoned (excluded)", strconv.Itoa(res.TombstonedExcluded)},
		{"Thumbnails removed", strconv.Itoa(res.ThumbnailsRemoved)},
	}
	cmd.Println(renderTable([]string{"Field", "Value"}, rows, 2))

	for _, root := range res.SkippedRoots {
		cmd.Printf("skipped root: %s\n", root)
	}
	for _, msg := range res.Errors {
		cmd.Printf("error: %s\n", msg)
	}
	if res.ErrorsOmitted > 0 {
		cmd.Printf("...and %d more errors\n", res.ErrorsOmitted)
	}
}
