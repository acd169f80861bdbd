package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"videoshelf/internal/store"
	"videoshelf/internal/videofmt"
)

func newQueryCommand(configFlag *string) *cobra.Command {
	var (
		name        string
		minSize     int64
		maxSize     int64
		minDuration float64
		maxDuration float64
		formats     []string
		sortBy      string
		order       string
		limit       int
		offset      int
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the indexed library",
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

			opts := store.QueryOptions{
				NameContains:      name,
				Sort:              store.SortField(sortBy),
				Order:             store.SortOrder(order),
				Limit:             limit,
				Offset:            offset,
				IncludeTombstoned: all,
			}
			if cmd.Flags().Changed("min-size") {
				opts.MinSize = &minSize
			}
			if cmd.Flags().Changed("max-size") {
				opts.MaxSize = &maxSize
			}
			if cmd.Flags().Changed("min-duration") {
				opts.MinDuration = &minDuration
			}
			if cmd.Flags().Changed("max-duration") {
				opts.MaxDuration = &maxDuration
			}
			for _, raw := range formats {
				f := videofmt.Format(strings.ToLower(raw))
				if !f.Valid() {
					return fmt.Errorf("unsupported format %q", raw)
				}
				opts.Formats = append(opts.Formats, f)
			}

			res, err := st.Query(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			printQueryResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Substring to match against file names")
	cmd.Flags().Int64Var(&minSize, "min-size", 0, "Minimum file size in bytes")
	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "Maximum file size in bytes")
	cmd.Flags().Float64Var(&minDuration, "min-duration", 0, "Minimum duration in seconds")
	cmd.Flags().Float64Var(&maxDuration, "max-duration", 0, "Maximum duration in seconds")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Restrict to formats (mp4, mkv, avi, mov)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort field (name, size, duration, resolution, scanned, created, modified)")
	cmd.Flags().StringVar(&order, "order", "", "Sort order (asc, desc)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results per page")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results to skip")
	cmd.Flags().BoolVar(&all, "all", false, "Include tombstoned records")

	return cmd
}

func printQueryResult(cmd *cobra.Command, res *store.QueryResult) {
	rows := make([][]string, 0, len(res.Items))
	for i := range res.Items {
		item := &res.Items[i]
		rows = append(rows, []string{
			item.FileName,
			string(item.Format),
			formatBytes(item.FileSizeBytes),
			formatDuration(item.DurationSeconds),
			fmt.Sprintf("%dx%d", item.Width, item.Height),
			string(item.Status),
		})
	}
	cmd.Println(renderTable([]string{"Name", "Format", "Size", "Duration", "Resolution", "Status"}, rows, 3, 4))
	cmd.Printf("%d-%d of %d\n", res.Offset+1, res.Offset+len(res.Items), res.Total)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
