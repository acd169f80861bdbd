package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable renders rows under headers. Columns listed in rightAlign
// (1-based) are right-aligned, which reads better for sizes and counts.
func renderTable(headers []string, rows [][]string, rightAlign ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	var configs []table.ColumnConfig
	for _, col := range rightAlign {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
