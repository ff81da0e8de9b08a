package report

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/entrhq/sentinel/pkg/history"
	"github.com/entrhq/sentinel/pkg/scan"
)

// Table renders results as a rounded terminal table.
func Table(results []scan.Result) string {
	if len(results) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Addon", "Installed", "Published", "Status"})

	for i, r := range results {
		tw.AppendRow(table.Row{
			i + 1,
			r.Name,
			orDash(r.CurrentVersion),
			orDash(r.ManifestVersion),
			plainStatus(r),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft},
		{Number: 5, Align: text.AlignLeft},
	})
	return tw.Render()
}

// RunsTable renders stored runs, newest first as given.
func RunsTable(runs []history.Run) string {
	if len(runs) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", "Started", "State", "Checked", "Outdated", "Up to date", "Unknown"})
	for _, r := range runs {
		tw.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.State,
			r.Counts.Total,
			r.Counts.Outdated,
			r.Counts.UpToDate,
			r.Counts.Unknown,
		})
	}
	return tw.Render()
}

func plainStatus(r scan.Result) string {
	switch {
	case r.NeedsUpdate:
		return "update available"
	case r.CurrentVersion == "" || r.ManifestVersion == "":
		return "unknown"
	default:
		return "up to date"
	}
}
