package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/entrhq/sentinel/pkg/scan"
)

// MarkdownWriter renders a summary as GitHub-flavoured Markdown.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to w.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: w}
}

// Write outputs the report and returns the number of bytes written.
func (w *MarkdownWriter) Write(summary *scan.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeAlert(md, summary)
	w.writeResults(md, summary)
	w.writeUnknown(md, summary)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *scan.Summary) {
	counts := summary.Counts()

	md.H1("Addon Version Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + summary.RunID + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration().Round(time.Millisecond).String()},
			{"Status", stateText(summary.State)},
			{"Addons checked", strconv.Itoa(counts.Total)},
			{"Outdated", strconv.Itoa(counts.Outdated)},
			{"Up to date", strconv.Itoa(counts.UpToDate)},
			{"Unknown", strconv.Itoa(counts.Unknown)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *scan.Summary) {
	counts := summary.Counts()
	switch {
	case summary.State == scan.StateCancelled:
		md.Importantf("The scan was cancelled after %d addon(s); the list below is partial.", counts.Total)
	case counts.Outdated > 0:
		md.Warningf("%d addon(s) are behind their published manifest version.", counts.Outdated)
	case counts.Total == 0:
		md.Note("No addons were checked.")
	default:
		md.Tip("Every addon with a readable manifest is up to date.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, summary *scan.Summary) {
	md.H2("Results")
	md.PlainText("")

	if len(summary.Results) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Results))
	for i, r := range summary.Results {
		rows[i] = []string{
			r.Name,
			orDash(r.CurrentVersion),
			orDash(r.ManifestVersion),
			resultStatus(r),
			truncate(orDash(r.ManifestURL), 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Addon", "Installed", "Published", "Status", "Manifest"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeUnknown(md *markdown.Markdown, summary *scan.Summary) {
	var items []string
	for _, r := range summary.Results {
		if r.Error != "" {
			items = append(items, r.Name+": "+r.Error)
		}
	}
	if len(items) == 0 {
		return
	}

	md.H2("Unresolved")
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

func stateText(s scan.State) string {
	switch s {
	case scan.StateCompleted:
		return "✅ Complete"
	case scan.StateCancelled:
		return "⚠️ Cancelled (partial results)"
	default:
		return s.String()
	}
}

func resultStatus(r scan.Result) string {
	switch {
	case r.NeedsUpdate:
		return "⬆️ Update available"
	case r.CurrentVersion == "" || r.ManifestVersion == "":
		return "❔ Unknown"
	default:
		return "✅ Up to date"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
