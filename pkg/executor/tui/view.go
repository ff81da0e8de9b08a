package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/sentinel/pkg/scan"
)

// View renders the entire TUI interface.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.buildHeader(),
		m.buildTips(),
		m.buildStatus(),
		"",
	}
	if m.showDetails {
		sections = append(sections, detailsBoxStyle.Width(m.width-2).Render(m.details.View()))
	} else {
		sections = append(sections, m.buildResults())
	}
	sections = append(sections, m.buildFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *model) buildHeader() string {
	title := "Stremio Sentinel"
	if m.title != "" {
		title += "  " + tipsStyle.Render(m.title)
	}
	return headerStyle.Render(" ⬢ ") + headerStyle.Render(title)
}

func (m *model) buildTips() string {
	if m.showDetails {
		return tipsStyle.Render("  ↑/↓ scroll • y copy manifest URL • esc back • q quit")
	}
	return tipsStyle.Render("  s scan • c cancel • x clear • ↑/↓ select • enter details • y copy manifest URL • q quit")
}

func (m *model) buildStatus() string {
	line := m.status
	if m.running {
		line = m.spinner.View() + " " + line
		if m.phase != "" {
			line += tipsStyle.Render("  (" + m.phase + ")")
		}
	}
	if m.err != nil {
		line += "  " + errorStyle.Render("Error: "+m.err.Error())
	}
	return statusStyle.Render(line)
}

// visibleRange returns the slice of results that fits the screen while
// keeping the selection visible.
func (m *model) visibleRange() (int, int) {
	rows := m.height - chromeHeight
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}
	end := start + rows
	if end > len(m.results) {
		end = len(m.results)
	}
	return start, end
}

func (m *model) buildResults() string {
	if len(m.results) == 0 {
		if m.running {
			return tipsStyle.Render("  Waiting for the first addon…")
		}
		return tipsStyle.Render("  No results yet.")
	}

	start, end := m.visibleRange()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(m.results[i], i == m.selected))
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderRow(r scan.Result, selected bool) string {
	cursor := "  "
	if selected {
		cursor = selectedStyle.Render("▸ ")
	}

	var text string
	style := unknownStyle
	switch {
	case r.NeedsUpdate:
		text = fmt.Sprintf("⬆ %s: %s → %s", r.Name, orDash(r.CurrentVersion), r.ManifestVersion)
		style = outdatedStyle
	case r.CurrentVersion == "" || r.ManifestVersion == "":
		text = fmt.Sprintf("? %s: %s (published version unknown)", r.Name, orDash(r.CurrentVersion))
	default:
		text = fmt.Sprintf("✓ %s: %s", r.Name, r.CurrentVersion)
		style = upToDateStyle
	}
	if selected {
		style = style.Bold(true)
	}
	return cursor + style.Render(text)
}

func (m *model) renderDetails(r scan.Result) string {
	var b strings.Builder
	b.WriteString(detailsTitleStyle.Render(r.Name))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(detailsLabelStyle.Render(fmt.Sprintf("%-18s", label)))
		b.WriteString(detailsValueStyle.Render(orDash(value)))
		b.WriteString("\n")
	}
	field("Listed version", r.CurrentVersion)
	field("Manifest version", r.ManifestVersion)
	field("Needs update", fmt.Sprintf("%v", r.NeedsUpdate))
	field("Manifest URL", r.ManifestURL)
	field("Manifest ID", r.ManifestID)
	if r.Error != "" {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%-18s%s", "Error", r.Error)))
		b.WriteString("\n")
	}

	if body := manifestJSON(r.Manifest, m.color); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}

func (m *model) buildFooter() string {
	if m.toast != "" {
		return toastStyle.Render("  " + m.toast)
	}
	c := m.counts()
	return statusBarStyle.Render(fmt.Sprintf("%d checked • %d outdated • %d up to date • %d unknown",
		c.Total, c.Outdated, c.UpToDate, c.Unknown))
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
