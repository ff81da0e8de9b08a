package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/sentinel/pkg/scan"
)

// chromeHeight is the number of lines around the results area: header,
// tips, status, blank line and footer.
const chromeHeight = 5

// Update handles all state updates for the TUI model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalculateLayout()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resultMsg:
		m.results = append(m.results, msg.result)
		return m, nil

	case clearMsg:
		m.results = nil
		m.selected = 0
		m.showDetails = false
		m.phase = ""
		return m, nil

	case runningMsg:
		m.running = msg.running
		if msg.running {
			m.err = nil
			m.toast = ""
			return m, m.spinner.Tick
		}
		m.phase = ""
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil

	case phaseMsg:
		m.phase = fmt.Sprintf("%s: %s", msg.name, msg.phase)
		return m, nil

	case scanDoneMsg:
		m.handleScanDone(msg)
		return m, nil

	case copiedMsg:
		switch {
		case msg.err != nil:
			m.toast = "Copy failed: " + msg.err.Error()
		case msg.url == "":
			m.toast = "No manifest URL for this addon."
		default:
			m.toast = "Copied " + msg.url
		}
		return m, nil
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showDetails {
		switch msg.String() {
		case "esc", "enter":
			m.showDetails = false
			return m, nil
		case "y":
			return m, m.copySelected()
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.details, cmd = m.details.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		return m, m.startScan()
	case "c":
		return m, m.requestCancel()
	case "x":
		return m, m.clear()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.results)-1 {
			m.selected++
		}
	case "enter":
		if r, ok := m.selectedResult(); ok {
			m.details.SetContent(m.renderDetails(r))
			m.details.GotoTop()
			m.showDetails = true
		}
	case "y":
		return m, m.copySelected()
	}
	return m, nil
}

func (m *model) handleScanDone(msg scanDoneMsg) {
	switch {
	case msg.err == nil:
		m.lastSummary = msg.summary
	case errors.Is(msg.err, scan.ErrAlreadyRunning), errors.Is(msg.err, scan.ErrListNotFound):
		// Reported on the status line by the orchestrator.
	default:
		m.err = msg.err
	}
}

func (m *model) recalculateLayout() {
	h := m.height - chromeHeight - 2
	if h < 1 {
		h = 1
	}
	w := m.width - 4
	if w < 1 {
		w = 1
	}
	m.details.Width = w
	m.details.Height = h
}
