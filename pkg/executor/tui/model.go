package tui

import (
	"context"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/sentinel/pkg/scan"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// Scanner is the part of scan.Orchestrator the UI drives.
type Scanner interface {
	Scan(ctx context.Context) (*scan.Summary, error)
	RequestCancel()
	Clear()
}

// model represents the state of the TUI application.
type model struct {
	// Bubble Tea components
	spinner spinner.Model
	details viewport.Model

	// Scan integration
	ctx     context.Context
	scanner Scanner
	scans   *scanGroup

	// Customization
	title    string
	autoScan bool
	color    bool

	// Scan state
	results     []scan.Result
	selected    int
	running     bool
	status      string
	phase       string
	lastSummary *scan.Summary
	err         error

	// UI state
	showDetails bool
	toast       string

	// Window dimensions
	width  int
	height int
	ready  bool
}

func newModel(ctx context.Context, scanner Scanner, title string) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	return &model{
		spinner: s,
		details: viewport.New(0, 0),
		ctx:     ctx,
		scanner: scanner,
		scans:   &scanGroup{},
		title:   title,
		color:   true,
		status:  "Press s to scan.",
	}
}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	if m.autoScan {
		return m.startScan()
	}
	return nil
}

// startScan runs one scan on the command goroutine. The orchestrator
// reports progress through the sink while it runs.
func (m *model) startScan() tea.Cmd {
	ctx, scanner, group := m.ctx, m.scanner, m.scans
	return func() tea.Msg {
		if !group.enter() {
			return nil
		}
		defer group.leave()
		summary, err := scanner.Scan(ctx)
		return scanDoneMsg{summary: summary, err: err}
	}
}

// The orchestrator posts to the program from these calls, so they must not
// run on the update goroutine.
func (m *model) requestCancel() tea.Cmd {
	scanner := m.scanner
	return func() tea.Msg {
		scanner.RequestCancel()
		return nil
	}
}

func (m *model) clear() tea.Cmd {
	scanner := m.scanner
	return func() tea.Msg {
		scanner.Clear()
		return nil
	}
}

func (m *model) copySelected() tea.Cmd {
	r, ok := m.selectedResult()
	if !ok {
		return nil
	}
	url := r.ManifestURL
	return func() tea.Msg {
		if url == "" {
			return copiedMsg{}
		}
		return copiedMsg{url: url, err: copyToClipboard(url)}
	}
}

func (m *model) selectedResult() (scan.Result, bool) {
	if m.selected < 0 || m.selected >= len(m.results) {
		return scan.Result{}, false
	}
	return m.results[m.selected], true
}

// scanGroup tracks scans started from commands so the executor can wait
// for them after the program exits. Commands may run after close; those
// are refused.
type scanGroup struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (g *scanGroup) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

func (g *scanGroup) leave() { g.wg.Done() }

// closeAndWait refuses new scans and waits for running ones.
func (g *scanGroup) closeAndWait() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}

// counts tallies the displayed results.
func (m *model) counts() scan.Counts {
	s := scan.Summary{Results: m.results}
	return s.Counts()
}
