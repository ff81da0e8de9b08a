package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/sentinel/pkg/scan"
)

// resultMsg carries one rendered result.
type resultMsg struct{ result scan.Result }

// clearMsg drops the displayed results.
type clearMsg struct{}

// runningMsg reports the running indicator.
type runningMsg struct{ running bool }

// statusMsg replaces the status line.
type statusMsg struct{ text string }

// phaseMsg reports the step of the entry being processed.
type phaseMsg struct {
	name  string
	phase scan.Phase
}

// scanDoneMsg signals that a Scan call returned.
type scanDoneMsg struct {
	summary *scan.Summary
	err     error
}

// copiedMsg reports the outcome of a clipboard copy.
type copiedMsg struct {
	url string
	err error
}

// programSink turns orchestrator callbacks into tea messages. Messages sent
// before attach are dropped.
type programSink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func (s *programSink) attach(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
}

func (s *programSink) post(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// Render implements scan.Sink.
func (s *programSink) Render(r scan.Result) { s.post(resultMsg{result: r}) }

// Clear implements scan.Sink.
func (s *programSink) Clear() { s.post(clearMsg{}) }

// SetRunning implements scan.Sink.
func (s *programSink) SetRunning(running bool) { s.post(runningMsg{running: running}) }

// Status implements scan.StatusSink.
func (s *programSink) Status(text string) { s.post(statusMsg{text: text}) }

// Phase implements scan.PhaseSink.
func (s *programSink) Phase(e scan.Entry, p scan.Phase) {
	s.post(phaseMsg{name: e.Name, phase: p})
}
