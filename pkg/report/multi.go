package report

import "github.com/entrhq/sentinel/pkg/scan"

// Multi forwards every call to each of its sinks in order.
type Multi []scan.Sink

// Render implements scan.Sink.
func (m Multi) Render(r scan.Result) {
	for _, s := range m {
		s.Render(r)
	}
}

// Clear implements scan.Sink.
func (m Multi) Clear() {
	for _, s := range m {
		s.Clear()
	}
}

// SetRunning implements scan.Sink.
func (m Multi) SetRunning(running bool) {
	for _, s := range m {
		s.SetRunning(running)
	}
}

// Status implements scan.StatusSink for the sinks that support it.
func (m Multi) Status(msg string) {
	for _, s := range m {
		if ss, ok := s.(scan.StatusSink); ok {
			ss.Status(msg)
		}
	}
}

// Phase implements scan.PhaseSink for the sinks that support it.
func (m Multi) Phase(e scan.Entry, p scan.Phase) {
	for _, s := range m {
		if ps, ok := s.(scan.PhaseSink); ok {
			ps.Phase(e, p)
		}
	}
}
