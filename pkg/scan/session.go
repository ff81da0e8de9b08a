package scan

import "sync"

// Session is the mutable state of one orchestrator: its results, the
// running and cancel flags and the lifecycle state. The cancel surface is
// driven from other goroutines, so every access goes through the mutex.
type Session struct {
	mu        sync.Mutex
	state     State
	running   bool
	cancelled bool
	results   []Result
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{state: StateIdle}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether a run is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Results returns a copy of the results produced so far.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// begin starts a run. It returns false if one is already in progress.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	s.cancelled = false
	s.results = nil
	s.state = StateRunning
	return true
}

// requestCancel flags the running session for cancellation. It reports
// whether a run was in progress.
func (s *Session) requestCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.cancelled = true
	s.state = StateCancelling
	return true
}

func (s *Session) cancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Session) append(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// finish ends the run and resets the cancel flag.
func (s *Session) finish(cancelled bool) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancelled || s.cancelled {
		s.state = StateCancelled
	} else {
		s.state = StateCompleted
	}
	s.running = false
	s.cancelled = false
	return s.state
}

// clear drops results. It refuses while a run is in progress.
func (s *Session) clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.results = nil
	s.state = StateIdle
	return true
}
