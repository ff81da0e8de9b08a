// Package scan sequences the version check over the host's addon list.
//
// An Orchestrator walks a snapshot of list entries strictly one at a time.
// For each entry it opens the detail panel, reads the manifest URL with a
// series of fallbacks, fetches the manifest, compares versions against the
// listed version and streams the Result to a Sink before closing the panel
// and moving on. Per-entry failures never abort a run; they leave empty
// fields on that entry's Result.
package scan

import (
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/sentinel/pkg/dom"
)

var (
	// ErrAlreadyRunning is returned when a run is requested while another
	// is in progress. The running session is unaffected.
	ErrAlreadyRunning = errors.New("scan already running")

	// ErrListNotFound is returned when the page has no addon list.
	ErrListNotFound = errors.New("addons list not found on this page")
)

// Entry is one row of the addon list, captured when a run starts.
type Entry struct {
	Node    dom.Node
	Index   int
	Name    string
	Version string
}

// Result is the outcome of checking one entry. Empty strings stand for
// values that could not be determined.
type Result struct {
	Name            string `json:"name"`
	CurrentVersion  string `json:"current_version,omitempty"`
	ManifestVersion string `json:"manifest_version,omitempty"`
	NeedsUpdate     bool   `json:"needs_update"`
	ManifestURL     string `json:"manifest_url,omitempty"`
	ManifestID      string `json:"manifest_id,omitempty"`

	// Manifest is the decoded manifest document.
	Manifest any `json:"manifest,omitempty"`

	// Error describes why the manifest version is missing, if it is.
	Error string `json:"error,omitempty"`

	Node dom.Node `json:"-"`
}

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateCancelled; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", text)
}

// Phase is the step an entry is in while being processed.
type Phase int

const (
	PhaseOpening Phase = iota
	PhaseExtracting
	PhaseFetching
	PhaseRendering
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseExtracting:
		return "extracting"
	case PhaseFetching:
		return "fetching"
	case PhaseRendering:
		return "rendering"
	case PhaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Summary describes a finished run.
type Summary struct {
	RunID      string    `json:"run_id"`
	State      State     `json:"state"`
	Results    []Result  `json:"results"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Counts tallies the results of a run.
type Counts struct {
	Total    int `json:"total"`
	Outdated int `json:"outdated"`
	UpToDate int `json:"up_to_date"`
	Unknown  int `json:"unknown"`
}

// Counts tallies s.Results. A result is unknown when either version is
// missing.
func (s *Summary) Counts() Counts {
	var c Counts
	for _, r := range s.Results {
		c.Total++
		switch {
		case r.NeedsUpdate:
			c.Outdated++
		case r.CurrentVersion == "" || r.ManifestVersion == "":
			c.Unknown++
		default:
			c.UpToDate++
		}
	}
	return c
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Sink receives results as they are produced.
type Sink interface {
	Render(r Result)
	Clear()
	SetRunning(running bool)
}

// StatusSink is implemented by sinks that show a one-line status.
type StatusSink interface {
	Status(msg string)
}

// PhaseSink is implemented by sinks that track per-entry progress.
type PhaseSink interface {
	Phase(e Entry, p Phase)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Render(Result)   {}
func (NopSink) Clear()          {}
func (NopSink) SetRunning(bool) {}

// Logger is the logging surface the orchestrator needs. *logging.Logger
// satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
