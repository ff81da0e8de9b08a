package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/locator"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/modal"
	"github.com/entrhq/sentinel/pkg/version"
	"github.com/entrhq/sentinel/pkg/waiter"
)

// Status messages shown on a StatusSink.
const (
	StatusScanning       = "Scanning addons…"
	StatusAlreadyRunning = "Already scanning…"
	StatusCancelling     = "Cancelling…"
	StatusComplete       = "Scan complete."
	StatusCancelled      = "Scan cancelled."
	StatusListNotFound   = "Addons list not found on this page."
	StatusEmpty          = "No addons listed."
)

// Timeouts bounds the per-entry steps the orchestrator owns. Panel
// lifecycle timings live in modal.Timeouts.
type Timeouts struct {
	// AlternateSearch is the document-wide details search after the
	// tracker found no panel.
	AlternateSearch time.Duration
	// DetailsReady is how long to wait for the details container inside a
	// freshly opened panel.
	DetailsReady time.Duration
	// DetailsSettle is the pause taken instead when DetailsReady runs out.
	DetailsSettle time.Duration
	// ManifestLabel is how long to wait for the manifest URL label.
	ManifestLabel time.Duration
	// BetweenEntries is the pause after each entry.
	BetweenEntries time.Duration
}

// DefaultTimeouts returns the timings tuned against Stremio Web.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		AlternateSearch: 1500 * time.Millisecond,
		DetailsReady:    2000 * time.Millisecond,
		DetailsSettle:   180 * time.Millisecond,
		ManifestLabel:   3000 * time.Millisecond,
		BetweenEntries:  100 * time.Millisecond,
	}
}

// Orchestrator runs scans against one document. Only one run may be in
// progress at a time; RequestCancel may be called from any goroutine.
type Orchestrator struct {
	doc      dom.Document
	strategy locator.Strategy
	waiter   *waiter.Waiter
	tracker  *modal.Tracker
	fetcher  manifest.Fetcher
	sink     Sink
	session  *Session
	filter   *Filter
	logger   Logger
	timeouts Timeouts

	clock         clockwork.Clock
	pollInterval  time.Duration
	modalTimeouts modal.Timeouts
	newRunID      func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStrategy replaces the default Stremio Web locator strategy.
func WithStrategy(s locator.Strategy) Option {
	return func(o *Orchestrator) { o.strategy = s }
}

// WithClock sets the timing backend for every wait.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithPollInterval sets the waiter's fallback poll period.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithTimeouts sets the orchestrator's own timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithModalTimeouts sets the panel lifecycle timeouts.
func WithModalTimeouts(t modal.Timeouts) Option {
	return func(o *Orchestrator) { o.modalTimeouts = t }
}

// WithFilter restricts scans to matching entry names.
func WithFilter(f *Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// New creates an Orchestrator. A nil sink discards results.
func New(doc dom.Document, fetcher manifest.Fetcher, sink Sink, opts ...Option) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	o := &Orchestrator{
		doc:      doc,
		strategy: locator.Stremio(),
		fetcher:  fetcher,
		sink:     sink,
		session:  NewSession(),
		logger:   nopLogger{},
		timeouts: DefaultTimeouts(),
		clock:    clockwork.NewRealClock(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.waiter = waiter.New(doc, waiter.WithClock(o.clock), waiter.WithPollInterval(o.pollInterval))
	o.tracker = modal.New(doc, o.strategy, o.waiter, o.modalTimeouts)
	return o
}

// Session exposes the orchestrator's session state.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// State returns the session's lifecycle state.
func (o *Orchestrator) State() State {
	return o.session.State()
}

// Results returns the results of the current or last run.
func (o *Orchestrator) Results() []Result {
	return o.session.Results()
}

// RequestCancel asks the running scan to stop at the next entry boundary.
// It is safe to call at any time and more than once.
func (o *Orchestrator) RequestCancel() {
	if o.session.requestCancel() {
		o.status(StatusCancelling)
		o.logger.Infof("Cancellation requested")
	}
}

// Clear drops the results of the last run and clears the sink. It does
// nothing while a run is in progress.
func (o *Orchestrator) Clear() {
	if o.session.clear() {
		o.sink.Clear()
	}
}

// Scan snapshots the addon list and runs over it.
func (o *Orchestrator) Scan(ctx context.Context) (*Summary, error) {
	if o.session.Running() {
		o.status(StatusAlreadyRunning)
		return nil, ErrAlreadyRunning
	}

	entries, err := Snapshot(o.doc, o.strategy, o.filter)
	if err != nil {
		if errors.Is(err, ErrListNotFound) {
			o.status(StatusListNotFound)
		}
		return nil, err
	}
	return o.Run(ctx, entries)
}

// Run checks entries in order and returns once every entry was processed
// or the run was cancelled. Per-entry failures are absorbed into the
// entry's Result; the only error is ErrAlreadyRunning.
//
// RequestCancel stops the run before the next entry. Cancelling ctx stops
// it immediately: the interrupted entry is not reported, but its panel is
// still closed.
func (o *Orchestrator) Run(ctx context.Context, entries []Entry) (*Summary, error) {
	if !o.session.begin() {
		o.status(StatusAlreadyRunning)
		return nil, ErrAlreadyRunning
	}

	summary := &Summary{
		RunID:     o.newRunID(),
		StartedAt: o.clock.Now(),
	}
	o.logger.Infof("Starting scan %s over %d entries", summary.RunID, len(entries))

	o.sink.Clear()
	o.sink.SetRunning(true)
	o.status(StatusScanning)

	cancelled := false
	for _, entry := range entries {
		if o.session.cancelRequested() || ctx.Err() != nil {
			cancelled = true
			break
		}
		if !o.runEntry(ctx, entry) {
			cancelled = true
			break
		}
		if err := o.waiter.Sleep(ctx, o.timeouts.BetweenEntries); err != nil {
			cancelled = true
			break
		}
	}

	summary.State = o.session.finish(cancelled)
	summary.Results = o.session.Results()
	summary.FinishedAt = o.clock.Now()
	o.sink.SetRunning(false)

	switch {
	case summary.State == StateCancelled:
		o.status(StatusCancelled)
	case len(entries) == 0:
		o.status(StatusEmpty)
	default:
		o.status(StatusComplete)
	}
	o.logger.Infof("Scan %s finished: %s, %d results", summary.RunID, summary.State, len(summary.Results))
	return summary, nil
}

// runEntry processes one entry. It returns false when ctx ended mid-entry.
func (o *Orchestrator) runEntry(ctx context.Context, entry Entry) bool {
	o.status("Processing: " + entry.Name)
	before := o.tracker.PanelCount()

	result, panel, ok := o.check(ctx, entry, before)
	if ok {
		o.phase(entry, PhaseRendering)
		o.session.append(result)
		o.sink.Render(result)
	}

	o.phase(entry, PhaseClosing)
	closeCtx, cancel := o.cleanupContext(ctx)
	defer cancel()
	if err := o.tracker.Close(closeCtx, panel, before); err != nil {
		o.logger.Warnf("Failed to close panel for %s: %v", entry.Name, err)
	}
	dom.Release(panel)
	return ok && ctx.Err() == nil
}

// cleanupContext outlives ctx so a panel opened before cancellation is
// still dismissed.
func (o *Orchestrator) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	mt := o.tracker.Timeouts()
	return context.WithTimeout(context.WithoutCancel(ctx), mt.Close+mt.Settle+time.Second)
}

// check opens the entry, extracts the manifest URL and fetches it. It
// returns the open panel, if any, for the caller to close, and false when
// ctx ended before the result was complete.
func (o *Orchestrator) check(ctx context.Context, entry Entry, before int) (Result, dom.Node, bool) {
	result := Result{
		Name:           entry.Name,
		CurrentVersion: entry.Version,
		Node:           entry.Node,
	}

	o.phase(entry, PhaseOpening)
	panel, err := o.open(ctx, entry, before)
	if err != nil {
		if ctx.Err() != nil {
			return result, panel, false
		}
		o.logger.Warnf("Failed to open details for %s: %v", entry.Name, err)
	}

	o.phase(entry, PhaseExtracting)
	url, err := o.manifestURL(ctx, panel)
	if ctx.Err() != nil {
		return result, panel, false
	}
	if err != nil {
		o.logger.Warnf("Failed to read manifest URL for %s: %v", entry.Name, err)
	}
	result.ManifestURL = url

	if url == "" {
		result.Error = "manifest URL not found"
		o.logPanelOutline(entry, panel)
	} else {
		o.phase(entry, PhaseFetching)
		rec, err := o.fetcher.Fetch(ctx, url)
		if ctx.Err() != nil {
			return result, panel, false
		}
		if err != nil {
			o.logger.Warnf("Failed to fetch manifest for %s from %s: %v", entry.Name, url, err)
			result.Error = err.Error()
		} else {
			result.ManifestVersion = rec.Version
			result.ManifestID = rec.ID
			result.Manifest = rec.Document
			if rec.Version == "" {
				result.Error = "manifest has no version"
			}
		}
	}

	result.NeedsUpdate = result.CurrentVersion != "" && result.ManifestVersion != "" &&
		version.Compare(result.CurrentVersion, result.ManifestVersion) < 0
	o.logger.Debugf("%s: listed %q, manifest %q, needs update %v",
		entry.Name, result.CurrentVersion, result.ManifestVersion, result.NeedsUpdate)
	return result, panel, true
}

// open clicks the entry and returns its panel. Without a tracked panel it
// searches the document for details once more; a nil panel with a nil
// error means the entry has no visible details.
func (o *Orchestrator) open(ctx context.Context, entry Entry, before int) (dom.Node, error) {
	if s, ok := entry.Node.(dom.Scroller); ok {
		if err := s.ScrollIntoView(); err != nil {
			o.logger.Debugf("Failed to scroll %s into view: %v", entry.Name, err)
		}
	}

	panel, err := o.tracker.OpenAndTrack(ctx, entry.Node.Click, before, 0)
	if err != nil {
		return nil, err
	}

	if panel == nil {
		o.logger.Debugf("No panel tracked for %s, searching document for details", entry.Name)
		return o.tracker.Locate(ctx, o.timeouts.AlternateSearch)
	}

	details := o.strategy.Selector(locator.RoleDetailsContainer)
	found, err := o.waiter.WaitFor(ctx, waiter.Selector(details), panel, o.timeouts.DetailsReady)
	dom.Release(found)
	switch {
	case errors.Is(err, waiter.ErrNotFound):
		if err := o.waiter.Sleep(ctx, o.timeouts.DetailsSettle); err != nil {
			return panel, err
		}
	case err != nil:
		return panel, err
	}
	return panel, nil
}

// manifestURL waits for the manifest label before falling back to the
// structural heuristics in ManifestURL.
func (o *Orchestrator) manifestURL(ctx context.Context, panel dom.Node) (string, error) {
	if panel == nil {
		return "", nil
	}

	label := o.strategy.Selector(locator.RoleManifestURLLabel)
	found, err := o.waiter.WaitFor(ctx, waiter.Selector(label), panel, o.timeouts.ManifestLabel)
	dom.Release(found)
	if err != nil && !errors.Is(err, waiter.ErrNotFound) {
		return "", fmt.Errorf("waiting for manifest label: %w", err)
	}
	return ManifestURL(panel, o.strategy), nil
}

func (o *Orchestrator) logPanelOutline(entry Entry, panel dom.Node) {
	if panel == nil {
		o.logger.Debugf("No details panel for %s", entry.Name)
		return
	}
	markup, err := panel.InnerHTML()
	if err != nil {
		return
	}
	o.logger.Debugf("No manifest URL in panel for %s:\n%s", entry.Name, dom.Outline(markup, 2000))
}

func (o *Orchestrator) status(msg string) {
	if s, ok := o.sink.(StatusSink); ok {
		s.Status(msg)
	}
}

func (o *Orchestrator) phase(e Entry, p Phase) {
	if s, ok := o.sink.(PhaseSink); ok {
		s.Phase(e, p)
	}
}
