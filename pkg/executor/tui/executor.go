// Package tui provides an interactive terminal front end for addon scans.
//
// The TUI codebase is split into multiple files:
// - executor.go: Executor and program lifecycle
// - model.go: Core model structure and scan commands
// - update.go: Bubble Tea Update function and key handling
// - view.go: Bubble Tea View function and rendering
// - sink.go: scan.Sink forwarding orchestrator callbacks as messages
// - highlight.go: Manifest JSON highlighting
// - styles.go: Color schemes and styling
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/scan"
)

// Executor runs the interactive scanner against one document.
type Executor struct {
	doc      dom.Document
	fetcher  manifest.Fetcher
	options  []scan.Option
	title    string
	autoScan bool
	noAlt    bool
	program  *tea.Program
}

// Option configures an Executor.
type Option func(*Executor)

// WithScanOptions passes options through to the orchestrator.
func WithScanOptions(opts ...scan.Option) Option {
	return func(e *Executor) { e.options = append(e.options, opts...) }
}

// WithTitle shows title next to the header, typically the addons URL.
func WithTitle(title string) Option {
	return func(e *Executor) { e.title = title }
}

// WithAutoScan starts a scan as soon as the program starts.
func WithAutoScan(v bool) Option {
	return func(e *Executor) { e.autoScan = v }
}

// WithInlineMode renders in the main screen buffer instead of the
// alternate screen.
func WithInlineMode(v bool) Option {
	return func(e *Executor) { e.noAlt = v }
}

// NewExecutor creates a TUI executor scanning doc and fetching manifests
// with fetcher.
func NewExecutor(doc dom.Document, fetcher manifest.Fetcher, opts ...Option) *Executor {
	e := &Executor{doc: doc, fetcher: fetcher}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the TUI and blocks until the user exits. A scan still in
// progress is cancelled and allowed to close its panel before Run returns.
func (e *Executor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := &programSink{}
	orch := scan.New(e.doc, e.fetcher, sink, e.options...)

	m := newModel(ctx, orch, e.title)
	m.autoScan = e.autoScan

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if !e.noAlt {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	e.program = tea.NewProgram(m, progOpts...)
	sink.attach(e.program.Send)

	_, err := e.program.Run()

	cancel()
	m.scans.closeAndWait()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI program: %w", err)
	}
	return nil
}
