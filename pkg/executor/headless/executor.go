package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/history"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/report"
	"github.com/entrhq/sentinel/pkg/scan"
)

// ErrOutdated is returned by Run when FailOnOutdated is set and at least
// one addon is behind its manifest.
var ErrOutdated = errors.New("outdated addons found")

// Overridden in tests.
var (
	timeNow       = time.Now
	defaultOutput = func() io.Writer { return os.Stdout }
)

// Target is the page a run scans and the fetcher used for its manifests.
type Target struct {
	Document dom.Document
	Fetcher  manifest.Fetcher
}

// Executor runs one scan against a Target.
type Executor struct {
	config  *Config
	target  Target
	logger  *Logger
	options []scan.Option
	version string
	newID   func() string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger replaces the stdout console logger.
func WithLogger(l *Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithScanOptions passes options through to the orchestrator.
func WithScanOptions(opts ...scan.Option) ExecutorOption {
	return func(e *Executor) { e.options = append(e.options, opts...) }
}

// WithVersion sets the version stamped into results.json.
func WithVersion(v string) ExecutorOption {
	return func(e *Executor) { e.version = v }
}

// NewExecutor validates config and creates an executor.
func NewExecutor(config *Config, target Target, opts ...ExecutorOption) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if target.Document == nil || target.Fetcher == nil {
		return nil, fmt.Errorf("target needs a document and a fetcher")
	}

	e := &Executor{
		config:  config,
		target:  target,
		version: "dev",
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = NewLoggerTo(ParseLogLevel(config.Logging.Verbosity), defaultOutput(), config.Logging.Color)
	}
	return e, nil
}

// Run scans the target once. The summary is returned whenever the scan
// itself ran, including alongside ErrOutdated.
func (e *Executor) Run(ctx context.Context) (*scan.Summary, error) {
	runID := e.newID()
	e.logger.Header("Sentinel Addon Scan")
	e.logger.Verbosef("Run %s against %s", runID, e.config.AddonsURL)

	if e.config.Scan.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Scan.Timeout)
		defer cancel()
	}

	filter, err := e.config.Filter()
	if err != nil {
		return nil, err
	}

	var store *history.Store
	var recorder *history.Recorder
	sinks := report.Multi{}

	if e.logger.Level() >= LogLevelNormal {
		console := report.NewConsole(e.logger.Writer(), e.config.Logging.Color)
		console.SetVerbose(e.logger.Level() >= LogLevelVerbose)
		sinks = append(sinks, console)
	}

	if e.config.History.Enabled {
		store, err = history.Open(e.config.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		if err := store.StartRun(ctx, runID, timeNow()); err != nil {
			return nil, err
		}
		recorder = store.Recorder(ctx, runID)
		sinks = append(sinks, recorder)
		e.logger.Verbosef("Recording history in %s", store.Path())
	}

	opts := append([]scan.Option{
		scan.WithFilter(filter),
		scan.WithRunID(func() string { return runID }),
	}, e.options...)
	orchestrator := scan.New(e.target.Document, e.target.Fetcher, sinks, opts...)

	e.logger.Section("Checking addons")
	summary, err := orchestrator.Scan(ctx)
	if err != nil {
		e.logger.Errorf("%v", err)
		if store != nil {
			if derr := store.DiscardRun(context.WithoutCancel(ctx), runID); derr != nil {
				e.logger.Warningf("%v", derr)
			}
		}
		return nil, err
	}

	var previous []string
	if store != nil {
		// Recorded even after the scan timeout fired.
		finishCtx := context.WithoutCancel(ctx)
		if err := store.FinishRun(finishCtx, summary); err != nil {
			e.logger.Warningf("%v", err)
		}
		if err := recorder.Err(); err != nil {
			e.logger.Warningf("%v", err)
		}
		if previous, err = store.PreviouslyOutdated(finishCtx, runID); err != nil {
			e.logger.Warningf("%v", err)
		}
	}

	if e.config.Artifacts.Enabled {
		writer := NewArtifactWriter(e.config.Artifacts.OutputDir, e.config.Artifacts, e.version)
		paths, err := writer.WriteAll(summary)
		if err != nil {
			e.logger.Warningf("%v", err)
		}
		for _, p := range paths {
			e.logger.Verbosef("Wrote %s", p)
		}
	}

	e.logger.Summary(summary, previous)

	if e.config.FailOnOutdated && summary.Counts().Outdated > 0 {
		return summary, ErrOutdated
	}
	return summary, nil
}
