// Package cli provides a line-oriented executor for addon scans.
//
// Commands are read one per line: scan, cancel, clear, results, help and
// exit. Results stream to the writer through report.Console while a scan
// runs in the background, so cancel can be typed mid-run.
//
// Example usage:
//
//	executor := cli.NewExecutor(doc, fetcher,
//	    cli.WithScanOptions(scan.WithFilter(filter)),
//	)
//	if err := executor.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/report"
	"github.com/entrhq/sentinel/pkg/scan"
)

// Executor is a CLI-based executor driving one orchestrator from terminal
// input.
type Executor struct {
	doc     dom.Document
	fetcher manifest.Fetcher
	options []scan.Option
	reader  *bufio.Reader
	writer  io.Writer

	// Display options
	color   bool
	verbose bool
	once    bool

	orchestrator *scan.Orchestrator
	console      *report.Console
	scans        sync.WaitGroup
	out          sync.Mutex
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithScanOptions passes options through to the orchestrator.
func WithScanOptions(opts ...scan.Option) ExecutorOption {
	return func(e *Executor) { e.options = append(e.options, opts...) }
}

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) { e.writer = w }
}

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) { e.reader = bufio.NewReader(r) }
}

// WithColor enables/disables ANSI colors.
func WithColor(color bool) ExecutorOption {
	return func(e *Executor) { e.color = color }
}

// WithVerbose prints manifest URLs and errors under each result.
func WithVerbose(v bool) ExecutorOption {
	return func(e *Executor) { e.verbose = v }
}

// WithOnce runs a single scan, prints the table and returns without
// reading input.
func WithOnce(once bool) ExecutorOption {
	return func(e *Executor) { e.once = once }
}

// NewExecutor creates a new CLI executor scanning doc.
func NewExecutor(doc dom.Document, fetcher manifest.Fetcher, opts ...ExecutorOption) *Executor {
	e := &Executor{
		doc:     doc,
		fetcher: fetcher,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
		color:   true,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.console = report.NewConsole(&lockedWriter{mu: &e.out, w: e.writer}, e.color)
	e.console.SetVerbose(e.verbose)
	e.orchestrator = scan.New(doc, fetcher, e.console, e.options...)
	return e
}

// Orchestrator exposes the underlying orchestrator.
func (e *Executor) Orchestrator() *scan.Orchestrator {
	return e.orchestrator
}

// Run starts the executor and begins the command loop.
// Returns when the user exits, input ends or ctx is cancelled; a running
// scan is cancelled and waited for first.
func (e *Executor) Run(ctx context.Context) error {
	if e.once {
		return e.scanAndPrint(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		e.scans.Wait()
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go e.readLines(ctx, lines, readErr)

	e.println("Sentinel")
	e.println("Type 'scan' to check your addons, 'help' for commands, 'exit' to quit.")
	e.println("")

	for {
		e.print("> ")

		var input string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				// Input closed; let a running scan finish.
				e.scans.Wait()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		case input = <-lines:
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "":
			continue
		case "exit", "quit", "q":
			e.orchestrator.RequestCancel()
			return nil
		case "scan", "s":
			e.startScan(ctx)
		case "cancel", "c":
			e.orchestrator.RequestCancel()
		case "clear", "x":
			e.orchestrator.Clear()
		case "results", "r":
			e.printTable(e.orchestrator.Results())
		case "help", "?":
			e.printHelp()
		default:
			e.println(fmt.Sprintf("Unknown command %q, type 'help'.", input))
		}
	}
}

func (e *Executor) readLines(ctx context.Context, lines chan<- string, errs chan<- error) {
	for {
		line, err := e.reader.ReadString('\n')
		if line != "" {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errs <- err
			return
		}
	}
}

func (e *Executor) startScan(ctx context.Context) {
	e.scans.Add(1)
	go func() {
		defer e.scans.Done()
		summary, err := e.orchestrator.Scan(ctx)
		switch {
		case errors.Is(err, scan.ErrAlreadyRunning), errors.Is(err, scan.ErrListNotFound):
			// Reported by the orchestrator's status line.
		case err != nil:
			e.println("Error: " + err.Error())
		case summary != nil:
			e.printCounts(summary)
		}
	}()
}

func (e *Executor) scanAndPrint(ctx context.Context) error {
	summary, err := e.orchestrator.Scan(ctx)
	if err != nil {
		return err
	}
	e.printTable(summary.Results)
	e.printCounts(summary)
	return nil
}

func (e *Executor) printTable(results []scan.Result) {
	if len(results) == 0 {
		e.println("No results.")
		return
	}
	e.println(report.Table(results))
}

func (e *Executor) printCounts(summary *scan.Summary) {
	c := summary.Counts()
	e.println(fmt.Sprintf("%d checked, %d outdated, %d up to date, %d unknown",
		c.Total, c.Outdated, c.UpToDate, c.Unknown))
}

func (e *Executor) printHelp() {
	e.println("Commands:")
	e.println("  scan     check every addon on the page")
	e.println("  cancel   stop the running scan after the current addon")
	e.println("  clear    forget the last results")
	e.println("  results  show the last results as a table")
	e.println("  exit     quit")
}

func (e *Executor) print(s string) {
	e.out.Lock()
	defer e.out.Unlock()
	fmt.Fprint(e.writer, s)
}

func (e *Executor) println(s string) {
	e.print(s + "\n")
}

// lockedWriter serializes console output with the prompt.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
