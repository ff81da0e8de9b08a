package headless

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/entrhq/sentinel/pkg/report"
	"github.com/entrhq/sentinel/pkg/scan"
)

// LogLevel represents the console verbosity level
type LogLevel int

const (
	// LogLevelQuiet prints warnings, errors and the final summary only
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal adds section headers and streamed results (default)
	LogLevelNormal
	// LogLevelVerbose adds run details and per-addon errors
	LogLevelVerbose
	// LogLevelDebug is verbose plus debug logging in the log file
	LogLevelDebug
)

// ParseLogLevel converts a verbosity string to a LogLevel. Unknown values
// map to LogLevelNormal.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

// ANSI escapes used by the console.
const (
	ansiReset     = "\033[0m"
	ansiCyan      = "\033[36m"
	ansiYellow    = "\033[33m"
	ansiRed       = "\033[31m"
	ansiGray      = "\033[90m"
	ansiBoldGreen = "\033[1;32m"
	ansiBoldRed   = "\033[1;31m"
	ansiBoldWhite = "\033[1;37m"
)

const ruleWidth = 70

// Logger prints run progress and the final summary to the console
type Logger struct {
	level  LogLevel
	writer io.Writer
	color  bool
}

// NewLogger creates a colored logger on stdout with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(level, os.Stdout, true)
}

// NewLoggerTo creates a logger on w. With color false no escape codes are
// written.
func NewLoggerTo(level LogLevel, w io.Writer, color bool) *Logger {
	return &Logger{level: level, writer: w, color: color}
}

// Level returns the verbosity level.
func (l *Logger) Level() LogLevel {
	return l.level
}

// Writer returns the console destination.
func (l *Logger) Writer() io.Writer {
	return l.writer
}

func (l *Logger) paint(code, s string) string {
	if !l.color {
		return s
	}
	return code + s + ansiReset
}

func (l *Logger) line(code, format string, args ...interface{}) {
	fmt.Fprintln(l.writer, l.paint(code, fmt.Sprintf(format, args...)))
}

func (l *Logger) rule() {
	l.line(ansiBoldWhite, "%s", strings.Repeat("=", ruleWidth))
}

// Header prints a banner (normal level and above)
func (l *Logger) Header(message string) {
	if l.level < LogLevelNormal {
		return
	}
	fmt.Fprintln(l.writer)
	l.rule()
	l.line(ansiBoldWhite, "  %s", message)
	l.rule()
}

// Section prints a section divider (normal level and above)
func (l *Logger) Section(title string) {
	if l.level < LogLevelNormal {
		return
	}
	fmt.Fprintln(l.writer)
	l.line(ansiCyan, "▶ %s", title)
	l.line(ansiGray, "%s", strings.Repeat("─", 50))
}

// Warningf prints a warning at every level
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.line(ansiYellow, "⚠ Warning: "+format, args...)
}

// Errorf prints an error at every level
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.line(ansiBoldRed, "✗ Error: "+format, args...)
}

// Verbosef prints detail in verbose mode
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if l.level >= LogLevelVerbose {
		l.line(ansiGray, "→ "+format, args...)
	}
}

// Summary prints the final run summary at every level. previous holds the
// names outdated on the last recorded run.
func (l *Logger) Summary(summary *scan.Summary, previous []string) {
	counts := summary.Counts()

	fmt.Fprintln(l.writer)
	l.rule()
	l.line(ansiBoldWhite, "  SCAN SUMMARY")
	l.rule()

	switch {
	case summary.State == scan.StateCancelled:
		fmt.Fprintf(l.writer, "  Status: %s\n", l.paint(ansiBoldRed, "✗ CANCELLED"))
	case counts.Outdated > 0:
		fmt.Fprintf(l.writer, "  Status: %s\n", l.paint(ansiYellow, "⚠ UPDATES AVAILABLE"))
	default:
		fmt.Fprintf(l.writer, "  Status: %s\n", l.paint(ansiBoldGreen, "✓ UP TO DATE"))
	}
	fmt.Fprintf(l.writer, "  Run: %s\n", summary.RunID)
	fmt.Fprintf(l.writer, "  Duration: %s\n", summary.Duration().Round(time.Millisecond))
	fmt.Fprintf(l.writer, "\n  📊 Addons: %d checked, %d outdated, %d up to date, %d unknown\n",
		counts.Total, counts.Outdated, counts.UpToDate, counts.Unknown)

	if len(summary.Results) > 0 && l.level >= LogLevelNormal {
		fmt.Fprintln(l.writer)
		for _, row := range strings.Split(report.Table(summary.Results), "\n") {
			fmt.Fprintf(l.writer, "  %s\n", row)
		}
	}

	if still := stillOutdated(summary, previous); len(still) > 0 {
		fmt.Fprintln(l.writer)
		l.line(ansiYellow, "  Still outdated since the last run:")
		for _, name := range still {
			fmt.Fprintf(l.writer, "    • %s\n", name)
		}
	}

	if l.level >= LogLevelVerbose {
		for _, r := range summary.Results {
			if r.Error != "" {
				l.line(ansiRed, "  %s: %s", r.Name, r.Error)
			}
		}
	}

	l.rule()
	fmt.Fprintln(l.writer)
}

// stillOutdated returns the names outdated now that were also outdated
// on the previous run, in result order.
func stillOutdated(summary *scan.Summary, previous []string) []string {
	if len(previous) == 0 {
		return nil
	}
	was := make(map[string]bool, len(previous))
	for _, name := range previous {
		was[name] = true
	}

	var still []string
	for _, r := range summary.Results {
		if r.NeedsUpdate && was[r.Name] {
			still = append(still, r.Name)
		}
	}
	return still
}
