// Package logging writes component-tagged diagnostics to a per-process log
// file under ~/.sentinel/logs, so scan internals never clutter the terminal
// UI or the headless console report.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogDirEnv overrides the log directory.
const LogDirEnv = "SENTINEL_LOG_DIR"

// Level filters log entries. Entries below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// output is a log destination shared by every logger derived from the
// same NewLogger call. The file closes when the last of them closes.
type output struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
	path string
	refs int
}

func (o *output) acquire() *output {
	o.mu.Lock()
	o.refs++
	o.mu.Unlock()
	return o
}

func (o *output) release() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refs--
	if o.refs > 0 || o.file == nil {
		return nil
	}
	return o.file.Close()
}

func (o *output) println(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, line)
}

// Logger writes entries for one component.
type Logger struct {
	component string
	out       *output

	mu        sync.Mutex
	level     Level
	closeOnce sync.Once
}

// process-wide state: one session ID and one log directory per run.
var (
	sessionID     string
	sessionIDOnce sync.Once

	logDir   string
	initOnce sync.Once
	initErr  error
)

// SessionID returns the ID naming this process's log file.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// LogDirectory resolves and creates the log directory: an already set
// directory, then LogDirEnv, then ~/.sentinel/logs.
func LogDirectory() (string, error) {
	initOnce.Do(func() {
		if logDir == "" {
			logDir = os.Getenv(LogDirEnv)
		}
		if logDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			logDir = filepath.Join(home, ".sentinel", "logs")
		}
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
		}
	})
	return logDir, initErr
}

// NewLogger creates a logger for component appending to
// <log dir>/<session-id>-sentinel.log at LevelDebug.
//
// When the file cannot be opened it returns a stderr logger at LevelWarn
// together with the error, so callers can warn and carry on.
func NewLogger(component string) (*Logger, error) {
	dir, err := LogDirectory()
	if err != nil {
		return fallback(component, err), err
	}

	path := filepath.Join(dir, SessionID()+"-sentinel.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return fallback(component, err), err
	}

	out := &output{w: file, file: file, path: path}
	return &Logger{component: component, out: out.acquire(), level: LevelDebug}, nil
}

// MustLogger is NewLogger without the error; fallback loggers are fine for
// callers that have nowhere to report the failure.
func MustLogger(component string) *Logger {
	l, _ := NewLogger(component)
	return l
}

func fallback(component string, err error) *Logger {
	log.New(os.Stderr, "["+component+"] ", log.LstdFlags).
		Printf("WARNING: file logging unavailable, using stderr: %v", err)
	out := &output{w: os.Stderr}
	return &Logger{component: component, out: out.acquire(), level: LevelWarn}
}

// Named returns a logger for another component writing to the same
// destination at the same level. Close it independently.
func (l *Logger) Named(component string) *Logger {
	l.mu.Lock()
	level := l.level
	l.mu.Unlock()
	return &Logger{component: component, out: l.out.acquire(), level: level}
}

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	l.mu.Lock()
	threshold := l.level
	l.mu.Unlock()
	if level < threshold {
		return
	}
	l.out.println(fmt.Sprintf("[%s] [%s] [%s] %s",
		time.Now().Format("2006-01-02 15:04:05.000"), l.component, level, fmt.Sprintf(format, v...)))
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, format, v...)
}

// Writer returns the underlying destination, os.Stderr for fallbacks.
func (l *Logger) Writer() io.Writer {
	return l.out.w
}

// LogPath returns the log file path, empty for stderr fallbacks.
func (l *Logger) LogPath() string {
	return l.out.path
}

// Close releases the logger. The file closes with the last logger
// sharing it. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.out.release()
	})
	return err
}
