package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDir points logging at a temp directory and resets global state.
func setupTestDir(t *testing.T) string {
	t.Helper()

	origLogDir, origInitErr, origSessionID := logDir, initErr, sessionID
	dir := t.TempDir()

	logDir = dir
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}

	t.Cleanup(func() {
		logDir, initErr, sessionID = origLogDir, origInitErr, origSessionID
		initOnce = sync.Once{}
		sessionIDOnce = sync.Once{}
	})
	return dir
}

func readLog(t *testing.T, l *Logger) string {
	t.Helper()
	content, err := os.ReadFile(l.LogPath())
	require.NoError(t, err)
	return string(content)
}

func TestNewLogger(t *testing.T) {
	dir := setupTestDir(t)

	logger, err := NewLogger("scan")
	require.NoError(t, err)
	defer logger.Close()

	assert.Equal(t, "scan", logger.component)
	assert.NotEmpty(t, SessionID())
	assert.Equal(t, filepath.Join(dir, SessionID()+"-sentinel.log"), logger.LogPath())
	assert.FileExists(t, logger.LogPath())
}

func TestLoggerFormatting(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	require.NoError(t, err)
	defer logger.Close()

	logger.Infof("Test message %d", 123)
	logger.Debugf("Debug message")
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	content := readLog(t, logger)
	for _, pattern := range []string{
		"[test] [INFO] Test message 123",
		"[test] [DEBUG] Debug message",
		"[test] [INFO] Info message",
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
	} {
		assert.Contains(t, content, pattern)
	}
}

func TestLoggerLevel(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("level")
	require.NoError(t, err)
	defer logger.Close()

	logger.SetLevel(LevelWarn)
	logger.Debugf("hidden debug")
	logger.Infof("hidden info")
	logger.Warnf("shown warn")

	content := readLog(t, logger)
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "shown warn")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestMultipleComponents(t *testing.T) {
	setupTestDir(t)

	logger1, err := NewLogger("component1")
	require.NoError(t, err)
	defer logger1.Close()

	logger2, err := NewLogger("component2")
	require.NoError(t, err)
	defer logger2.Close()

	assert.Equal(t, logger1.LogPath(), logger2.LogPath())

	logger1.Infof("Message from component1")
	logger2.Infof("Message from component2")

	content := readLog(t, logger1)
	assert.True(t, strings.Contains(content, "[component1]") && strings.Contains(content, "[component2]"))
}

func TestLogDirFromEnv(t *testing.T) {
	setupTestDir(t)
	logDir = ""
	dir := filepath.Join(t.TempDir(), "env-logs")
	t.Setenv(LogDirEnv, dir)

	got, err := LogDirectory()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}

func TestFallbackLogger(t *testing.T) {
	setupTestDir(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))
	logDir = filepath.Join(blocker, "logs")

	logger, err := NewLogger("fallback")
	assert.Error(t, err)
	require.NotNil(t, logger)
	assert.Empty(t, logger.LogPath())
	assert.Equal(t, os.Stderr, logger.Writer())
	assert.NoError(t, logger.Close())
}

func TestSessionID(t *testing.T) {
	setupTestDir(t)

	id := SessionID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, SessionID())
}

func TestNamedSharesOutput(t *testing.T) {
	setupTestDir(t)

	parent, err := NewLogger("sentinel")
	require.NoError(t, err)
	parent.SetLevel(LevelInfo)

	child := parent.Named("scan")
	assert.Equal(t, parent.LogPath(), child.LogPath())

	child.Debugf("hidden")
	require.NoError(t, parent.Close())
	require.NoError(t, parent.Close())

	// The file stays open for the child after the parent closes.
	child.Infof("still writing")
	require.NoError(t, child.Close())

	content := readLog(t, parent)
	assert.Contains(t, content, "[scan] [INFO] still writing")
	assert.NotContains(t, content, "hidden")
}
