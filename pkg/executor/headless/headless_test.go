package headless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/sentinel/pkg/dom/domtest"
	"github.com/entrhq/sentinel/pkg/history"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/modal"
	"github.com/entrhq/sentinel/pkg/report"
	"github.com/entrhq/sentinel/pkg/scan"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default config", func(c *Config) {}, false},
		{"relative addons url", func(c *Config) { c.AddonsURL = "/#/addons" }, true},
		{"non http addons url", func(c *Config) { c.AddonsURL = "ftp://web.stremio.com" }, true},
		{"negative timeout", func(c *Config) { c.Scan.Timeout = -time.Minute }, true},
		{"negative fetch timeout", func(c *Config) { c.Scan.FetchTimeout = -time.Second }, true},
		{"negative slow mo", func(c *Config) { c.Browser.SlowMo = -time.Millisecond }, true},
		{"bad glob", func(c *Config) { c.Scan.Include = []string{"[oops"} }, true},
		{"history without path", func(c *Config) { c.History = HistoryConfig{Enabled: true} }, true},
		{"artifacts without dir", func(c *Config) { c.Artifacts.OutputDir = "" }, true},
		{"artifacts disabled without dir", func(c *Config) { c.Artifacts = ArtifactConfig{} }, false},
		{"bad verbosity", func(c *Config) { c.Logging.Verbosity = "shouty" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("fills default verbosity", func(t *testing.T) {
		c := DefaultConfig()
		c.Logging.Verbosity = ""
		require.NoError(t, c.Validate())
		assert.Equal(t, "normal", c.Logging.Verbosity)
	})
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, "https://web.stremio.com/#/addons", c.AddonsURL)
	assert.True(t, c.Browser.Headless)
	assert.True(t, c.Artifacts.Enabled)
	assert.True(t, c.Artifacts.JSON)
	assert.True(t, c.Artifacts.Markdown)
	assert.False(t, c.History.Enabled)
	assert.False(t, c.FailOnOutdated)

	opts := c.SessionOptions()
	assert.True(t, opts.Headless)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	yaml := `
addons_url: https://web.stremio.com/#/addons
fail_on_outdated: true
browser:
  headless: false
  user_data_dir: /tmp/profile
  slow_mo: 250ms
scan:
  include: ["torrentio*", "opensubtitles*"]
  exclude: ["*beta*"]
  timeout: 3m
history:
  enabled: true
  path: /tmp/history.db
logging:
  verbosity: verbose
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, path, c.ConfigFilePath)
	assert.True(t, c.FailOnOutdated)
	assert.False(t, c.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, c.Browser.SlowMo)
	assert.Equal(t, 3*time.Minute, c.Scan.Timeout)
	assert.Equal(t, []string{"torrentio*", "opensubtitles*"}, c.Scan.Include)
	assert.Equal(t, "verbose", c.Logging.Verbosity)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 15*time.Second, c.Scan.FetchTimeout)
	assert.True(t, c.Artifacts.Enabled)

	assert.Equal(t, float64(250), c.SessionOptions().SlowMo)
	assert.Equal(t, "/tmp/profile", c.SessionOptions().UserDataDir)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scan: [unclosed"), 0600))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"quiet":   LogLevelQuiet,
		"normal":  LogLevelNormal,
		"verbose": LogLevelVerbose,
		"debug":   LogLevelDebug,
		"":        LogLevelNormal,
		"other":   LogLevelNormal,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func sampleSummary() *scan.Summary {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &scan.Summary{
		RunID:      "run-42",
		State:      scan.StateCompleted,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Results: []scan.Result{
			{Name: "Torrentio", CurrentVersion: "0.0.13", ManifestVersion: "0.0.14", NeedsUpdate: true},
			{Name: "Cinemeta", CurrentVersion: "3.0.0", ManifestVersion: "3.0.0"},
			{Name: "Broken", CurrentVersion: "1.0.0", Error: "manifest URL not found"},
		},
	}
}

func TestLogger(t *testing.T) {
	t.Run("quiet hides progress but keeps warnings and summary", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerTo(LogLevelQuiet, &buf, false)

		l.Header("header")
		l.Section("section")
		l.Verbosef("detail")
		l.Warningf("careful")
		l.Errorf("bad")
		l.Summary(sampleSummary(), nil)

		out := buf.String()
		assert.NotContains(t, out, "header")
		assert.NotContains(t, out, "section")
		assert.NotContains(t, out, "detail")
		assert.Contains(t, out, "Warning: careful")
		assert.Contains(t, out, "Error: bad")
		assert.Contains(t, out, "SCAN SUMMARY")
		assert.Contains(t, out, "3 checked, 1 outdated, 1 up to date, 1 unknown")
		assert.NotContains(t, out, "\033[")
	})

	t.Run("verbose prints table errors and repeats", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerTo(LogLevelVerbose, &buf, false)

		l.Section("Checking addons")
		l.Verbosef("detail %d", 7)
		l.Summary(sampleSummary(), []string{"Torrentio", "Gone"})

		out := buf.String()
		assert.Contains(t, out, "▶ Checking addons")
		assert.Contains(t, out, "→ detail 7")
		assert.Contains(t, out, "UPDATES AVAILABLE")
		assert.Contains(t, out, "Still outdated since the last run:")
		assert.Contains(t, out, "• Torrentio")
		assert.NotContains(t, out, "• Gone")
		assert.Contains(t, out, "Broken: manifest URL not found")
		assert.Contains(t, out, "0.0.14")
	})

	t.Run("cancelled status", func(t *testing.T) {
		var buf bytes.Buffer
		s := sampleSummary()
		s.State = scan.StateCancelled
		NewLoggerTo(LogLevelNormal, &buf, true).Summary(s, nil)
		assert.Contains(t, buf.String(), "CANCELLED")
		assert.Contains(t, buf.String(), "\033[")
	})
}

func TestArtifactWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")

	w := NewArtifactWriter(dir, ArtifactConfig{Enabled: true, JSON: true, Markdown: true}, "1.2.3")
	paths, err := w.WriteAll(sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ResultsFile), filepath.Join(dir, SummaryFile)}, paths)

	raw, err := os.ReadFile(filepath.Join(dir, ResultsFile))
	require.NoError(t, err)
	var doc report.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "1.2.3", doc.Version)
	assert.Equal(t, 1, doc.Counts.Outdated)
	assert.Len(t, doc.Summary.Results, 3)

	md, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Torrentio")

	only := NewArtifactWriter(filepath.Join(t.TempDir(), "json-only"), ArtifactConfig{JSON: true}, "1")
	paths, err = only.WriteAll(sampleSummary())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

// manifestHost serves {"version": ...} for every path in versions.
func manifestHost(t *testing.T, versions map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := versions[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"id":"org%s","version":%q}`, strings.TrimSuffix(r.URL.Path, ".json"), v)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastScanOptions() []scan.Option {
	return []scan.Option{
		scan.WithPollInterval(5 * time.Millisecond),
		scan.WithTimeouts(scan.Timeouts{
			AlternateSearch: 50 * time.Millisecond,
			DetailsReady:    100 * time.Millisecond,
			DetailsSettle:   time.Millisecond,
			ManifestLabel:   30 * time.Millisecond,
			BetweenEntries:  time.Millisecond,
		}),
		scan.WithModalTimeouts(modal.Timeouts{
			Open:     150 * time.Millisecond,
			Fallback: 50 * time.Millisecond,
			Close:    150 * time.Millisecond,
			Settle:   time.Millisecond,
		}),
	}
}

func newTestExecutor(t *testing.T, cfg *Config, out *bytes.Buffer, ids ...string) (*Executor, *domtest.AddonsPage) {
	t.Helper()
	srv := manifestHost(t, map[string]string{"/torrentio.json": "0.0.14", "/cinemeta.json": "3.0.0"})
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Torrentio", Version: "0.0.13", ManifestURL: srv.URL + "/torrentio.json"},
		{Name: "Cinemeta", Version: "3.0.0", ManifestURL: srv.URL + "/cinemeta.json"},
		{Name: "Local", Version: "1.0.0", URLStyle: domtest.URLNone},
	})

	e, err := NewExecutor(cfg, Target{Document: page, Fetcher: manifest.NewHTTPFetcher(time.Second)},
		WithLogger(NewLoggerTo(LogLevelVerbose, out, false)),
		WithScanOptions(fastScanOptions()...),
		WithVersion("test"),
	)
	require.NoError(t, err)

	n := 0
	e.newID = func() string {
		n++
		if n <= len(ids) {
			return ids[n-1]
		}
		return fmt.Sprintf("run-%d", n)
	}
	return e, page
}

func TestExecutor_Run(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Artifacts.OutputDir = filepath.Join(dir, "artifacts")
	cfg.History = HistoryConfig{Enabled: true, Path: filepath.Join(dir, "history.db")}

	var out bytes.Buffer
	e, page := newTestExecutor(t, cfg, &out, "first", "second")

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "first", summary.RunID)
	assert.Equal(t, scan.StateCompleted, summary.State)
	assert.Equal(t, 1, summary.Counts().Outdated)
	assert.Equal(t, 0, page.OpenPanels())

	assert.FileExists(t, filepath.Join(cfg.Artifacts.OutputDir, ResultsFile))
	assert.FileExists(t, filepath.Join(cfg.Artifacts.OutputDir, SummaryFile))
	assert.Contains(t, out.String(), "Torrentio")
	assert.NotContains(t, out.String(), "Still outdated")

	_, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Still outdated since the last run:")

	store, err := history.Open(cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.LatestRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].ID)

	results, err := store.Results(context.Background(), "first")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestExecutor_FailOnOutdated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Artifacts.Enabled = false
	cfg.FailOnOutdated = true
	cfg.Scan.Exclude = []string{"cinemeta"}

	var out bytes.Buffer
	e, _ := newTestExecutor(t, cfg, &out)

	summary, err := e.Run(context.Background())
	assert.True(t, errors.Is(err, ErrOutdated))
	require.NotNil(t, summary)
	assert.Len(t, summary.Results, 2)

	cfg.Scan.Include = []string{"cinemeta", "local"}
	cfg.Scan.Exclude = nil
	summary, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 2)
}

func TestExecutor_ListMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Artifacts.Enabled = false

	doc := domtest.MustParse(`<html><body><p>Sign in</p></body></html>`)
	var out bytes.Buffer
	e, err := NewExecutor(cfg, Target{Document: doc, Fetcher: manifest.NewHTTPFetcher(time.Second)},
		WithLogger(NewLoggerTo(LogLevelNormal, &out, false)))
	require.NoError(t, err)

	summary, err := e.Run(context.Background())
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, scan.ErrListNotFound))
	assert.Contains(t, out.String(), "Error:")
}

func TestExecutor_ListMissingLeavesNoRunningHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Artifacts.Enabled = false
	cfg.History = HistoryConfig{Enabled: true, Path: filepath.Join(dir, "history.db")}

	doc := domtest.MustParse(`<html><body><p>Sign in</p></body></html>`)
	var out bytes.Buffer
	e, err := NewExecutor(cfg, Target{Document: doc, Fetcher: manifest.NewHTTPFetcher(time.Second)},
		WithLogger(NewLoggerTo(LogLevelNormal, &out, false)))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.True(t, errors.Is(err, scan.ErrListNotFound))

	store, err := history.Open(cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.LatestRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewExecutor_Rejects(t *testing.T) {
	bad := DefaultConfig()
	bad.AddonsURL = ""
	_, err := NewExecutor(bad, Target{Document: domtest.MustParse("<html></html>"), Fetcher: manifest.NewHTTPFetcher(0)})
	assert.Error(t, err)

	_, err = NewExecutor(DefaultConfig(), Target{})
	assert.Error(t, err)
}
