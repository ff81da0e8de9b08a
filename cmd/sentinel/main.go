// Package main provides the Sentinel terminal app, which checks the addons
// installed in Stremio Web against their published manifests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/entrhq/sentinel/pkg/browser"
	appconfig "github.com/entrhq/sentinel/pkg/config"
	"github.com/entrhq/sentinel/pkg/executor/cli"
	"github.com/entrhq/sentinel/pkg/executor/tui"
	"github.com/entrhq/sentinel/pkg/history"
	"github.com/entrhq/sentinel/pkg/locator"
	"github.com/entrhq/sentinel/pkg/logging"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/report"
	"github.com/entrhq/sentinel/pkg/scan"
)

const version = "0.1.0"

// Config holds the application configuration
type Config struct {
	ConfigFile  string
	AddonsURL   string
	Profile     string
	Headless    bool
	Include     listFlag
	Exclude     listFlag
	AutoScan    bool
	NoTUI       bool
	Inline      bool
	FetchURL    string
	HistoryDB   string
	HistoryRuns int
	LogLevel    string
	SaveConfig  bool
	ShowVersion bool

	// set records which flags were given explicitly
	set map[string]bool
}

// listFlag collects comma-separated values, repeatable.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	// Parse command line flags
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("Sentinel v%s\n", version)
		return
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *Config {
	config := &Config{set: make(map[string]bool)}

	flag.StringVar(&config.ConfigFile, "config", "", "Path to the settings file (default ~/.sentinel/config.json)")
	flag.StringVar(&config.AddonsURL, "url", "", "Addons page to open (default from settings)")
	flag.StringVar(&config.Profile, "profile", "", "Browser profile directory, keeps you signed in between runs")
	flag.BoolVar(&config.Headless, "headless", false, "Hide the browser window")
	flag.Var(&config.Include, "include", "Only check addons matching these globs (comma-separated)")
	flag.Var(&config.Exclude, "exclude", "Skip addons matching these globs (comma-separated)")
	flag.BoolVar(&config.AutoScan, "scan", false, "Start scanning as soon as the page is open")
	flag.BoolVar(&config.NoTUI, "no-tui", false, "Use a plain command prompt instead of the interface; with -scan, scan once and exit")
	flag.BoolVar(&config.Inline, "inline", false, "Render the interface without the alternate screen")
	flag.StringVar(&config.FetchURL, "fetch", "", "Fetch one manifest URL, print the result as JSON and exit")
	flag.StringVar(&config.HistoryDB, "history", "", "Print recent runs from a history database and exit")
	flag.IntVar(&config.HistoryRuns, "history-runs", 10, "Number of runs shown by -history")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log file level: debug, info, warn or error")
	flag.BoolVar(&config.SaveConfig, "save", false, "Write the effective settings back to the settings file")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sentinel - Stremio addon update checker\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sentinel [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s   Directory for log files (default ~/.sentinel/logs)\n", logging.LogDirEnv)
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sentinel -profile ~/.sentinel/profile          # Sign in once, then scan\n")
		fmt.Fprintf(os.Stderr, "  sentinel -scan -include 'Torrentio*'\n")
		fmt.Fprintf(os.Stderr, "  sentinel -no-tui -headless -profile ~/.sentinel/profile\n")
		fmt.Fprintf(os.Stderr, "  sentinel -fetch https://v3-cinemeta.strem.io/manifest.json\n")
		fmt.Fprintf(os.Stderr, "  sentinel -history .sentinel/history.db\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) { config.set[f.Name] = true })
	return config
}

// run executes the main application logic
func run(ctx context.Context, config *Config) error {
	if config.HistoryDB != "" {
		return printHistory(ctx, config.HistoryDB, config.HistoryRuns)
	}

	if err := appconfig.Initialize(config.ConfigFile); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	applyOverrides(config)

	if config.SaveConfig {
		if err := appconfig.Global().SaveAll(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
	}

	logger := logging.MustLogger("sentinel")
	defer logger.Close()
	level, err := logging.ParseLevel(config.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if config.FetchURL != "" {
		return fetchOne(ctx, config.FetchURL)
	}

	strategy, err := appconfig.GetSelectors().Strategy()
	if err != nil {
		return fmt.Errorf("invalid selector overrides: %w", err)
	}
	scanOpts, err := appconfig.GetScan().Options()
	if err != nil {
		return fmt.Errorf("invalid scan settings: %w", err)
	}
	scanLog := logger.Named("scan")
	defer scanLog.Close()
	scanOpts = append(scanOpts, scan.WithStrategy(strategy), scan.WithLogger(scanLog))

	browserCfg := appconfig.GetBrowser()
	addonsURL := browserCfg.GetAddonsURL()
	logger.Infof("Opening %s", addonsURL)

	page, err := browser.OpenAddonsPage(ctx, browser.AddonsPageOptions{
		Session:      browserCfg.SessionOptions(),
		URL:          addonsURL,
		ListSelector: strategy.Selector(locator.RoleListContainer),
		ListTimeout:  browserCfg.GetListTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to open addons page: %w (log: %s)", err, logger.LogPath())
	}
	defer page.Close()

	fetcher := manifestFetcher(page)

	if config.NoTUI {
		executor := cli.NewExecutor(page.Document, fetcher,
			cli.WithScanOptions(scanOpts...),
			cli.WithOnce(config.AutoScan),
		)
		return executor.Run(ctx)
	}

	executor := tui.NewExecutor(page.Document, fetcher,
		tui.WithScanOptions(scanOpts...),
		tui.WithTitle(addonsURL),
		tui.WithAutoScan(config.AutoScan),
		tui.WithInlineMode(config.Inline),
	)
	return executor.Run(ctx)
}

// applyOverrides copies explicitly given flags over the stored settings.
func applyOverrides(config *Config) {
	b := appconfig.GetBrowser()
	if config.set["url"] {
		b.SetAddonsURL(config.AddonsURL)
	}
	if config.set["profile"] {
		b.SetUserDataDir(config.Profile)
	}
	if config.set["headless"] {
		b.SetHeadless(config.Headless)
	}

	s := appconfig.GetScan()
	if config.set["include"] || config.set["exclude"] {
		include, exclude := s.Include, s.Exclude
		if config.set["include"] {
			include = config.Include
		}
		if config.set["exclude"] {
			exclude = config.Exclude
		}
		s.SetFilters(include, exclude)
	}
}

func manifestFetcher(page *browser.AddonsPage) manifest.Fetcher {
	s := appconfig.GetScan()
	if s.UseBrowserFetch() {
		return page.Fetcher(s.GetFetchTimeout())
	}
	return manifest.NewHTTPFetcher(s.GetFetchTimeout())
}

// fetchOne resolves a single manifest the way a scan would and prints the
// response.
func fetchOne(ctx context.Context, url string) error {
	fetcher := manifest.NewHTTPFetcher(appconfig.GetScan().GetFetchTimeout())
	resp := manifest.Serve(ctx, fetcher, manifest.Request{URL: url})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("fetch failed: %s", resp.Error)
	}
	return nil
}

func printHistory(ctx context.Context, path string, n int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("history database: %w", err)
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.LatestRuns(ctx, n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	fmt.Println(report.RunsTable(runs))

	outdated, err := store.PreviouslyOutdated(ctx, "")
	if err != nil {
		return err
	}
	if len(outdated) > 0 {
		fmt.Printf("\nOutdated in the latest finished run: %s\n", strings.Join(outdated, ", "))
	}
	return nil
}
