// Package main provides the Sentinel headless runner for cron jobs and CI.
// It opens the addons page, checks every addon once, writes artifacts and
// exits non-zero when configured to fail on outdated addons.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/sentinel/pkg/browser"
	appconfig "github.com/entrhq/sentinel/pkg/config"
	"github.com/entrhq/sentinel/pkg/executor/headless"
	"github.com/entrhq/sentinel/pkg/locator"
	"github.com/entrhq/sentinel/pkg/logging"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/scan"
)

const version = "0.1.0"

// Exit codes
const (
	exitError    = 1
	exitOutdated = 2
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile     string
	SettingsFile   string
	AddonsURL      string
	Profile        string
	Timeout        time.Duration
	OutputDir      string
	HistoryDB      string
	Verbosity      string
	FailOnOutdated bool
	Color          bool
	ShowVersion    bool

	set map[string]bool
}

func main() {
	// Parse command line flags
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("Sentinel Headless v%s\n", version)
		return
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	err := run(ctx, config)
	cancel()
	switch {
	case errors.Is(err, headless.ErrOutdated):
		os.Exit(exitOutdated)
	case err != nil:
		log.Printf("Execution failed: %v", err)
		os.Exit(exitError)
	}
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	config := &CLIConfig{set: make(map[string]bool)}

	flag.StringVar(&config.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&config.SettingsFile, "settings", "", "Path to the shared settings file for selectors and timings (default ~/.sentinel/config.json)")
	flag.StringVar(&config.AddonsURL, "url", "", "Addons page to open")
	flag.StringVar(&config.Profile, "profile", "", "Browser profile directory with a signed-in account")
	flag.DurationVar(&config.Timeout, "timeout", 0, "Bound the whole run (overrides scan.timeout)")
	flag.StringVar(&config.OutputDir, "output", "", "Directory for results.json and summary.md")
	flag.StringVar(&config.HistoryDB, "history", "", "Record runs in this SQLite database")
	flag.StringVar(&config.Verbosity, "verbosity", "", "Console verbosity: quiet, normal, verbose or debug")
	flag.BoolVar(&config.FailOnOutdated, "fail-on-outdated", false, fmt.Sprintf("Exit with status %d when any addon is outdated", exitOutdated))
	flag.BoolVar(&config.Color, "color", false, "Colored console output (overrides logging.color)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sentinel Headless - Stremio addon update checks for cron and CI\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sentinel-headless [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run with config file\n")
		fmt.Fprintf(os.Stderr, "  sentinel-headless -config sentinel.yaml\n\n")
		fmt.Fprintf(os.Stderr, "  # Fail the job when updates are available\n")
		fmt.Fprintf(os.Stderr, "  sentinel-headless -profile ~/.sentinel/profile -fail-on-outdated\n\n")
		fmt.Fprintf(os.Stderr, "  # Keep history between runs\n")
		fmt.Fprintf(os.Stderr, "  sentinel-headless -config sentinel.yaml -history .sentinel/history.db\n\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) { config.set[f.Name] = true })
	return config
}

// run executes the headless mode
func run(ctx context.Context, cliConfig *CLIConfig) error {
	execConfig, err := loadConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := execConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Shared settings supply selector overrides and step timings
	if err := appconfig.Initialize(cliConfig.SettingsFile); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	strategy, err := appconfig.GetSelectors().Strategy()
	if err != nil {
		return fmt.Errorf("invalid selector overrides: %w", err)
	}

	logger := logging.MustLogger("headless")
	defer logger.Close()
	if execConfig.Logging.Verbosity == "debug" {
		logger.SetLevel(logging.LevelDebug)
	}

	scanLog := logger.Named("scan")
	defer scanLog.Close()
	scanOpts := append(appconfig.GetScan().Timings(),
		scan.WithStrategy(strategy),
		scan.WithLogger(scanLog),
	)

	sessionOpts := execConfig.SessionOptions()
	sessionOpts.Viewport = appconfig.GetBrowser().SessionOptions().Viewport

	log.Printf("Opening %s", execConfig.AddonsURL)
	page, err := browser.OpenAddonsPage(ctx, browser.AddonsPageOptions{
		Session:      sessionOpts,
		URL:          execConfig.AddonsURL,
		ListSelector: strategy.Selector(locator.RoleListContainer),
		ListTimeout:  execConfig.Browser.ListTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open addons page: %w", err)
	}
	defer page.Close()

	var fetcher manifest.Fetcher = page.Fetcher(execConfig.Scan.FetchTimeout)
	if !appconfig.GetScan().UseBrowserFetch() {
		fetcher = manifest.NewHTTPFetcher(execConfig.Scan.FetchTimeout)
	}

	executor, err := headless.NewExecutor(execConfig,
		headless.Target{Document: page.Document, Fetcher: fetcher},
		headless.WithScanOptions(scanOpts...),
		headless.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	_, err = executor.Run(ctx)
	return err
}

// loadConfig loads execution configuration from file, then applies
// explicitly given flags on top.
func loadConfig(cliConfig *CLIConfig) (*headless.Config, error) {
	config := headless.DefaultConfig()
	if cliConfig.ConfigFile != "" {
		var err error
		if config, err = headless.LoadConfig(cliConfig.ConfigFile); err != nil {
			return nil, err
		}
	}

	if cliConfig.set["url"] {
		config.AddonsURL = cliConfig.AddonsURL
	}
	if cliConfig.set["profile"] {
		config.Browser.UserDataDir = cliConfig.Profile
	}
	if cliConfig.set["timeout"] {
		config.Scan.Timeout = cliConfig.Timeout
	}
	if cliConfig.set["output"] {
		config.Artifacts.Enabled = true
		config.Artifacts.OutputDir = cliConfig.OutputDir
	}
	if cliConfig.set["history"] {
		config.History.Enabled = true
		config.History.Path = cliConfig.HistoryDB
	}
	if cliConfig.set["verbosity"] {
		config.Logging.Verbosity = cliConfig.Verbosity
	}
	if cliConfig.set["fail-on-outdated"] {
		config.FailOnOutdated = cliConfig.FailOnOutdated
	}
	if cliConfig.set["color"] {
		config.Logging.Color = cliConfig.Color
	}
	return config, nil
}
