package headless

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/sentinel/pkg/browser"
	"github.com/entrhq/sentinel/pkg/scan"
)

// Config represents the configuration for a headless scan
type Config struct {
	// AddonsURL is the addons route of the host app
	AddonsURL string `yaml:"addons_url" json:"addons_url"`

	Browser BrowserConfig `yaml:"browser" json:"browser"`
	Scan    ScanConfig    `yaml:"scan" json:"scan"`

	// Scan history
	History HistoryConfig `yaml:"history" json:"history"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// FailOnOutdated makes Run return ErrOutdated when any addon is behind
	FailOnOutdated bool `yaml:"fail_on_outdated" json:"fail_on_outdated"`

	// ConfigFilePath is where the config was loaded from, if anywhere
	ConfigFilePath string `yaml:"-" json:"-"`
}

// BrowserConfig controls the Playwright session
type BrowserConfig struct {
	Headless    bool          `yaml:"headless" json:"headless"`
	UserDataDir string        `yaml:"user_data_dir" json:"user_data_dir"`
	SlowMo      time.Duration `yaml:"slow_mo" json:"slow_mo"`
	ListTimeout time.Duration `yaml:"list_timeout" json:"list_timeout"`
}

// ScanConfig controls which addons are checked and how long the run may take
type ScanConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Timeout bounds the whole run; zero means no limit
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// FetchTimeout bounds each manifest request
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// HistoryConfig enables the SQLite run history
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Color enables ANSI colors on the console
	Color bool `yaml:"color" json:"color"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Individual format flags
	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.AddonsURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("addons_url must be an absolute http(s) URL, got %q", c.AddonsURL)
	}

	if c.Scan.Timeout < 0 {
		return fmt.Errorf("scan timeout cannot be negative")
	}
	if c.Scan.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative")
	}
	if c.Browser.SlowMo < 0 || c.Browser.ListTimeout < 0 {
		return fmt.Errorf("browser timings cannot be negative")
	}

	if _, err := scan.NewFilter(c.Scan.Include, c.Scan.Exclude); err != nil {
		return err
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// Filter compiles the include and exclude globs.
func (c *Config) Filter() (*scan.Filter, error) {
	return scan.NewFilter(c.Scan.Include, c.Scan.Exclude)
}

// SessionOptions returns the browser session options for this run.
func (c *Config) SessionOptions() browser.SessionOptions {
	return browser.SessionOptions{
		Headless:    c.Browser.Headless,
		UserDataDir: c.Browser.UserDataDir,
		SlowMo:      float64(c.Browser.SlowMo.Milliseconds()),
	}
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		AddonsURL: browser.DefaultAddonsURL,
		Browser: BrowserConfig{
			Headless:    true,
			ListTimeout: browser.DefaultListTimeout,
		},
		Scan: ScanConfig{
			Timeout:      10 * time.Minute,
			FetchTimeout: 15 * time.Second,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    ".sentinel/history.db",
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: ".sentinel/artifacts",
			JSON:      true,
			Markdown:  true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ConfigFilePath = path
	return config, nil
}
