package config

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/entrhq/sentinel/pkg/browser"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	defaultHeadless    = false
	defaultSlowMo      = 0 * time.Millisecond
	defaultPageTimeout = 30 * time.Second
	defaultListTimeout = browser.DefaultListTimeout
)

// BrowserSection configures the Playwright session the scanner drives.
type BrowserSection struct {
	Headless       bool          `json:"headless"`
	AddonsURL      string        `json:"addons_url"`
	UserDataDir    string        `json:"user_data_dir"`
	ViewportWidth  int           `json:"viewport_width"`
	ViewportHeight int           `json:"viewport_height"`
	SlowMo         time.Duration `json:"slow_mo"`
	PageTimeout    time.Duration `json:"page_timeout"`
	ListTimeout    time.Duration `json:"list_timeout"`
	mu             sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Configure the browser used to open the addons page, including an optional persistent profile."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"headless":        s.Headless,
		"addons_url":      s.AddonsURL,
		"user_data_dir":   s.UserDataDir,
		"viewport_width":  s.ViewportWidth,
		"viewport_height": s.ViewportHeight,
		"slow_mo":         s.SlowMo.String(),
		"page_timeout":    s.PageTimeout.String(),
		"list_timeout":    s.ListTimeout.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "headless":
			s.Headless, err = boolValue(key, value)
		case "addons_url":
			s.AddonsURL, err = stringValue(key, value)
		case "user_data_dir":
			s.UserDataDir, err = stringValue(key, value)
		case "viewport_width":
			s.ViewportWidth, err = intValue(key, value)
		case "viewport_height":
			s.ViewportHeight, err = intValue(key, value)
		case "slow_mo":
			s.SlowMo, err = durationValue(key, value)
		case "page_timeout":
			s.PageTimeout, err = durationValue(key, value)
		case "list_timeout":
			s.ListTimeout, err = durationValue(key, value)
		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := url.Parse(s.AddonsURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("addons_url must be an http(s) URL, got %q", s.AddonsURL)
	}
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", s.ViewportWidth, s.ViewportHeight)
	}
	if s.SlowMo < 0 {
		return fmt.Errorf("slow_mo must not be negative")
	}
	if s.PageTimeout <= 0 || s.ListTimeout <= 0 {
		return fmt.Errorf("page_timeout and list_timeout must be positive")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Headless = defaultHeadless
	s.AddonsURL = browser.DefaultAddonsURL
	s.UserDataDir = ""
	s.ViewportWidth = browser.DefaultViewportWidth
	s.ViewportHeight = browser.DefaultViewportHeight
	s.SlowMo = defaultSlowMo
	s.PageTimeout = defaultPageTimeout
	s.ListTimeout = defaultListTimeout
}

// SessionOptions converts the section into Playwright session options.
func (s *BrowserSection) SessionOptions() browser.SessionOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return browser.SessionOptions{
		Headless:    s.Headless,
		UserDataDir: s.UserDataDir,
		Viewport: &browser.Viewport{
			Width:  s.ViewportWidth,
			Height: s.ViewportHeight,
		},
		SlowMo:  float64(s.SlowMo.Milliseconds()),
		Timeout: float64(s.PageTimeout.Milliseconds()),
	}
}

// GetAddonsURL returns the addons route to open.
func (s *BrowserSection) GetAddonsURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AddonsURL
}

// GetListTimeout returns how long to wait for the addons list to render.
func (s *BrowserSection) GetListTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ListTimeout
}

// SetHeadless sets whether the browser window is hidden.
func (s *BrowserSection) SetHeadless(headless bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = headless
}

// SetAddonsURL sets the addons route to open.
func (s *BrowserSection) SetAddonsURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddonsURL = url
}

// SetUserDataDir sets the persistent profile directory. Empty means a
// fresh profile per run.
func (s *BrowserSection) SetUserDataDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserDataDir = dir
}
