package browser

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultAddonsURL is the Stremio Web addons route.
	DefaultAddonsURL = "https://web.stremio.com/#/addons"

	// DefaultViewportWidth and DefaultViewportHeight size new pages.
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 900

	// DefaultTimeout is the default Playwright operation timeout in
	// milliseconds.
	DefaultTimeout = 30000

	// DefaultListTimeout bounds how long OpenAddons waits for the list.
	DefaultListTimeout = 20 * time.Second
)

// Session is an open browser page with its owning context.
type Session struct {
	Name string

	// Browser is nil for persistent-profile sessions, where the context
	// owns the browser process.
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page

	Headless bool
	Profile  string

	docOnce sync.Once
	doc     *Document
	docErr  error
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	Headless bool

	// UserDataDir, when set, launches a persistent profile so a signed-in
	// account and its installed addons survive between runs.
	UserDataDir string

	// Viewport defaults to DefaultViewportWidth x DefaultViewportHeight.
	Viewport *Viewport

	// SlowMo delays every Playwright operation, in milliseconds.
	SlowMo float64

	// Timeout sets the default timeout for operations, in milliseconds.
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Viewport == nil {
		o.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}
