package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// ErrNotInitialized is returned when sessions are requested before the
// driver is running.
var ErrNotInitialized = errors.New("session manager not initialized")

// SessionManager owns the Playwright driver and the Chromium sessions
// launched on it.
type SessionManager struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	sessions map[string]*Session
}

// NewSessionManager creates a manager with no driver running.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Initialize installs Chromium if needed and starts the driver. Driver
// output is discarded so it cannot corrupt the terminal UI.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pw != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	m.pw = pw
	return nil
}

// StartSession launches Chromium under name and returns its first page.
func (m *SessionManager) StartSession(name string, opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pw == nil {
		return nil, ErrNotInitialized
	}
	if _, exists := m.sessions[name]; exists {
		return nil, fmt.Errorf("session %q already exists", name)
	}

	opts = opts.withDefaults()
	b, bctx, err := m.launch(opts)
	if err != nil {
		return nil, err
	}

	// A persistent context opens with a blank page already.
	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		closeQuietly(nil, bctx, b)
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	sess := &Session{
		Name:     name,
		Browser:  b,
		Context:  bctx,
		Page:     page,
		Headless: opts.Headless,
		Profile:  opts.UserDataDir,
	}
	m.sessions[name] = sess
	return sess, nil
}

func (m *SessionManager) launch(opts SessionOptions) (playwright.Browser, playwright.BrowserContext, error) {
	viewport := &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	var slowMo *float64
	if opts.SlowMo > 0 {
		slowMo = &opts.SlowMo
	}

	if opts.UserDataDir != "" {
		bctx, err := m.pw.Chromium.LaunchPersistentContext(opts.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: &opts.Headless,
			Viewport: viewport,
			SlowMo:   slowMo,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch browser with profile %s: %w", opts.UserDataDir, err)
		}
		return nil, bctx, nil
	}

	b, err := m.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		SlowMo:   slowMo,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{Viewport: viewport})
	if err != nil {
		_ = b.Close()
		return nil, nil, fmt.Errorf("failed to create context: %w", err)
	}
	return b, bctx, nil
}

// Session returns the session started under name.
func (m *SessionManager) Session(name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("session %q not found", name)
	}
	return sess, nil
}

// Sessions returns the number of open sessions.
func (m *SessionManager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseSession closes the session's page, context and browser.
func (m *SessionManager) CloseSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[name]
	if !ok {
		return fmt.Errorf("session %q not found", name)
	}
	closeQuietly(sess.Page, sess.Context, sess.Browser)
	delete(m.sessions, name)
	return nil
}

// Shutdown closes every session and stops the driver. Safe to call more
// than once.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, sess := range m.sessions {
		closeQuietly(sess.Page, sess.Context, sess.Browser)
		delete(m.sessions, name)
	}

	if m.pw == nil {
		return nil
	}
	err := m.pw.Stop()
	m.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func closeQuietly(page playwright.Page, bctx playwright.BrowserContext, b playwright.Browser) {
	if page != nil {
		_ = page.Close()
	}
	if bctx != nil {
		_ = bctx.Close()
	}
	if b != nil {
		_ = b.Close()
	}
}
