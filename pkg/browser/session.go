package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// waitUntil returns DOM-ready navigation options; a zero timeout keeps the
// page default.
func waitUntil(ms float64) (*playwright.WaitUntilState, *float64) {
	if ms <= 0 {
		return playwright.WaitUntilStateDomcontentloaded, nil
	}
	return playwright.WaitUntilStateDomcontentloaded, &ms
}

// Navigate loads url and returns once the DOM is parsed.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	state, ms := waitUntil(float64(timeout.Milliseconds()))
	if _, err := s.Page.Goto(url, playwright.PageGotoOptions{WaitUntil: state, Timeout: ms}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Reload reloads the current page and returns once the DOM is parsed.
func (s *Session) Reload(timeout time.Duration) error {
	state, ms := waitUntil(float64(timeout.Milliseconds()))
	if _, err := s.Page.Reload(playwright.PageReloadOptions{WaitUntil: state, Timeout: ms}); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

// OpenAddons brings the page to the addons route and waits for the list to
// render. A page already on the route is reloaded so the list is fresh.
func (s *Session) OpenAddons(ctx context.Context, addonsURL, listSelector string, timeout time.Duration) error {
	if addonsURL == "" {
		addonsURL = DefaultAddonsURL
	}
	if timeout <= 0 {
		timeout = DefaultListTimeout
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if sameRoute(s.Page.URL(), addonsURL) {
		err = s.Reload(0)
	} else {
		err = s.Navigate(addonsURL, 0)
	}
	if err != nil {
		return err
	}

	ms := float64(timeout.Milliseconds())
	if _, err := s.Page.WaitForSelector(listSelector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: &ms,
	}); err != nil {
		return fmt.Errorf("addons list did not render: %w", err)
	}
	return nil
}

// Document returns the page as a dom.Document. The same Document is
// returned on every call.
func (s *Session) Document() (*Document, error) {
	s.docOnce.Do(func() {
		s.doc, s.docErr = NewDocument(s.Page)
	})
	return s.doc, s.docErr
}

// Fetcher returns a manifest fetcher that shares the session's cookies
// and network stack.
func (s *Session) Fetcher(timeout time.Duration) *RequestFetcher {
	return NewRequestFetcher(s.Context.Request(), timeout)
}

func sameRoute(current, target string) bool {
	return strings.TrimRight(current, "/") == strings.TrimRight(target, "/")
}
