package browser

import (
	"context"
	"fmt"
	"time"
)

// AddonsSessionName is the session name used for the scanned page.
const AddonsSessionName = "addons"

// AddonsPageOptions configures OpenAddonsPage.
type AddonsPageOptions struct {
	Session      SessionOptions
	URL          string
	ListSelector string
	ListTimeout  time.Duration
}

// AddonsPage is a started driver with one session on the addons route.
type AddonsPage struct {
	Manager  *SessionManager
	Session  *Session
	Document *Document
}

// OpenAddonsPage starts Playwright, launches a session and waits for the
// addons list. On error everything started so far is shut down.
func OpenAddonsPage(ctx context.Context, opts AddonsPageOptions) (*AddonsPage, error) {
	mgr := NewSessionManager()
	if err := mgr.Initialize(); err != nil {
		return nil, err
	}

	page, err := openAddonsPage(ctx, mgr, opts)
	if err != nil {
		_ = mgr.Shutdown()
		return nil, err
	}
	return page, nil
}

func openAddonsPage(ctx context.Context, mgr *SessionManager, opts AddonsPageOptions) (*AddonsPage, error) {
	sess, err := mgr.StartSession(AddonsSessionName, opts.Session)
	if err != nil {
		return nil, err
	}
	if err := sess.OpenAddons(ctx, opts.URL, opts.ListSelector, opts.ListTimeout); err != nil {
		return nil, err
	}
	doc, err := sess.Document()
	if err != nil {
		return nil, fmt.Errorf("failed to attach to page: %w", err)
	}
	return &AddonsPage{Manager: mgr, Session: sess, Document: doc}, nil
}

// Fetcher returns a manifest fetcher sharing the page's network stack.
func (p *AddonsPage) Fetcher(timeout time.Duration) *RequestFetcher {
	return p.Session.Fetcher(timeout)
}

// Close shuts the browser and the driver down.
func (p *AddonsPage) Close() error {
	return p.Manager.Shutdown()
}
