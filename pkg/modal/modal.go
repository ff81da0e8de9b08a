// Package modal opens, tracks and dismisses the host's transient detail
// panels.
package modal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/locator"
	"github.com/entrhq/sentinel/pkg/waiter"
)

// Timeouts bounds each phase of a panel's lifecycle.
type Timeouts struct {
	// Open is how long to wait for the panel count to grow after the
	// trigger fires.
	Open time.Duration
	// Fallback is how long the document-wide details search may take once
	// Open has elapsed.
	Fallback time.Duration
	// Close is how long to wait for a dismissed panel to go away.
	Close time.Duration
	// Settle is the pause after dismissal before the page is used again.
	Settle time.Duration
}

// DefaultTimeouts returns the timings tuned against Stremio Web.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Open:     2500 * time.Millisecond,
		Fallback: 1000 * time.Millisecond,
		Close:    1500 * time.Millisecond,
		Settle:   50 * time.Millisecond,
	}
}

// Tracker manages detail panels on one document.
type Tracker struct {
	doc      dom.Document
	strategy locator.Strategy
	waiter   *waiter.Waiter
	timeouts Timeouts
}

// New creates a Tracker. Zero timeouts are replaced by their defaults.
func New(doc dom.Document, strategy locator.Strategy, w *waiter.Waiter, timeouts Timeouts) *Tracker {
	defaults := DefaultTimeouts()
	if timeouts.Open <= 0 {
		timeouts.Open = defaults.Open
	}
	if timeouts.Fallback <= 0 {
		timeouts.Fallback = defaults.Fallback
	}
	if timeouts.Close <= 0 {
		timeouts.Close = defaults.Close
	}
	if timeouts.Settle < 0 {
		timeouts.Settle = 0
	}
	return &Tracker{
		doc:      doc,
		strategy: strategy,
		waiter:   w,
		timeouts: timeouts,
	}
}

// Timeouts returns the effective timeouts.
func (t *Tracker) Timeouts() Timeouts {
	return t.timeouts
}

// PanelCount returns the number of open panels: modal containers inside the
// modals container if any, otherwise the container's child count.
func (t *Tracker) PanelCount() int {
	panels, err := t.panels()
	if err != nil {
		return 0
	}
	dom.Release(panels...)
	return len(panels)
}

// LatestPanel returns the most recently opened panel, or nil.
func (t *Tracker) LatestPanel() (dom.Node, error) {
	panels, err := t.panels()
	if err != nil || len(panels) == 0 {
		return nil, err
	}
	last := len(panels) - 1
	dom.Release(panels[:last]...)
	return panels[last], nil
}

func (t *Tracker) panels() ([]dom.Node, error) {
	container, err := t.modalsContainer()
	if err != nil || container == nil {
		return nil, err
	}
	defer dom.Release(container)

	modals, err := container.QuerySelectorAll(t.strategy.Selector(locator.RoleModalContainer))
	if err != nil {
		return nil, err
	}
	if len(modals) > 0 {
		return modals, nil
	}
	return container.Children()
}

func (t *Tracker) modalsContainer() (dom.Node, error) {
	return t.doc.Root().QuerySelector(t.strategy.Selector(locator.RoleModalsContainer))
}

// OpenAndTrack fires trigger and waits up to timeout for a panel beyond
// the before count to appear. When none does, the whole document is
// searched for a details container as a second chance. It returns nil
// without error when no panel could be found.
func (t *Tracker) OpenAndTrack(ctx context.Context, trigger func() error, before int, timeout time.Duration) (dom.Node, error) {
	if timeout <= 0 {
		timeout = t.timeouts.Open
	}
	if err := trigger(); err != nil {
		return nil, fmt.Errorf("failed to trigger panel: %w", err)
	}

	if c, _ := t.modalsContainer(); c != nil {
		dom.Release(c)
	} else {
		c, err := t.waiter.WaitFor(ctx, waiter.Selector(t.strategy.Selector(locator.RoleModalsContainer)), nil, timeout)
		if err != nil && !errors.Is(err, waiter.ErrNotFound) {
			return nil, err
		}
		dom.Release(c)
	}

	var panel dom.Node
	err := t.waiter.Until(ctx, t.doc.Root(), timeout, func() (bool, error) {
		if t.PanelCount() <= before {
			return false, nil
		}
		latest, err := t.LatestPanel()
		if err != nil || latest == nil {
			return false, err
		}
		panel = latest
		return true, nil
	})
	switch {
	case err == nil:
		return panel, nil
	case !errors.Is(err, waiter.ErrNotFound):
		return nil, err
	}

	return t.Locate(ctx, t.timeouts.Fallback)
}

// Locate searches the whole document for a details container and returns
// its enclosing panel, or the details container itself when no enclosing
// panel is recognisable. It returns nil without error when nothing turns
// up within timeout.
func (t *Tracker) Locate(ctx context.Context, timeout time.Duration) (dom.Node, error) {
	details, err := t.waiter.WaitFor(ctx, waiter.Selector(t.strategy.Selector(locator.RoleDetailsContainer)), nil, timeout)
	if errors.Is(err, waiter.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	root, err := t.Enclosing(details)
	if err != nil || root == nil {
		return details, nil
	}
	if root != details {
		dom.Release(details)
	}
	return root, nil
}

// Enclosing walks up from n, stopping below body, and returns the first
// ancestor-or-self the strategy recognises as a panel root. Ancestors it
// passes over are released.
func (t *Tracker) Enclosing(n dom.Node) (dom.Node, error) {
	cur := n
	drop := func() {
		if cur != n {
			dom.Release(cur)
		}
	}
	for cur != nil {
		if body, err := cur.Matches("body"); err != nil || body {
			drop()
			return nil, err
		}
		ok, err := t.strategy.IsPanelRoot(cur)
		if err != nil {
			drop()
			return nil, err
		}
		if ok {
			return cur, nil
		}
		next, err := cur.Parent()
		drop()
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return nil, nil
}

// Close dismisses panel and waits for it to go away. Controls are tried in
// order: cancel inside the panel, close inside the panel, then the same two
// anywhere in the document, and finally a synthetic Escape. panel may be
// nil, in which case only the document-wide paths apply.
//
// The wait ends when panel is detached or the panel count is back to
// before. Only context errors are returned; a panel that refuses to close
// is left for the next Close.
func (t *Tracker) Close(ctx context.Context, panel dom.Node, before int) error {
	if control := t.dismissControl(panel); control != nil {
		if err := control.Click(); err != nil {
			_ = t.doc.DispatchEscape()
		}
		dom.Release(control)
	} else {
		_ = t.doc.DispatchEscape()
	}

	err := t.waiter.Until(ctx, t.doc.Root(), t.timeouts.Close, func() (bool, error) {
		if panel != nil {
			if connected, err := panel.Connected(); err == nil && !connected {
				return true, nil
			}
		}
		return t.PanelCount() <= before, nil
	})
	if err != nil && !errors.Is(err, waiter.ErrNotFound) {
		return err
	}

	return t.waiter.Sleep(ctx, t.timeouts.Settle)
}

func (t *Tracker) dismissControl(panel dom.Node) dom.Node {
	cancel := t.strategy.Selector(locator.RoleCancelButton)
	closeSel := t.strategy.Selector(locator.RoleCloseButton)
	root := t.doc.Root()

	attempts := []struct {
		scope    dom.Node
		selector string
	}{
		{panel, cancel},
		{panel, closeSel},
		{root, cancel},
		{root, closeSel},
	}
	for _, a := range attempts {
		if a.scope == nil {
			continue
		}
		if n, err := a.scope.QuerySelector(a.selector); err == nil && n != nil {
			return n
		}
	}
	return nil
}
