// Package waiter waits for conditions on a live, asynchronously rendered page.
//
// Every wait combines two signals: a subtree observation from the document,
// which reacts to insertions as soon as they happen, and a bounded-interval
// poll that catches changes outside the observed subtree or signals lost in
// rapid churn. Running out of time is a normal outcome reported as
// ErrNotFound, not a failure of the page.
package waiter

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/entrhq/sentinel/pkg/dom"
)

// ErrNotFound is returned when a wait exhausts its timeout.
var ErrNotFound = errors.New("not found before timeout")

// DefaultPollInterval is the fallback poll period.
const DefaultPollInterval = 100 * time.Millisecond

// Condition reports whether the awaited state has been reached. Errors are
// treated as "not yet" because the host page may be mid-render.
type Condition func() (bool, error)

// Matcher looks for a node under root. A nil node means no match yet.
type Matcher func(root dom.Node) (dom.Node, error)

// Selector returns a Matcher for the first descendant matching sel.
func Selector(sel string) Matcher {
	return func(root dom.Node) (dom.Node, error) {
		return root.QuerySelector(sel)
	}
}

// Waiter performs bounded waits against one document.
type Waiter struct {
	doc          dom.Document
	clock        clockwork.Clock
	pollInterval time.Duration
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithClock sets the timing backend.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Waiter) {
		w.clock = clock
	}
}

// WithPollInterval sets the fallback poll period.
func WithPollInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// New creates a Waiter for doc.
func New(doc dom.Document, opts ...Option) *Waiter {
	w := &Waiter{
		doc:          doc,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Clock returns the timing backend shared with callers that need settle
// delays on the same clock.
func (w *Waiter) Clock() clockwork.Clock {
	return w.clock
}

// Until blocks until cond holds, timeout elapses or ctx is done.
// Mutations under root wake the wait early; a nil root relies on polling
// alone. The observation is released before Until returns.
func (w *Waiter) Until(ctx context.Context, root dom.Node, timeout time.Duration, cond Condition) error {
	if holds(cond) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var mutations <-chan struct{}
	if root != nil {
		if obs, err := w.doc.Observe(root); err == nil {
			defer obs.Disconnect()
			mutations = obs.Mutations()
		}
	}

	deadline := w.clock.NewTimer(timeout)
	defer deadline.Stop()

	ticker := w.clock.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.Chan():
			if holds(cond) {
				return nil
			}
			return ErrNotFound
		case <-mutations:
		case <-ticker.Chan():
		}

		if holds(cond) {
			return nil
		}
	}
}

// WaitFor returns the first node under root satisfying match.
// A nil root searches the whole document.
func (w *Waiter) WaitFor(ctx context.Context, match Matcher, root dom.Node, timeout time.Duration) (dom.Node, error) {
	if root == nil {
		root = w.doc.Root()
	}

	var found dom.Node
	err := w.Until(ctx, root, timeout, func() (bool, error) {
		n, err := match(root)
		if err != nil || n == nil {
			return false, err
		}
		found = n
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Sleep pauses for d on the waiter's clock, returning early if ctx is done.
func (w *Waiter) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := w.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

func holds(cond Condition) bool {
	ok, err := cond()
	return err == nil && ok
}
