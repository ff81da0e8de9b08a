package browser

import (
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/sentinel/pkg/dom"
)

const mutationBinding = "__sentinelMutation"

const (
	observeScript = `(el, id) => {
		const registry = (window.__sentinelObservers = window.__sentinelObservers || {});
		const obs = new MutationObserver(() => window.__sentinelMutation(id));
		obs.observe(el, { childList: true, subtree: true });
		registry[id] = obs;
	}`
	disconnectScript = `(id) => {
		const registry = window.__sentinelObservers;
		if (registry && registry[id]) {
			registry[id].disconnect();
			delete registry[id];
		}
	}`
	escapeScript = `() => document.dispatchEvent(new KeyboardEvent("keydown", { key: "Escape", bubbles: true }))`
)

// Document adapts a Playwright page to dom.Document. Subtree observation
// is done by a MutationObserver in the page that calls back into Go
// through an exposed binding.
type Document struct {
	page playwright.Page

	mu        sync.Mutex
	nextID    int
	observers map[int]chan struct{}
}

// NewDocument wraps page. It may be called once per page because the
// mutation binding can only be exposed once.
func NewDocument(page playwright.Page) (*Document, error) {
	d := &Document{
		page:      page,
		observers: make(map[int]chan struct{}),
	}

	err := page.ExposeBinding(mutationBinding, func(_ *playwright.BindingSource, args ...interface{}) interface{} {
		if len(args) == 0 {
			return nil
		}
		if id, ok := args[0].(float64); ok {
			d.signal(int(id))
		} else if id, ok := args[0].(int); ok {
			d.signal(id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expose mutation binding: %w", err)
	}
	return d, nil
}

func (d *Document) signal(id int) {
	d.mu.Lock()
	ch, ok := d.observers[id]
	d.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Root implements dom.Document.
func (d *Document) Root() dom.Node {
	return &rootNode{doc: d}
}

// Observe implements dom.Document.
func (d *Document) Observe(root dom.Node) (dom.Observer, error) {
	el, err := d.element(root)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	ch := make(chan struct{}, 1)
	d.observers[id] = ch
	d.mu.Unlock()

	if _, err := el.Evaluate(observeScript, id); err != nil {
		d.forget(id)
		return nil, fmt.Errorf("failed to observe element: %w", err)
	}
	return &observer{doc: d, id: id, ch: ch}, nil
}

// ActiveObservers returns the number of observers not yet disconnected.
func (d *Document) ActiveObservers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// DispatchEscape implements dom.Document.
func (d *Document) DispatchEscape() error {
	if _, err := d.page.Evaluate(escapeScript); err != nil {
		return fmt.Errorf("failed to dispatch escape: %w", err)
	}
	return nil
}

func (d *Document) forget(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, id)
}

func (d *Document) html() (*Node, error) {
	h, err := d.page.QuerySelector("html")
	if err != nil {
		return nil, fmt.Errorf("failed to query document element: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("page has no document element")
	}
	return &Node{doc: d, handle: h}, nil
}

func (d *Document) element(n dom.Node) (playwright.ElementHandle, error) {
	switch v := n.(type) {
	case *Node:
		return v.handle, nil
	case *rootNode:
		h, err := d.html()
		if err != nil {
			return nil, err
		}
		return h.handle, nil
	default:
		return nil, fmt.Errorf("foreign node %T", n)
	}
}

func (d *Document) wrap(h playwright.ElementHandle) dom.Node {
	if h == nil {
		return nil
	}
	return &Node{doc: d, handle: h}
}

type observer struct {
	doc  *Document
	id   int
	ch   chan struct{}
	once sync.Once
}

func (o *observer) Mutations() <-chan struct{} {
	return o.ch
}

func (o *observer) Disconnect() {
	o.once.Do(func() {
		o.doc.forget(o.id)
		// The page may already be gone; the Go side is released either way.
		_, _ = o.doc.page.Evaluate(disconnectScript, o.id)
	})
}
