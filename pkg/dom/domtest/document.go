// Package domtest provides an in-memory dom.Document for tests and fixtures.
//
// Markup is parsed with golang.org/x/net/html and selectors are evaluated by
// cascadia, so fixtures can mirror the real host page closely. Mutations made
// through Append, Remove and SetText notify observers the same way a browser
// MutationObserver would, and click and escape behaviour is scripted with
// OnClick and OnEscape.
package domtest

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/entrhq/sentinel/pkg/dom"
)

// Document is a mutable in-memory page.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	selectors map[string]cascadia.Selector
	observers map[int]*observer
	nextID    int
	clicks    map[*html.Node]func()
	onEscape  func()
	escapes   int
	live      atomic.Int64
}

// Parse builds a document from a full or partial HTML page.
func Parse(markup string) (*Document, error) {
	tree, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	var root *html.Node
	for c := tree.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "html" {
			root = c
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("markup has no html element")
	}

	return &Document{
		root:      root,
		selectors: make(map[string]cascadia.Selector),
		observers: make(map[int]*observer),
		clicks:    make(map[*html.Node]func()),
	}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(markup string) *Document {
	d, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return d
}

// Root returns the html element. It is not counted by LiveNodes.
func (d *Document) Root() dom.Node {
	return &Node{doc: d, n: d.root}
}

// LiveNodes returns how many nodes queries have handed out that have not
// been released yet.
func (d *Document) LiveNodes() int {
	return int(d.live.Load())
}

// Find returns the first element matching selector anywhere in the page,
// or nil. Nodes returned by Find, FindAll and Append are not counted by
// LiveNodes.
func (d *Document) Find(selector string) *Node {
	n, err := d.Root().QuerySelector(selector)
	if err != nil || n == nil {
		return nil
	}
	node := n.(*Node)
	node.Release()
	return node
}

// FindAll returns every element matching selector.
func (d *Document) FindAll(selector string) []*Node {
	nodes, err := d.Root().QuerySelectorAll(selector)
	if err != nil {
		return nil
	}
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		node := n.(*Node)
		node.Release()
		out = append(out, node)
	}
	return out
}

// Observe implements dom.Document.
func (d *Document) Observe(root dom.Node) (dom.Observer, error) {
	n, ok := root.(*Node)
	if !ok {
		return nil, fmt.Errorf("foreign node %T", root)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	o := &observer{
		doc:  d,
		id:   d.nextID,
		root: n.n,
		ch:   make(chan struct{}, 1),
	}
	d.observers[o.id] = o
	return o, nil
}

// ActiveObservers returns the number of observers not yet disconnected.
func (d *Document) ActiveObservers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// DispatchEscape implements dom.Document.
func (d *Document) DispatchEscape() error {
	d.mu.Lock()
	d.escapes++
	fn := d.onEscape
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Escapes returns how many Escape signals were dispatched.
func (d *Document) Escapes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.escapes
}

// OnEscape sets the handler run for every DispatchEscape.
func (d *Document) OnEscape(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEscape = fn
}

// OnClick sets the handler run when n is clicked.
func (d *Document) OnClick(n *Node, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks[n.n] = fn
}

// Append parses markup as a fragment and appends it to parent. It returns
// the first appended element.
func (d *Document) Append(parent *Node, markup string) (*Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type: html.ElementNode,
		Data: "div",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	d.mu.Lock()
	var first *html.Node
	for _, n := range nodes {
		parent.n.AppendChild(n)
		if first == nil && n.Type == html.ElementNode {
			first = n
		}
	}
	d.notifyLocked(parent.n)
	d.mu.Unlock()

	if first == nil {
		return nil, nil
	}
	return &Node{doc: d, n: first}, nil
}

// MustAppend is like Append but panics on error.
func (d *Document) MustAppend(parent *Node, markup string) *Node {
	n, err := d.Append(parent, markup)
	if err != nil {
		panic(err)
	}
	return n
}

// Remove detaches n from the page.
func (d *Document) Remove(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent := n.n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n.n)
	d.notifyLocked(parent)
}

// SetText replaces the children of n with a single text node.
func (d *Document) SetText(n *Node, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for c := n.n.FirstChild; c != nil; {
		next := c.NextSibling
		n.n.RemoveChild(c)
		c = next
	}
	n.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	d.notifyLocked(n.n)
}

func (d *Document) wrap(n *html.Node) *Node {
	d.live.Add(1)
	return &Node{doc: d, n: n, tracked: true}
}

func (d *Document) compileLocked(selector string) (cascadia.Selector, error) {
	if sel, ok := d.selectors[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.selectors[selector] = sel
	return sel, nil
}

// notifyLocked signals every observer whose root contains changed.
func (d *Document) notifyLocked(changed *html.Node) {
	for _, o := range d.observers {
		if !within(changed, o.root) {
			continue
		}
		select {
		case o.ch <- struct{}{}:
		default:
		}
	}
}

func within(n, root *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

type observer struct {
	doc  *Document
	id   int
	root *html.Node
	ch   chan struct{}
	once sync.Once
}

func (o *observer) Mutations() <-chan struct{} {
	return o.ch
}

func (o *observer) Disconnect() {
	o.once.Do(func() {
		o.doc.mu.Lock()
		defer o.doc.mu.Unlock()
		delete(o.doc.observers, o.id)
	})
}

// Node is an element of a Document.
type Node struct {
	doc      *Document
	n        *html.Node
	tracked  bool
	released atomic.Bool
}

// Release implements dom.Releaser. Releasing twice is a no-op.
func (n *Node) Release() {
	if n.tracked && n.released.CompareAndSwap(false, true) {
		n.doc.live.Add(-1)
	}
}

// QuerySelector implements dom.Node.
func (n *Node) QuerySelector(selector string) (dom.Node, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	sel, err := n.doc.compileLocked(selector)
	if err != nil {
		return nil, err
	}
	// cascadia includes the node itself; the DOM only searches descendants.
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if found := sel.MatchFirst(c); found != nil {
			return n.doc.wrap(found), nil
		}
	}
	return nil, nil
}

// QuerySelectorAll implements dom.Node.
func (n *Node) QuerySelectorAll(selector string) ([]dom.Node, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	sel, err := n.doc.compileLocked(selector)
	if err != nil {
		return nil, err
	}
	var out []dom.Node
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		for _, found := range sel.MatchAll(c) {
			out = append(out, n.doc.wrap(found))
		}
	}
	return out, nil
}

// Children implements dom.Node.
func (n *Node) Children() ([]dom.Node, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	var out []dom.Node
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, n.doc.wrap(c))
		}
	}
	return out, nil
}

// Parent implements dom.Node.
func (n *Node) Parent() (dom.Node, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	p := n.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return n.doc.wrap(p), nil
}

// TextContent implements dom.Node.
func (n *Node) TextContent() (string, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	var b strings.Builder
	collectText(n.n, &b)
	return b.String(), nil
}

// ClassList implements dom.Node.
func (n *Node) ClassList() ([]string, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	for _, a := range n.n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val), nil
		}
	}
	return nil, nil
}

// Matches implements dom.Node.
func (n *Node) Matches(selector string) (bool, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	sel, err := n.doc.compileLocked(selector)
	if err != nil {
		return false, err
	}
	return sel.Match(n.n), nil
}

// Connected implements dom.Node.
func (n *Node) Connected() (bool, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	return within(n.n, n.doc.root), nil
}

// Click implements dom.Node. The handler runs without the document lock
// held so it may mutate the page.
func (n *Node) Click() error {
	n.doc.mu.Lock()
	fn := n.doc.clicks[n.n]
	n.doc.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// InnerHTML implements dom.Node.
func (n *Node) InnerHTML() (string, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	var buf bytes.Buffer
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("failed to render node: %w", err)
		}
	}
	return buf.String(), nil
}

// Same reports whether n and other wrap the same element.
func (n *Node) Same(other dom.Node) bool {
	o, ok := other.(*Node)
	return ok && o.n == n.n
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
