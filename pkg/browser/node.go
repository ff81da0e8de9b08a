package browser

import (
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/sentinel/pkg/dom"
)

// Node is an element handle in a live page.
type Node struct {
	doc     *Document
	handle  playwright.ElementHandle
	release sync.Once
}

// Release implements dom.Releaser by disposing the element handle.
func (n *Node) Release() {
	n.release.Do(func() {
		_ = n.handle.Dispose()
	})
}

// QuerySelector implements dom.Node.
func (n *Node) QuerySelector(selector string) (dom.Node, error) {
	h, err := n.handle.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	return n.doc.wrap(h), nil
}

// QuerySelectorAll implements dom.Node.
func (n *Node) QuerySelectorAll(selector string) ([]dom.Node, error) {
	handles, err := n.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Node, 0, len(handles))
	for _, h := range handles {
		out = append(out, &Node{doc: n.doc, handle: h})
	}
	return out, nil
}

// Children implements dom.Node.
func (n *Node) Children() ([]dom.Node, error) {
	return n.QuerySelectorAll(":scope > *")
}

// Parent implements dom.Node.
func (n *Node) Parent() (dom.Node, error) {
	js, err := n.handle.EvaluateHandle("el => el.parentElement")
	if err != nil {
		return nil, err
	}
	el := js.AsElement()
	if el == nil {
		_ = js.Dispose()
		return nil, nil
	}
	return &Node{doc: n.doc, handle: el}, nil
}

// TextContent implements dom.Node.
func (n *Node) TextContent() (string, error) {
	return n.handle.TextContent()
}

// ClassList implements dom.Node.
func (n *Node) ClassList() ([]string, error) {
	v, err := n.handle.Evaluate("el => Array.from(el.classList)")
	if err != nil {
		return nil, err
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	classes := make([]string, 0, len(raw))
	for _, c := range raw {
		if s, ok := c.(string); ok {
			classes = append(classes, s)
		}
	}
	return classes, nil
}

// Matches implements dom.Node.
func (n *Node) Matches(selector string) (bool, error) {
	v, err := n.handle.Evaluate("(el, sel) => el.matches(sel)", selector)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// Connected implements dom.Node.
func (n *Node) Connected() (bool, error) {
	v, err := n.handle.Evaluate("el => el.isConnected")
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// Click implements dom.Node. It falls back to a DOM click when Playwright's
// actionability checks fail, since list rows may be covered by an overlay.
func (n *Node) Click() error {
	timeout := float64(2000)
	if err := n.handle.Click(playwright.ElementHandleClickOptions{Timeout: &timeout}); err != nil {
		if _, jsErr := n.handle.Evaluate("el => el.click()"); jsErr != nil {
			return fmt.Errorf("click failed: %w", err)
		}
	}
	return nil
}

// InnerHTML implements dom.Node.
func (n *Node) InnerHTML() (string, error) {
	return n.handle.InnerHTML()
}

// ScrollIntoView implements dom.Scroller.
func (n *Node) ScrollIntoView() error {
	_, err := n.handle.Evaluate(`el => el.scrollIntoView({ behavior: "instant", block: "center" })`)
	return err
}

// rootNode is the document element, resolved afresh on every call so it
// survives reloads.
type rootNode struct {
	doc *Document
}

func (r *rootNode) QuerySelector(selector string) (dom.Node, error) {
	h, err := r.doc.page.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	return r.doc.wrap(h), nil
}

func (r *rootNode) QuerySelectorAll(selector string) ([]dom.Node, error) {
	handles, err := r.doc.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Node, 0, len(handles))
	for _, h := range handles {
		out = append(out, &Node{doc: r.doc, handle: h})
	}
	return out, nil
}

func (r *rootNode) Children() ([]dom.Node, error) {
	return r.QuerySelectorAll("html > *")
}

func (r *rootNode) Parent() (dom.Node, error) {
	return nil, nil
}

func (r *rootNode) TextContent() (string, error) {
	n, err := r.doc.html()
	if err != nil {
		return "", err
	}
	defer n.Release()
	return n.TextContent()
}

func (r *rootNode) ClassList() ([]string, error) {
	n, err := r.doc.html()
	if err != nil {
		return nil, err
	}
	defer n.Release()
	return n.ClassList()
}

func (r *rootNode) Matches(selector string) (bool, error) {
	n, err := r.doc.html()
	if err != nil {
		return false, err
	}
	defer n.Release()
	return n.Matches(selector)
}

func (r *rootNode) Connected() (bool, error) {
	return true, nil
}

func (r *rootNode) Click() error {
	n, err := r.doc.html()
	if err != nil {
		return err
	}
	defer n.Release()
	return n.Click()
}

func (r *rootNode) InnerHTML() (string, error) {
	n, err := r.doc.html()
	if err != nil {
		return "", err
	}
	defer n.Release()
	return n.InnerHTML()
}
