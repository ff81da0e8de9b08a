// Package dom describes the slice of a host web page that the scanner needs.
//
// The scanner never talks to a browser directly. It works against Node and
// Document, which are implemented by the Playwright backend in pkg/browser
// and by the in-memory fixture document in pkg/dom/domtest. Selectors are
// CSS selectors; every structural assumption about the host page lives in
// pkg/locator rather than here.
package dom

// Node is an element in the host document.
//
// Lookups that find nothing return a nil Node and a nil error. Errors are
// reserved for failures of the backend itself, such as a detached element
// or a closed page.
type Node interface {
	// QuerySelector returns the first descendant matching selector.
	QuerySelector(selector string) (Node, error)

	// QuerySelectorAll returns all descendants matching selector in
	// document order.
	QuerySelectorAll(selector string) ([]Node, error)

	// Children returns the element children of the node.
	Children() ([]Node, error)

	// Parent returns the parent element, or nil at the top of the tree.
	Parent() (Node, error)

	// TextContent returns the concatenated text of the node and its
	// descendants.
	TextContent() (string, error)

	// ClassList returns the node's class names.
	ClassList() ([]string, error)

	// Matches reports whether the node itself matches selector.
	Matches(selector string) (bool, error)

	// Connected reports whether the node is still attached to the document.
	Connected() (bool, error)

	// Click dispatches a click on the node.
	Click() error

	// InnerHTML returns the serialized markup of the node's children.
	InnerHTML() (string, error)
}

// Observer delivers a signal whenever the observed subtree changes.
// Signals are coalesced: a burst of insertions may produce a single value.
type Observer interface {
	Mutations() <-chan struct{}

	// Disconnect releases the observation. It is safe to call more than once.
	Disconnect()
}

// Document is the live host page.
type Document interface {
	// Root returns the document element.
	Root() Node

	// Observe starts watching child-list changes anywhere under root.
	Observe(root Node) (Observer, error)

	// DispatchEscape sends a synthetic Escape keydown to the document.
	DispatchEscape() error
}

// Releaser is implemented by nodes that pin resources in the backend, such
// as a remote element handle. A released node must not be used again.
type Releaser interface {
	Release()
}

// Release releases each node that implements Releaser. Nil nodes are
// skipped.
func Release(nodes ...Node) {
	for _, n := range nodes {
		if r, ok := n.(Releaser); ok {
			r.Release()
		}
	}
}

// Scroller is implemented by nodes that can be scrolled into view.
type Scroller interface {
	ScrollIntoView() error
}
