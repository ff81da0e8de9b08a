package scan

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/locator"
)

// Filter selects entries by name with shell-style globs. Matching is
// case-insensitive. An empty include list admits everything not excluded.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles include and exclude patterns.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.include, err = compileGlobs(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compileGlobs(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Allows reports whether name passes the filter. A nil Filter allows
// everything.
func (f *Filter) Allows(name string) bool {
	if f == nil {
		return true
	}
	name = strings.ToLower(name)
	for _, g := range f.exclude {
		if g.Match(name) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Snapshot reads the addon list once. Later changes to the list are not
// reflected in the returned entries. Entries without a name are called
// "Addon #N" after their position in the list.
func Snapshot(doc dom.Document, strategy locator.Strategy, filter *Filter) ([]Entry, error) {
	list, err := doc.Root().QuerySelector(strategy.Selector(locator.RoleListContainer))
	if err != nil {
		return nil, fmt.Errorf("failed to query addons list: %w", err)
	}
	if list == nil {
		return nil, ErrListNotFound
	}

	children, err := list.Children()
	if err != nil {
		return nil, fmt.Errorf("failed to read addons list: %w", err)
	}

	entries := make([]Entry, 0, len(children))
	for i, child := range children {
		name := textOf(child, strategy.Selector(locator.RoleListItemName))
		if name == "" {
			name = fmt.Sprintf("Addon #%d", i+1)
		}
		if !filter.Allows(name) {
			continue
		}
		entries = append(entries, Entry{
			Node:    child,
			Index:   i,
			Name:    name,
			Version: textOf(child, strategy.Selector(locator.RoleListItemVersion)),
		})
	}
	return entries, nil
}

// textOf returns the trimmed text of the first match of selector under n.
func textOf(n dom.Node, selector string) string {
	if n == nil || selector == "" {
		return ""
	}
	found, err := n.QuerySelector(selector)
	if err != nil || found == nil {
		return ""
	}
	defer dom.Release(found)
	text, err := found.TextContent()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
