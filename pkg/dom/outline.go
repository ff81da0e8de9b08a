package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Outline renders panel markup as an indented element outline for debug logs.
// Only tag names, class attributes and trimmed text survive; scripts, styles
// and SVG are dropped. The result is cut at max bytes.
func Outline(markup string, max int) string {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type: html.ElementNode,
		Data: "div",
	})
	if err != nil {
		return ""
	}

	o := &outliner{max: max}
	for _, n := range nodes {
		if o.walk(n, 0) {
			break
		}
	}
	return strings.TrimRight(o.b.String(), "\n")
}

type outliner struct {
	b   strings.Builder
	max int
}

// walk returns true once the outline is full.
func (o *outliner) walk(n *html.Node, depth int) bool {
	switch n.Type {
	case html.CommentNode:
		return false
	case html.TextNode:
		text := strings.Join(strings.Fields(n.Data), " ")
		if text == "" {
			return false
		}
		return o.line(depth, `"`+text+`"`)
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skippedTags[tag] {
			return false
		}
		label := tag
		if class := attr(n, "class"); class != "" {
			label += "." + strings.Join(strings.Fields(class), ".")
		}
		if o.line(depth, label) {
			return true
		}
		depth++
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if o.walk(c, depth) {
			return true
		}
	}
	return false
}

func (o *outliner) line(depth int, s string) bool {
	entry := strings.Repeat("  ", depth) + s + "\n"
	if o.max > 0 && o.b.Len()+len(entry) > o.max {
		remaining := o.max - o.b.Len()
		if remaining > 0 {
			o.b.WriteString(entry[:remaining])
		}
		o.b.WriteString("...")
		return true
	}
	o.b.WriteString(entry)
	return false
}

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"img":      true,
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
