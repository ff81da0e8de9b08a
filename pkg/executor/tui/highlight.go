package tui

import (
	"encoding/json"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

const (
	highlightFormatter = "terminal256"
	highlightStyle     = "dracula"
)

// manifestJSON renders a decoded manifest as indented JSON. Colour is
// applied with chroma when color is true; on any highlighting error the
// plain text is returned.
func manifestJSON(doc any, color bool) string {
	if doc == nil {
		return ""
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ""
	}
	if !color {
		return string(raw)
	}

	var b strings.Builder
	if err := quick.Highlight(&b, string(raw), "json", highlightFormatter, highlightStyle); err != nil {
		return string(raw)
	}
	return b.String()
}
