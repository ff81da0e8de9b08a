package scan

import (
	"regexp"
	"strings"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/locator"
)

var (
	urlHeaderPattern    = regexp.MustCompile(`(?i)url\s*:`)
	sectionSpanPattern  = regexp.MustCompile(`(?i)https?://.*\.(json|manifest)`)
	anywhereSpanPattern = regexp.MustCompile(`(?i)https?://.*\.json`)
)

// ManifestURL reads the manifest URL from a detail panel without waiting.
// Sources are tried in order:
//
//  1. the dedicated manifest URL label
//  2. a section row headed "URL:", using its label or value
//  3. the first span of a section whose text looks like a JSON or
//     .manifest URL
//  4. any span in the panel whose text looks like a JSON URL
//
// It returns "" when nothing matches or panel is nil.
func ManifestURL(panel dom.Node, strategy locator.Strategy) string {
	if panel == nil {
		return ""
	}

	if url := textOf(panel, strategy.Selector(locator.RoleManifestURLLabel)); url != "" {
		return url
	}

	rows, _ := panel.QuerySelectorAll(strategy.Selector(locator.RoleSectionContainer))
	defer dom.Release(rows...)
	for _, row := range rows {
		header := textOf(row, strategy.Selector(locator.RoleSectionHeader))
		if urlHeaderPattern.MatchString(header) {
			if url := textOf(row, strategy.Selector(locator.RoleManifestURLLabel)); url != "" {
				return url
			}
			if url := textOf(row, strategy.Selector(locator.RoleSectionLabel)); url != "" {
				return url
			}
		}
		if span := textOf(row, "span"); sectionSpanPattern.MatchString(span) {
			return span
		}
	}

	spans, _ := panel.QuerySelectorAll("span")
	defer dom.Release(spans...)
	for _, s := range spans {
		text, err := s.TextContent()
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); anywhereSpanPattern.MatchString(text) {
			return text
		}
	}
	return ""
}
