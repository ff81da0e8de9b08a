// Package locator holds the structural conventions of the host page.
//
// The host UI is third-party and unversioned. Everything the scanner knows
// about its markup (which class names mark the addon list, the detail panel,
// the manifest URL label and the dismiss controls) is expressed here as a
// Strategy so it can be swapped through configuration or mocked in tests.
package locator

import (
	"fmt"
	"strings"

	"github.com/entrhq/sentinel/pkg/dom"
)

// Role names a structural element of the host page.
type Role string

const (
	RoleListContainer    Role = "list_container"
	RoleListItemName     Role = "list_item_name"
	RoleListItemVersion  Role = "list_item_version"
	RoleManifestURLLabel Role = "manifest_url_label"
	RoleCancelButton     Role = "cancel_button"
	RoleCloseButton      Role = "close_button"
	RoleModalsContainer  Role = "modals_container"
	RoleModalContainer   Role = "modal_container"
	RoleDetailsContainer Role = "details_container"
	RoleSectionContainer Role = "section_container"
	RoleSectionHeader    Role = "section_header"
	RoleSectionLabel     Role = "section_label"
)

// Roles lists every role in a stable order.
var Roles = []Role{
	RoleListContainer,
	RoleListItemName,
	RoleListItemVersion,
	RoleManifestURLLabel,
	RoleCancelButton,
	RoleCloseButton,
	RoleModalsContainer,
	RoleModalContainer,
	RoleDetailsContainer,
	RoleSectionContainer,
	RoleSectionHeader,
	RoleSectionLabel,
}

// Strategy resolves roles to selectors and recognises panel roots.
type Strategy interface {
	Selector(role Role) string

	// IsPanelRoot reports whether n is the outermost element of a detail
	// panel.
	IsPanelRoot(n dom.Node) (bool, error)
}

// ClassSubstring matches host elements by class-name substrings, which
// survive the hashed suffixes the host's CSS modules append.
type ClassSubstring struct {
	selectors map[Role]string
}

// Stremio returns the conventions of the Stremio Web addons page.
func Stremio() *ClassSubstring {
	return &ClassSubstring{selectors: map[Role]string{
		RoleListContainer:    `[class*="addons-list-container"]`,
		RoleListItemName:     `[class*="name-container"]`,
		RoleListItemVersion:  `[class*="version-container"]`,
		RoleManifestURLLabel: `[class*="transport-url-label"]`,
		RoleCancelButton:     `[class*="cancel-button"]`,
		RoleCloseButton:      `[class*="close-button-container"]`,
		RoleModalsContainer:  `.modals-container`,
		RoleModalContainer:   `.modal-container`,
		RoleDetailsContainer: `[class*="addon-details-container"]`,
		RoleSectionContainer: `[class*="section-container"]`,
		RoleSectionHeader:    `[class*="section-header"]`,
		RoleSectionLabel:     `[class*="section-label"]`,
	}}
}

// WithOverrides returns a copy with the given selectors replaced. Blank
// overrides are ignored.
func (c *ClassSubstring) WithOverrides(overrides map[Role]string) (*ClassSubstring, error) {
	out := &ClassSubstring{selectors: make(map[Role]string, len(c.selectors))}
	for role, sel := range c.selectors {
		out.selectors[role] = sel
	}
	for role, sel := range overrides {
		if _, known := c.selectors[role]; !known {
			return nil, fmt.Errorf("unknown locator role %q", role)
		}
		if strings.TrimSpace(sel) == "" {
			continue
		}
		out.selectors[role] = sel
	}
	return out, nil
}

// Selector implements Strategy.
func (c *ClassSubstring) Selector(role Role) string {
	return c.selectors[role]
}

// IsPanelRoot implements Strategy. A panel root either carries a class
// mentioning "modal" or is a direct child of the modals container.
func (c *ClassSubstring) IsPanelRoot(n dom.Node) (bool, error) {
	classes, err := n.ClassList()
	if err != nil {
		return false, err
	}
	for _, class := range classes {
		if strings.Contains(strings.ToLower(class), "modal") {
			return true, nil
		}
	}

	parent, err := n.Parent()
	if err != nil || parent == nil {
		return false, err
	}
	defer dom.Release(parent)
	return parent.Matches(c.Selector(RoleModalsContainer))
}
