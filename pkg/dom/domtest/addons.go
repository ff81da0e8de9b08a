package domtest

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
)

// URLStyle selects where an addon's detail panel shows its manifest URL.
type URLStyle int

const (
	// URLLabel renders the dedicated transport URL label.
	URLLabel URLStyle = iota
	// URLSectionRow renders a "URL:" section row with a plain value label.
	URLSectionRow
	// URLSectionSpan renders the URL as a bare span inside a section.
	URLSectionSpan
	// URLLooseSpan renders the URL as a span outside any section.
	URLLooseSpan
	// URLNone renders no URL at all.
	URLNone
)

// PanelStyle selects how an addon's detail panel appears after a click.
type PanelStyle int

const (
	// PanelModal appends a modal container to the modals container.
	PanelModal PanelStyle = iota
	// PanelDetached renders the details outside the modals container.
	PanelDetached
	// PanelNever renders nothing.
	PanelNever
)

// Addon describes one row of the fixture addons page.
type Addon struct {
	Name        string
	Version     string
	ManifestURL string
	URLStyle    URLStyle
	PanelStyle  PanelStyle

	// OpenDelay postpones the panel after a click.
	OpenDelay time.Duration

	// NoCancel omits the cancel button and NoClose the close button, so
	// dismissal falls through to the next strategy.
	NoCancel bool
	NoClose  bool
}

// AddonsPage is a fixture modelled on the Stremio Web addons route.
type AddonsPage struct {
	*Document

	mu     sync.Mutex
	clicks map[string]int
	opened int
}

// NewAddonsPage renders a page listing addons and scripts their detail
// panels.
func NewAddonsPage(addons []Addon) *AddonsPage {
	var b strings.Builder
	b.WriteString(`<html><head><title>Stremio</title></head><body>`)
	b.WriteString(`<div class="addons-list-container-Ue3Gt">`)
	for _, a := range addons {
		b.WriteString(rowMarkup(a))
	}
	b.WriteString(`</div><div class="modals-container"></div></body></html>`)

	p := &AddonsPage{
		Document: MustParse(b.String()),
		clicks:   make(map[string]int),
	}

	items := p.FindAll(`[class*="addons-list-container"] > div`)
	for i, item := range items {
		a := addons[i]
		p.OnClick(item, func() { p.open(a) })
	}
	p.OnEscape(p.closeLatest)
	return p
}

// AppendAddon adds a row to the end of the list, wired like the initial
// rows.
func (p *AddonsPage) AppendAddon(a Addon) {
	row := p.MustAppend(p.Find(`[class*="addons-list-container"]`), rowMarkup(a))
	p.OnClick(row, func() { p.open(a) })
}

func rowMarkup(a Addon) string {
	var b strings.Builder
	b.WriteString(`<div class="addon-container-Kt7Ps">`)
	if a.Name != "" {
		fmt.Fprintf(&b, `<div class="name-container-qIAg8">%s</div>`, html.EscapeString(a.Name))
	}
	if a.Version != "" {
		fmt.Fprintf(&b, `<div class="version-container-tjJCN">%s</div>`, html.EscapeString(a.Version))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// Clicks returns how many times the named addon was clicked.
func (p *AddonsPage) Clicks(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[name]
}

// Opened returns how many panels have been rendered.
func (p *AddonsPage) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// OpenPanels returns the number of modal containers currently attached.
func (p *AddonsPage) OpenPanels() int {
	return len(p.FindAll(".modals-container > .modal-container")) + len(p.FindAll("body > .detached-details"))
}

func (p *AddonsPage) open(a Addon) {
	p.mu.Lock()
	p.clicks[a.Name]++
	p.mu.Unlock()

	render := func() {
		if a.PanelStyle == PanelNever {
			return
		}
		p.mu.Lock()
		p.opened++
		p.mu.Unlock()

		var panel *Node
		switch a.PanelStyle {
		case PanelDetached:
			panel = p.MustAppend(p.Find("body"), `<div class="detached-details">`+detailsMarkup(a)+`</div>`)
		default:
			panel = p.MustAppend(p.Find(".modals-container"), `<div class="modal-container">`+detailsMarkup(a)+`</div>`)
		}

		for _, sel := range []string{`[class*="cancel-button"]`, `[class*="close-button-container"]`} {
			if btn, _ := panel.QuerySelector(sel); btn != nil {
				b := btn.(*Node)
				p.OnClick(b, func() { p.Remove(panel) })
				b.Release()
			}
		}
	}

	if a.OpenDelay > 0 {
		time.AfterFunc(a.OpenDelay, render)
		return
	}
	render()
}

func (p *AddonsPage) closeLatest() {
	panels := p.FindAll(".modals-container > .modal-container")
	if len(panels) == 0 {
		panels = p.FindAll("body > .detached-details")
	}
	if len(panels) > 0 {
		p.Remove(panels[len(panels)-1])
	}
}

func detailsMarkup(a Addon) string {
	url := html.EscapeString(a.ManifestURL)

	var b strings.Builder
	b.WriteString(`<div class="addon-details-container-MJYAo">`)
	fmt.Fprintf(&b, `<div class="title-container-3xYtE"><span class="name-ZI5cP">%s</span></div>`, html.EscapeString(a.Name))

	switch a.URLStyle {
	case URLLabel:
		fmt.Fprintf(&b, `<div class="section-container-wMuuL"><span class="section-header-Lf6BP">URL:</span><span class="transport-url-label-VjfZH">%s</span></div>`, url)
	case URLSectionRow:
		fmt.Fprintf(&b, `<div class="section-container-wMuuL"><span class="section-header-Lf6BP">URL:</span><div class="section-label-x3Kq1">%s</div></div>`, url)
	case URLSectionSpan:
		fmt.Fprintf(&b, `<div class="section-container-wMuuL"><span>%s</span></div>`, url)
	case URLLooseSpan:
		fmt.Fprintf(&b, `<div class="footer"><p><span>%s</span></p></div>`, url)
	}

	b.WriteString(`<div class="buttons-container-g0xXr">`)
	if !a.NoCancel {
		b.WriteString(`<div class="cancel-button-eLk1O">Cancel</div>`)
	}
	b.WriteString(`</div>`)
	if !a.NoClose {
		b.WriteString(`<div class="close-button-container-oA1Vn">X</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
