package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/entrhq/sentinel/pkg/scan"
)

const (
	colorReset     = "\033[0m"
	colorGreen     = "\033[32m"
	colorYellow    = "\033[33m"
	colorGray      = "\033[90m"
	colorSalmon    = "\033[38;5;217m"
	colorBoldGreen = "\033[1;32m"
)

// Console streams results to a terminal, one line per addon.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	color   bool
	count   int
	verbose bool
}

// NewConsole creates a Console writing to w. Colour is disabled when color
// is false, for logs and pipes.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

// SetVerbose toggles printing manifest URLs and errors under each result.
func (c *Console) SetVerbose(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbose = v
}

// Render implements scan.Sink.
func (c *Console) Render(r scan.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	switch {
	case r.NeedsUpdate:
		c.printf(colorYellow, "  ⬆ %s: %s → %s\n", r.Name, orDash(r.CurrentVersion), r.ManifestVersion)
	case r.CurrentVersion == "" || r.ManifestVersion == "":
		c.printf(colorGray, "  ? %s: %s (published version unknown)\n", r.Name, orDash(r.CurrentVersion))
	default:
		c.printf(colorGreen, "  ✓ %s: %s\n", r.Name, r.CurrentVersion)
	}

	if c.verbose {
		if r.ManifestURL != "" {
			c.printf(colorGray, "      %s\n", r.ManifestURL)
		}
		if r.Error != "" {
			c.printf(colorGray, "      %s\n", r.Error)
		}
	}
}

// Clear implements scan.Sink.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
}

// SetRunning implements scan.Sink.
func (c *Console) SetRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !running && c.count > 0 {
		c.printf(colorBoldGreen, "  %d addon(s) checked\n", c.count)
	}
}

// Status implements scan.StatusSink.
func (c *Console) Status(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf(colorSalmon, "%s\n", msg)
}

func (c *Console) printf(color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if c.color {
		msg = color + msg[:len(msg)-1] + colorReset + "\n"
	}
	fmt.Fprint(c.w, msg)
}
