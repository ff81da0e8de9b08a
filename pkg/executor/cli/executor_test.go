package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/sentinel/pkg/dom/domtest"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/modal"
	"github.com/entrhq/sentinel/pkg/scan"
)

// syncBuffer is a bytes.Buffer safe for the scan goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fixture(t *testing.T) (*domtest.AddonsPage, manifest.Fetcher) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alpha.json":
			fmt.Fprint(w, `{"id":"org.alpha","version":"1.1.0"}`)
		case "/beta.json":
			fmt.Fprint(w, `{"id":"org.beta","version":"2.0.0"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Alpha", Version: "1.0.0", ManifestURL: srv.URL + "/alpha.json"},
		{Name: "Beta", Version: "2.0.0", ManifestURL: srv.URL + "/beta.json"},
	})
	return page, manifest.NewHTTPFetcher(time.Second)
}

func fastOptions() []scan.Option {
	return []scan.Option{
		scan.WithPollInterval(5 * time.Millisecond),
		scan.WithTimeouts(scan.Timeouts{
			AlternateSearch: 50 * time.Millisecond,
			DetailsReady:    100 * time.Millisecond,
			DetailsSettle:   time.Millisecond,
			ManifestLabel:   30 * time.Millisecond,
			BetweenEntries:  time.Millisecond,
		}),
		scan.WithModalTimeouts(modal.Timeouts{
			Open:     150 * time.Millisecond,
			Fallback: 50 * time.Millisecond,
			Close:    150 * time.Millisecond,
			Settle:   time.Millisecond,
		}),
	}
}

func TestExecutor_Once(t *testing.T) {
	page, fetcher := fixture(t)
	out := &syncBuffer{}

	e := NewExecutor(page, fetcher,
		WithWriter(out),
		WithColor(false),
		WithOnce(true),
		WithScanOptions(fastOptions()...),
	)
	require.NoError(t, e.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, scan.StatusScanning)
	assert.Contains(t, text, "⬆ Alpha: 1.0.0 → 1.1.0")
	assert.Contains(t, text, "✓ Beta: 2.0.0")
	assert.Contains(t, text, "update available")
	assert.Contains(t, text, "2 checked, 1 outdated, 1 up to date, 0 unknown")
	assert.Zero(t, page.OpenPanels())
}

func TestExecutor_OnceListMissing(t *testing.T) {
	doc := domtest.MustParse(`<html><body><p>Sign in</p></body></html>`)
	out := &syncBuffer{}

	e := NewExecutor(doc, manifest.NewHTTPFetcher(time.Second), WithWriter(out), WithColor(false), WithOnce(true))
	err := e.Run(context.Background())
	assert.ErrorIs(t, err, scan.ErrListNotFound)
	assert.Contains(t, out.String(), scan.StatusListNotFound)
}

func TestExecutor_Commands(t *testing.T) {
	page, fetcher := fixture(t)
	out := &syncBuffer{}

	e := NewExecutor(page, fetcher,
		WithReader(strings.NewReader("help\nbogus\nresults\nscan\n")),
		WithWriter(out),
		WithColor(false),
		WithScanOptions(fastOptions()...),
	)
	require.NoError(t, e.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Commands:")
	assert.Contains(t, text, `Unknown command "bogus`)
	assert.Contains(t, text, "No results.")
	assert.Contains(t, text, "2 checked, 1 outdated, 1 up to date, 0 unknown")
	assert.Len(t, e.Orchestrator().Results(), 2)
	assert.Equal(t, scan.StateCompleted, e.Orchestrator().State())
}

func TestExecutor_ClearAndExit(t *testing.T) {
	page, fetcher := fixture(t)
	out := &syncBuffer{}

	e := NewExecutor(page, fetcher,
		WithReader(strings.NewReader("clear\nexit\nscan\n")),
		WithWriter(out),
		WithColor(false),
		WithScanOptions(fastOptions()...),
	)
	require.NoError(t, e.Run(context.Background()))

	// Nothing after exit is read.
	assert.Zero(t, page.Clicks("Alpha"))
	assert.Equal(t, scan.StateIdle, e.Orchestrator().State())
}

func TestExecutor_ContextCancelled(t *testing.T) {
	page, fetcher := fixture(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	e := NewExecutor(page, fetcher, WithReader(pr), WithWriter(&syncBuffer{}), WithColor(false))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
