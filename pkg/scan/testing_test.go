package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/sentinel/pkg/dom/domtest"
	"github.com/entrhq/sentinel/pkg/manifest"
	"github.com/entrhq/sentinel/pkg/modal"
)

var (
	fastTimeouts = Timeouts{
		AlternateSearch: 50 * time.Millisecond,
		DetailsReady:    100 * time.Millisecond,
		DetailsSettle:   time.Millisecond,
		ManifestLabel:   30 * time.Millisecond,
		BetweenEntries:  time.Millisecond,
	}
	fastModalTimeouts = modal.Timeouts{
		Open:     150 * time.Millisecond,
		Fallback: 50 * time.Millisecond,
		Close:    150 * time.Millisecond,
		Settle:   time.Millisecond,
	}
)

func newTestOrchestrator(page *domtest.AddonsPage, f manifest.Fetcher, sink Sink, opts ...Option) *Orchestrator {
	base := []Option{
		WithTimeouts(fastTimeouts),
		WithModalTimeouts(fastModalTimeouts),
		WithPollInterval(5 * time.Millisecond),
		WithRunID(func() string { return "run-1" }),
	}
	return New(page, f, sink, append(base, opts...)...)
}

func manifestURL(name string) string {
	return fmt.Sprintf("https://%s.example.com/manifest.json", name)
}

// fakeFetcher serves manifests from memory.
type fakeFetcher struct {
	mu       sync.Mutex
	versions map[string]string
	failures map[string]error
	calls    []string

	// onFetch runs before the lookup; a non-nil error is returned as is.
	onFetch func(ctx context.Context, url string) error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		versions: make(map[string]string),
		failures: make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*manifest.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, url); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	v, ok := f.versions[url]
	if !ok {
		return nil, fmt.Errorf("%w: HTTP 404", manifest.ErrNetwork)
	}
	return &manifest.Record{
		URL:      url,
		Version:  v,
		ID:       "id:" + url,
		Document: map[string]any{"version": v},
	}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingSink captures everything the orchestrator reports.
type recordingSink struct {
	mu       sync.Mutex
	rendered []Result
	clears   int
	running  []bool
	statuses []string
	phases   map[string][]Phase
}

func newRecordingSink() *recordingSink {
	return &recordingSink{phases: make(map[string][]Phase)}
}

func (s *recordingSink) Render(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = append(s.rendered, r)
}

func (s *recordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.rendered = nil
}

func (s *recordingSink) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = append(s.running, running)
}

func (s *recordingSink) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, msg)
}

func (s *recordingSink) Phase(e Entry, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[e.Name] = append(s.phases[e.Name], p)
}

func (s *recordingSink) Rendered() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.rendered...)
}

func (s *recordingSink) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}
