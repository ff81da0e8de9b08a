package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/sentinel/pkg/dom/domtest"
	"github.com/entrhq/sentinel/pkg/manifest"
)

func TestScanThreeEntriesWithFailedFetch(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Cinemeta", Version: "1.0.0", ManifestURL: manifestURL("cinemeta")},
		{Name: "Torrentio", Version: "0.0.14", ManifestURL: manifestURL("torrentio")},
		{Name: "OpenSubtitles", Version: "v3.1", ManifestURL: manifestURL("opensubtitles")},
	})
	f := newFakeFetcher()
	f.versions[manifestURL("cinemeta")] = "1.2.0"
	f.failures[manifestURL("torrentio")] = errors.New("HTTP 500")
	f.versions[manifestURL("opensubtitles")] = "3.1.0"

	sink := newRecordingSink()
	o := newTestOrchestrator(page, f, sink)

	summary, err := o.Scan(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, StateCompleted, o.State())
	assert.Equal(t, "run-1", summary.RunID)
	require.Len(t, summary.Results, 3)

	first, second, third := summary.Results[0], summary.Results[1], summary.Results[2]

	assert.Equal(t, "Cinemeta", first.Name)
	assert.Equal(t, "1.0.0", first.CurrentVersion)
	assert.Equal(t, "1.2.0", first.ManifestVersion)
	assert.True(t, first.NeedsUpdate)
	assert.Equal(t, manifestURL("cinemeta"), first.ManifestURL)
	assert.Equal(t, "id:"+manifestURL("cinemeta"), first.ManifestID)
	assert.NotNil(t, first.Manifest)

	assert.Equal(t, "Torrentio", second.Name)
	assert.Equal(t, "", second.ManifestVersion)
	assert.False(t, second.NeedsUpdate)
	assert.Equal(t, manifestURL("torrentio"), second.ManifestURL)
	assert.Equal(t, "HTTP 500", second.Error)

	assert.Equal(t, "OpenSubtitles", third.Name)
	assert.Equal(t, "3.1.0", third.ManifestVersion)
	assert.False(t, third.NeedsUpdate)

	assert.Equal(t, summary.Results, sink.Rendered())
	assert.Equal(t, []bool{true, false}, sink.running)
	assert.Equal(t, 1, sink.clears)
	assert.Contains(t, sink.Statuses(), "Processing: Torrentio")
	assert.Equal(t, StatusComplete, sink.Statuses()[len(sink.Statuses())-1])
	assert.Equal(t,
		[]Phase{PhaseOpening, PhaseExtracting, PhaseFetching, PhaseRendering, PhaseClosing},
		sink.phases["Cinemeta"])

	assert.Equal(t, Counts{Total: 3, Outdated: 1, UpToDate: 1, Unknown: 1}, summary.Counts())
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	assert.Equal(t, 0, page.OpenPanels())
	assert.Equal(t, 3, page.Opened())
	assert.Equal(t, 0, page.ActiveObservers())
	assert.Equal(t, 0, page.Escapes())
}

func TestScanManifestURLSources(t *testing.T) {
	tests := []struct {
		name  string
		addon domtest.Addon
		want  string
	}{
		{
			name:  "transport label",
			addon: domtest.Addon{URLStyle: domtest.URLLabel},
			want:  manifestURL("addon"),
		},
		{
			name:  "url section row",
			addon: domtest.Addon{URLStyle: domtest.URLSectionRow},
			want:  manifestURL("addon"),
		},
		{
			name:  "span in section",
			addon: domtest.Addon{URLStyle: domtest.URLSectionSpan},
			want:  manifestURL("addon"),
		},
		{
			name:  "span anywhere",
			addon: domtest.Addon{URLStyle: domtest.URLLooseSpan},
			want:  manifestURL("addon"),
		},
		{
			name:  "no url",
			addon: domtest.Addon{URLStyle: domtest.URLNone},
		},
		{
			name:  "detached details",
			addon: domtest.Addon{PanelStyle: domtest.PanelDetached},
			want:  manifestURL("addon"),
		},
		{
			name:  "panel never opens",
			addon: domtest.Addon{PanelStyle: domtest.PanelNever},
		},
		{
			name:  "escape dismissal",
			addon: domtest.Addon{NoCancel: true, NoClose: true},
			want:  manifestURL("addon"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addon := tt.addon
			addon.Name = "Addon"
			addon.Version = "1.0.0"
			addon.ManifestURL = manifestURL("addon")

			page := domtest.NewAddonsPage([]domtest.Addon{addon})
			f := newFakeFetcher()
			f.versions[manifestURL("addon")] = "1.0.1"
			o := newTestOrchestrator(page, f, nil)

			summary, err := o.Scan(context.Background())
			require.NoError(t, err)
			require.Len(t, summary.Results, 1)

			r := summary.Results[0]
			assert.Equal(t, tt.want, r.ManifestURL)
			if tt.want == "" {
				assert.Empty(t, f.Calls())
				assert.Equal(t, "manifest URL not found", r.Error)
				assert.False(t, r.NeedsUpdate)
			} else {
				assert.Equal(t, "1.0.1", r.ManifestVersion)
				assert.True(t, r.NeedsUpdate)
			}
			assert.Equal(t, 0, page.OpenPanels())
			assert.Equal(t, 0, page.ActiveObservers())
		})
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Slow", Version: "1.0.0", ManifestURL: manifestURL("slow")},
		{Name: "Other", Version: "1.0.0", ManifestURL: manifestURL("other")},
	})
	f := newFakeFetcher()
	f.versions[manifestURL("slow")] = "1.0.0"
	f.versions[manifestURL("other")] = "1.0.0"

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	f.onFetch = func(ctx context.Context, url string) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	sink := newRecordingSink()
	o := newTestOrchestrator(page, f, sink)
	entries, err := Snapshot(page, o.strategy, nil)
	require.NoError(t, err)

	type outcome struct {
		summary *Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := o.Run(context.Background(), entries)
		done <- outcome{s, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached fetching")
	}

	_, err = o.Run(context.Background(), entries)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = o.Scan(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, sink.Statuses(), StatusAlreadyRunning)
	assert.Empty(t, o.Results())
	assert.Equal(t, StateRunning, o.State())

	close(release)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, StateCompleted, out.summary.State)
		assert.Len(t, out.summary.Results, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}
}

func TestRequestCancelStopsAtNextEntry(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "One", Version: "1.0.0", ManifestURL: manifestURL("one")},
		{Name: "Two", Version: "1.0.0", ManifestURL: manifestURL("two")},
		{Name: "Three", Version: "1.0.0", ManifestURL: manifestURL("three")},
	})
	f := newFakeFetcher()
	for _, n := range []string{"one", "two", "three"} {
		f.versions[manifestURL(n)] = "2.0.0"
	}

	sink := newRecordingSink()
	o := newTestOrchestrator(page, f, sink)
	f.onFetch = func(ctx context.Context, url string) error {
		if url == manifestURL("two") {
			o.RequestCancel()
			o.RequestCancel()
			assert.Equal(t, StateCancelling, o.State())
		}
		return nil
	}

	summary, err := o.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, summary.State)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "One", summary.Results[0].Name)
	assert.Equal(t, "Two", summary.Results[1].Name)
	assert.Equal(t, "2.0.0", summary.Results[1].ManifestVersion)
	assert.True(t, summary.Results[1].NeedsUpdate)
	assert.Equal(t, 0, page.Clicks("Three"))
	assert.Equal(t, 0, page.OpenPanels())

	statuses := sink.Statuses()
	assert.Contains(t, statuses, StatusCancelling)
	assert.Equal(t, StatusCancelled, statuses[len(statuses)-1])

	// The cancel flag does not leak into the next run.
	f.onFetch = nil
	summary, err = o.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Len(t, summary.Results, 3)
}

func TestContextCancelDropsInterruptedEntry(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "One", Version: "1.0.0", ManifestURL: manifestURL("one")},
		{Name: "Two", Version: "1.0.0", ManifestURL: manifestURL("two")},
		{Name: "Three", Version: "1.0.0", ManifestURL: manifestURL("three")},
	})
	f := newFakeFetcher()
	for _, n := range []string{"one", "two", "three"} {
		f.versions[manifestURL(n)] = "1.0.0"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onFetch = func(fctx context.Context, url string) error {
		if url == manifestURL("two") {
			cancel()
			return fctx.Err()
		}
		return nil
	}

	sink := newRecordingSink()
	o := newTestOrchestrator(page, f, sink)

	summary, err := o.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, summary.State)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "One", summary.Results[0].Name)
	assert.Len(t, sink.Rendered(), 1)

	assert.Equal(t, 1, page.Clicks("Two"))
	assert.Equal(t, 0, page.Clicks("Three"))
	assert.Equal(t, 0, page.OpenPanels())
	assert.Equal(t, 0, page.ActiveObservers())
}

func TestScanWithoutList(t *testing.T) {
	doc := domtest.MustParse(`<html><body><div class="home"></div></body></html>`)
	sink := newRecordingSink()
	o := New(doc, newFakeFetcher(), sink)

	summary, err := o.Scan(context.Background())
	assert.ErrorIs(t, err, ErrListNotFound)
	assert.Nil(t, summary)
	assert.Equal(t, []string{StatusListNotFound}, sink.Statuses())
	assert.Equal(t, StateIdle, o.State())
}

func TestScanEmptyList(t *testing.T) {
	page := domtest.NewAddonsPage(nil)
	sink := newRecordingSink()
	o := newTestOrchestrator(page, newFakeFetcher(), sink)

	summary, err := o.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Empty(t, summary.Results)
	statuses := sink.Statuses()
	assert.Equal(t, StatusEmpty, statuses[len(statuses)-1])
}

func TestClearAndIdleCancel(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "One", Version: "1.0.0", ManifestURL: manifestURL("one")},
	})
	f := newFakeFetcher()
	f.versions[manifestURL("one")] = "1.0.0"
	sink := newRecordingSink()
	o := newTestOrchestrator(page, f, sink)

	o.RequestCancel()
	assert.Equal(t, StateIdle, o.State())

	summary, err := o.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	require.Len(t, o.Results(), 1)

	o.Clear()
	assert.Empty(t, o.Results())
	assert.Empty(t, sink.Rendered())
	assert.Equal(t, StateIdle, o.State())
}

func TestFetchWithoutVersion(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Bare", Version: "1.0.0", ManifestURL: manifestURL("bare")},
	})
	f := newFakeFetcher()
	f.versions[manifestURL("bare")] = ""
	o := newTestOrchestrator(page, f, nil)

	summary, err := o.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "", summary.Results[0].ManifestVersion)
	assert.False(t, summary.Results[0].NeedsUpdate)
	assert.Equal(t, "manifest has no version", summary.Results[0].Error)
}

func TestFilterRestrictsScan(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Cinemeta", Version: "1.0.0", ManifestURL: manifestURL("cinemeta")},
		{Name: "Local Files", Version: "1.0.0", ManifestURL: manifestURL("local")},
		{Name: "Torrentio", Version: "1.0.0", ManifestURL: manifestURL("torrentio")},
	})
	f := newFakeFetcher()
	f.versions[manifestURL("cinemeta")] = "1.0.0"
	f.versions[manifestURL("torrentio")] = "1.0.0"

	filter, err := NewFilter(nil, []string{"local*"})
	require.NoError(t, err)
	o := newTestOrchestrator(page, f, nil, WithFilter(filter))

	summary, err := o.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "Cinemeta", summary.Results[0].Name)
	assert.Equal(t, "Torrentio", summary.Results[1].Name)
	assert.Equal(t, 0, page.Clicks("Local Files"))
}

var _ manifest.Fetcher = (*fakeFetcher)(nil)

func TestRunIgnoresRowsAddedMidScan(t *testing.T) {
	page := domtest.NewAddonsPage([]domtest.Addon{
		{Name: "Cinemeta", Version: "1.0.0", ManifestURL: manifestURL("cinemeta")},
		{Name: "Torrentio", Version: "1.0.0", ManifestURL: manifestURL("torrentio")},
	})
	f := newFakeFetcher()
	f.versions[manifestURL("cinemeta")] = "1.0.0"
	f.versions[manifestURL("torrentio")] = "1.0.0"
	f.versions[manifestURL("late")] = "2.0.0"

	var once sync.Once
	f.onFetch = func(ctx context.Context, url string) error {
		once.Do(func() {
			page.AppendAddon(domtest.Addon{Name: "Late", Version: "1.0.0", ManifestURL: manifestURL("late")})
		})
		return nil
	}

	o := newTestOrchestrator(page, f, newRecordingSink())
	summary, err := o.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, "Cinemeta", summary.Results[0].Name)
	assert.Equal(t, "Torrentio", summary.Results[1].Name)
	assert.Zero(t, page.Clicks("Late"))
	assert.NotContains(t, f.Calls(), manifestURL("late"))

	// The row is live and a fresh scan picks it up.
	entries, err := Snapshot(page, o.strategy, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
