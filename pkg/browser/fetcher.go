package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/sentinel/pkg/manifest"
)

// RequestFetcher fetches manifests through Playwright's request API, which
// is not subject to the page's cross-origin rules.
type RequestFetcher struct {
	request playwright.APIRequestContext
	timeout time.Duration
}

// NewRequestFetcher creates a fetcher on request. A zero timeout keeps the
// Playwright default.
func NewRequestFetcher(request playwright.APIRequestContext, timeout time.Duration) *RequestFetcher {
	return &RequestFetcher{request: request, timeout: timeout}
}

// Fetch implements manifest.Fetcher.
func (f *RequestFetcher) Fetch(ctx context.Context, url string) (*manifest.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := playwright.APIRequestContextGetOptions{}
	if f.timeout > 0 {
		ms := float64(f.timeout.Milliseconds())
		opts.Timeout = &ms
	}

	resp, err := f.request.Get(url, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrNetwork, err)
	}
	defer resp.Dispose()

	if !resp.Ok() {
		return nil, fmt.Errorf("%w: HTTP %d", manifest.ErrNetwork, resp.Status())
	}

	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", manifest.ErrNetwork, err)
	}
	return manifest.Decode(url, body)
}
