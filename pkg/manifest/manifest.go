// Package manifest resolves remote addon manifests and extracts their
// published version.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrNetwork reports a request that failed or returned a non-2xx status.
	ErrNetwork = errors.New("manifest request failed")
	// ErrParse reports a body that is not valid JSON.
	ErrParse = errors.New("manifest is not valid JSON")
)

// maxManifestSize caps how much of a response body is read.
const maxManifestSize = 4 << 20

// Record is a resolved manifest.
type Record struct {
	URL string

	// Document is the decoded JSON graph.
	Document any

	// Version is the published version, empty when none was found.
	Version string

	// ID and Name are the addon's identity fields when present.
	ID   string
	Name string

	// Raw is the body as received.
	Raw []byte
}

// Fetcher resolves manifest URLs. Implementations do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Record, error)
}

// HTTPFetcher fetches manifests with a plain HTTP client.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A zero timeout leaves requests bounded
// only by the caller's context.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// NewHTTPFetcherWithClient creates a fetcher around an existing client.
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher. Bodies are parsed as JSON whatever their
// declared content type, since some addons serve manifests as text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrNetwork, err)
	}
	return Decode(url, body)
}

// Decode builds a Record from a raw manifest body.
func Decode(url string, body []byte) (*Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrParse
	}
	parsed := gjson.ParseBytes(body)
	doc := parsed.Value()
	return &Record{
		URL:      url,
		Document: doc,
		Version:  ExtractVersion(doc),
		ID:       stringField(parsed, "id", "manifest.id"),
		Name:     stringField(parsed, "name", "manifest.name"),
		Raw:      body,
	}, nil
}

func stringField(parsed gjson.Result, paths ...string) string {
	for _, path := range paths {
		if r := parsed.Get(path); r.Type == gjson.String {
			return r.Str
		}
	}
	return ""
}
