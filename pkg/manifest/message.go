package manifest

import (
	"context"
	"encoding/json"
)

// Request asks a fetcher to resolve one manifest.
type Request struct {
	URL string `json:"url"`
}

// Response is the outcome of a Request. On success Version is null when
// the manifest carries no version; on failure only Error is set.
type Response struct {
	OK      bool            `json:"ok"`
	Version *string         `json:"version"`
	JSON    json.RawMessage `json:"json,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// MarshalJSON always writes version on success, as null when unknown, and
// leaves it out of failures.
func (r Response) MarshalJSON() ([]byte, error) {
	type response Response
	if r.OK {
		return json.Marshal(response(r))
	}
	return json.Marshal(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{r.OK, r.Error})
}

// Serve resolves req with f and encodes the outcome as a Response. It never
// fails; errors are reported in the Response.
func Serve(ctx context.Context, f Fetcher, req Request) Response {
	if req.URL == "" {
		return Response{Error: "missing url"}
	}

	rec, err := f.Fetch(ctx, req.URL)
	if err != nil {
		return Response{Error: err.Error()}
	}

	resp := Response{OK: true, JSON: json.RawMessage(rec.Raw)}
	if rec.Version != "" {
		v := rec.Version
		resp.Version = &v
	}
	if len(resp.JSON) == 0 {
		if raw, err := json.Marshal(rec.Document); err == nil {
			resp.JSON = raw
		}
	}
	return resp
}
