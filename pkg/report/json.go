package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/entrhq/sentinel/pkg/scan"
)

// Document is the JSON shape of a finished run.
type Document struct {
	Version string        `json:"version"`
	Summary *scan.Summary `json:"summary"`
	Counts  scan.Counts   `json:"counts"`
}

// JSONWriter renders a summary as indented JSON.
type JSONWriter struct {
	output  io.Writer
	version string
}

// NewJSONWriter creates a JSONWriter stamping documents with the tool
// version.
func NewJSONWriter(w io.Writer, version string) *JSONWriter {
	return &JSONWriter{output: w, version: version}
}

// Write outputs the report and returns the number of bytes written.
func (w *JSONWriter) Write(summary *scan.Summary) (int, error) {
	doc := Document{
		Version: w.version,
		Summary: summary,
		Counts:  summary.Counts(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
