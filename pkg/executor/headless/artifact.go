package headless

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/entrhq/sentinel/pkg/report"
	"github.com/entrhq/sentinel/pkg/scan"
)

// Artifact file names inside the output directory.
const (
	ResultsFile = "results.json"
	SummaryFile = "summary.md"
)

// ArtifactWriter handles writing run artifacts
type ArtifactWriter struct {
	outputDir string
	config    ArtifactConfig
	version   string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string, config ArtifactConfig, version string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
		config:    config,
		version:   version,
	}
}

// WriteAll writes all configured artifact formats and returns their paths.
func (w *ArtifactWriter) WriteAll(summary *scan.Summary) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	if w.config.JSON {
		path := filepath.Join(w.outputDir, ResultsFile)
		if err := w.writeFile(path, func(f *os.File) error {
			_, err := report.NewJSONWriter(f, w.version).Write(summary)
			return err
		}); err != nil {
			return written, fmt.Errorf("failed to write results JSON: %w", err)
		}
		written = append(written, path)
	}

	if w.config.Markdown {
		path := filepath.Join(w.outputDir, SummaryFile)
		if err := w.writeFile(path, func(f *os.File) error {
			_, err := report.NewMarkdownWriter(f).Write(summary)
			return err
		}); err != nil {
			return written, fmt.Errorf("failed to write summary markdown: %w", err)
		}
		written = append(written, path)
	}

	return written, nil
}

func (w *ArtifactWriter) writeFile(path string, write func(*os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
