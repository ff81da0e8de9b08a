package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/sentinel/pkg/modal"
	"github.com/entrhq/sentinel/pkg/scan"
	"github.com/entrhq/sentinel/pkg/waiter"
)

const (
	// SectionIDScan is the identifier for the scan settings section
	SectionIDScan = "scan"

	defaultFetchTimeout        = 15 * time.Second
	defaultFetchThroughBrowser = true
	maxWait                    = time.Minute
)

// ScanSection holds wait timings, manifest fetching and name filters.
type ScanSection struct {
	Modal               modal.Timeouts
	Steps               scan.Timeouts
	PollInterval        time.Duration
	FetchTimeout        time.Duration
	FetchThroughBrowser bool
	Include             []string
	Exclude             []string
	mu                  sync.RWMutex
}

// NewScanSection creates a scan section with default settings.
func NewScanSection() *ScanSection {
	s := &ScanSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *ScanSection) ID() string {
	return SectionIDScan
}

// Title returns the section title.
func (s *ScanSection) Title() string {
	return "Scan"
}

// Description returns the section description.
func (s *ScanSection) Description() string {
	return "Configure how long each scan step waits on the page, how manifests are fetched and which addons are checked."
}

// durationsLocked maps keys to the duration fields they set.
func (s *ScanSection) durationsLocked() map[string]*time.Duration {
	return map[string]*time.Duration{
		"open_timeout":     &s.Modal.Open,
		"fallback_timeout": &s.Modal.Fallback,
		"close_timeout":    &s.Modal.Close,
		"close_settle":     &s.Modal.Settle,
		"alternate_search": &s.Steps.AlternateSearch,
		"details_ready":    &s.Steps.DetailsReady,
		"details_settle":   &s.Steps.DetailsSettle,
		"manifest_label":   &s.Steps.ManifestLabel,
		"between_entries":  &s.Steps.BetweenEntries,
		"poll_interval":    &s.PollInterval,
		"fetch_timeout":    &s.FetchTimeout,
	}
}

// Data returns the current configuration data.
func (s *ScanSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := map[string]interface{}{
		"fetch_through_browser": s.FetchThroughBrowser,
		"include":               append([]string{}, s.Include...),
		"exclude":               append([]string{}, s.Exclude...),
	}
	for key, d := range s.durationsLocked() {
		data[key] = d.String()
	}
	return data
}

// SetData updates the configuration from the provided data.
func (s *ScanSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	durations := s.durationsLocked()
	var err error
	for key, value := range data {
		if d, ok := durations[key]; ok {
			if *d, err = durationValue(key, value); err != nil {
				return err
			}
			continue
		}

		switch key {
		case "fetch_through_browser":
			s.FetchThroughBrowser, err = boolValue(key, value)
		case "include":
			s.Include, err = stringsValue(key, value)
		case "exclude":
			s.Exclude, err = stringsValue(key, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every wait is within (0, 1m] and the filters compile.
// Settle pauses may be zero.
func (s *ScanSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	durations := s.durationsLocked()
	keys := make([]string, 0, len(durations))
	for key := range durations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		d := *durations[key]
		switch key {
		case "close_settle", "details_settle", "between_entries":
			if d < 0 || d > maxWait {
				return fmt.Errorf("%s must be between 0 and %v, got %v", key, maxWait, d)
			}
		default:
			if d <= 0 || d > maxWait {
				return fmt.Errorf("%s must be between 0 and %v (exclusive of 0), got %v", key, maxWait, d)
			}
		}
	}

	if _, err := scan.NewFilter(s.Include, s.Exclude); err != nil {
		return err
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *ScanSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Modal = modal.DefaultTimeouts()
	s.Steps = scan.DefaultTimeouts()
	s.PollInterval = waiter.DefaultPollInterval
	s.FetchTimeout = defaultFetchTimeout
	s.FetchThroughBrowser = defaultFetchThroughBrowser
	s.Include = nil
	s.Exclude = nil
}

// Options returns orchestrator options for the configured timings and
// filters.
func (s *ScanSection) Options() ([]scan.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter, err := scan.NewFilter(s.Include, s.Exclude)
	if err != nil {
		return nil, err
	}
	return append(s.timingsLocked(), scan.WithFilter(filter)), nil
}

// Timings returns orchestrator options for the configured timings only,
// for callers that bring their own filter.
func (s *ScanSection) Timings() []scan.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timingsLocked()
}

func (s *ScanSection) timingsLocked() []scan.Option {
	return []scan.Option{
		scan.WithModalTimeouts(s.Modal),
		scan.WithTimeouts(s.Steps),
		scan.WithPollInterval(s.PollInterval),
	}
}

// GetFetchTimeout returns the per-manifest request timeout.
func (s *ScanSection) GetFetchTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.FetchTimeout
}

// UseBrowserFetch reports whether manifests go through the browser's
// request context instead of a plain HTTP client.
func (s *ScanSection) UseBrowserFetch() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.FetchThroughBrowser
}

// SetFilters replaces the include and exclude globs.
func (s *ScanSection) SetFilters(include, exclude []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Include = append([]string(nil), include...)
	s.Exclude = append([]string(nil), exclude...)
}
