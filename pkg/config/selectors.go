package config

import (
	"sync"

	"github.com/entrhq/sentinel/pkg/locator"
)

// SectionIDSelectors is the identifier for the selector overrides section
const SectionIDSelectors = "selectors"

// SelectorsSection overrides the CSS selectors used to find parts of the
// addons page, keyed by locator role.
type SelectorsSection struct {
	Overrides map[locator.Role]string
	mu        sync.RWMutex
}

// NewSelectorsSection creates an empty overrides section.
func NewSelectorsSection() *SelectorsSection {
	return &SelectorsSection{Overrides: make(map[locator.Role]string)}
}

func (s *SelectorsSection) ID() string    { return SectionIDSelectors }
func (s *SelectorsSection) Title() string { return "Selectors" }

func (s *SelectorsSection) Description() string {
	return "Override the selectors for individual page elements when the host page changes its markup."
}

func (s *SelectorsSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := make(map[string]interface{}, len(s.Overrides))
	for role, sel := range s.Overrides {
		data[string(role)] = sel
	}
	return data
}

func (s *SelectorsSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	overrides := make(map[locator.Role]string, len(data))
	for key, value := range data {
		sel, err := stringValue(key, value)
		if err != nil {
			return err
		}
		overrides[locator.Role(key)] = sel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Overrides = overrides
	return nil
}

// Validate rejects overrides for roles the locator does not know.
func (s *SelectorsSection) Validate() error {
	_, err := s.Strategy()
	return err
}

func (s *SelectorsSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Overrides = make(map[locator.Role]string)
}

// Strategy returns the Stremio locator with the overrides applied.
func (s *SelectorsSection) Strategy() (*locator.ClassSubstring, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return locator.Stremio().WithOverrides(s.Overrides)
}
