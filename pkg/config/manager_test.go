package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps sections in memory and counts saves.
type memStore struct {
	sections map[string]map[string]interface{}
	loadErr  error
	saveErr  error
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sections: make(map[string]map[string]interface{})}
}

func (m *memStore) Load() error { return m.loadErr }

func (m *memStore) Save() error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	return nil
}

func (m *memStore) GetSection(id string) (map[string]interface{}, error) {
	return copySection(m.sections[id]), nil
}

func (m *memStore) SetSection(id string, data map[string]interface{}) error {
	m.sections[id] = copySection(data)
	return nil
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	m := NewManager(store)
	require.NoError(t, m.RegisterSection(NewBrowserSection()))
	require.NoError(t, m.RegisterSection(NewScanSection()))
	require.NoError(t, m.RegisterSection(NewSelectorsSection()))
	return m
}

func TestManager_RegisterSection(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	assert.Same(t, store, m.Store())

	err := m.RegisterSection(NewScanSection())
	assert.ErrorContains(t, err, `"scan" already registered`)

	ids := []string{}
	for _, s := range m.GetSections() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{SectionIDBrowser, SectionIDScan, SectionIDSelectors}, ids)

	_, ok := m.GetSection("llm")
	assert.False(t, ok)
}

func TestManager_LoadAll(t *testing.T) {
	store := newMemStore()
	store.sections[SectionIDBrowser] = map[string]interface{}{
		"headless":      true,
		"user_data_dir": "/tmp/profile",
	}
	store.sections[SectionIDScan] = map[string]interface{}{
		"open_timeout": "4s",
		"include":      []interface{}{"Torrentio*"},
	}

	m := newTestManager(t, store)
	require.NoError(t, m.LoadAll())

	b, _ := m.GetSection(SectionIDBrowser)
	browserSection := b.(*BrowserSection)
	assert.True(t, browserSection.Headless)
	assert.Equal(t, "/tmp/profile", browserSection.UserDataDir)

	s, _ := m.GetSection(SectionIDScan)
	scanSection := s.(*ScanSection)
	assert.Equal(t, 4*time.Second, scanSection.Modal.Open)
	assert.Equal(t, []string{"Torrentio*"}, scanSection.Include)
}

func TestManager_LoadAllErrors(t *testing.T) {
	tests := []struct {
		name    string
		store   func() *memStore
		wantErr string
	}{
		{
			name: "store fails",
			store: func() *memStore {
				s := newMemStore()
				s.loadErr = errors.New("disk gone")
				return s
			},
			wantErr: "failed to load config: disk gone",
		},
		{
			name: "bad value",
			store: func() *memStore {
				s := newMemStore()
				s.sections[SectionIDBrowser] = map[string]interface{}{"headless": "yes"}
				return s
			},
			wantErr: "failed to apply section browser",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, tt.store())
			assert.ErrorContains(t, m.LoadAll(), tt.wantErr)
		})
	}
}

func TestManager_SaveAll(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	b, _ := m.GetSection(SectionIDBrowser)
	b.(*BrowserSection).SetHeadless(true)

	require.NoError(t, m.SaveAll())
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, true, store.sections[SectionIDBrowser]["headless"])
	assert.Contains(t, store.sections, SectionIDScan)
	assert.Contains(t, store.sections, SectionIDSelectors)
}

func TestManager_SaveAllRejectsInvalid(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	s, _ := m.GetSection(SectionIDScan)
	s.(*ScanSection).Modal.Open = 0

	err := m.SaveAll()
	assert.ErrorContains(t, err, "invalid section scan")
	assert.Zero(t, store.saves)
	assert.Empty(t, store.sections)
}

func TestManager_SaveAllStoreError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("read-only")
	m := newTestManager(t, store)

	assert.ErrorContains(t, m.SaveAll(), "failed to save config: read-only")
}

func TestManager_ResetAll(t *testing.T) {
	m := newTestManager(t, newMemStore())

	b, _ := m.GetSection(SectionIDBrowser)
	b.(*BrowserSection).SetHeadless(true)
	s, _ := m.GetSection(SectionIDScan)
	s.(*ScanSection).SetFilters([]string{"a*"}, nil)

	m.ResetAll()

	assert.False(t, b.(*BrowserSection).Headless)
	assert.Empty(t, s.(*ScanSection).Include)
}
