// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prefs holds and persists the preferences document: source
// enablement and priorities, default search parameters, display
// options, and cache settings. The document lives in a single JSON
// file; every mutation rewrites it wholesale before returning.
//
// Loading is lenient: a missing or corrupt file silently yields
// defaults, because for a local convenience file availability beats
// strict validation. Imports are the opposite: a malformed document is
// rejected and prior state stays untouched.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scholarly/pkg/types"
)

// ErrInvalidFormat marks a rejected preferences import.
var ErrInvalidFormat = errors.New("invalid preferences format")

// ErrUnknownSource marks a source-preference update for a source the
// aggregator does not know.
var ErrUnknownSource = errors.New("unknown source")

// DefaultPath returns the preferences file location,
// ~/.config/scholarly/preferences.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "scholarly", "preferences.json"), nil
}

// Store owns the preferences document. Constructed once at process
// start and passed to whoever needs preferences; there is no package
// global. Concurrent access within one process is synchronized; writes
// from multiple processes can race, an accepted limitation of a
// single-user tool.
type Store struct {
	mu   sync.Mutex
	path string
	p    types.Preferences
	log  zerolog.Logger
}

// Load opens the store backed by the file at path. A missing or
// unreadable file yields defaults without error.
func Load(path string, log zerolog.Logger) *Store {
	s := &Store{path: path, p: types.DefaultPreferences(), log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("preferences unreadable, using defaults")
		}
		return s
	}

	var p types.Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("preferences corrupt, using defaults")
		return s
	}
	if err := validate(p); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("preferences invalid, using defaults")
		return s
	}
	s.p = p
	return s
}

// Get returns a deep copy of the current preferences. Callers may
// mutate the copy freely.
func (s *Store) Get() types.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Clone()
}

// SourcePatch is a partial update for one source's preference entry.
// Nil fields keep the current value.
type SourcePatch struct {
	Enabled    *bool `json:"enabled,omitempty"`
	Priority   *int  `json:"priority,omitempty"`
	MaxResults *int  `json:"max_results,omitempty"`
}

// SetSourcePreference applies a partial update to one source and
// persists the document.
func (s *Store) SetSourcePreference(name types.Source, patch SourcePatch) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	if patch.Priority != nil && *patch.Priority < 1 {
		return fmt.Errorf("%w: priority must be positive", ErrInvalidFormat)
	}
	if patch.MaxResults != nil && *patch.MaxResults < 1 {
		return fmt.Errorf("%w: max_results must be positive", ErrInvalidFormat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.p.Sources {
		if s.p.Sources[i].Name != name {
			continue
		}
		found = true
		if patch.Enabled != nil {
			s.p.Sources[i].Enabled = *patch.Enabled
		}
		if patch.Priority != nil {
			s.p.Sources[i].Priority = *patch.Priority
		}
		if patch.MaxResults != nil {
			s.p.Sources[i].MaxResults = *patch.MaxResults
		}
	}
	if !found {
		sp := types.SourcePreference{Name: name, Enabled: true, Priority: len(s.p.Sources) + 1, MaxResults: 20}
		if patch.Enabled != nil {
			sp.Enabled = *patch.Enabled
		}
		if patch.Priority != nil {
			sp.Priority = *patch.Priority
		}
		if patch.MaxResults != nil {
			sp.MaxResults = *patch.MaxResults
		}
		s.p.Sources = append(s.p.Sources, sp)
	}
	return s.writeLocked()
}

// SearchPatch is a partial update for the default search parameters.
type SearchPatch struct {
	MaxResults            *int           `json:"max_results,omitempty"`
	DefaultSort           *types.SortKey `json:"default_sort,omitempty"`
	Dedup                 *bool          `json:"dedup,omitempty"`
	PreferManagedScraping *bool          `json:"prefer_managed_scraping,omitempty"`
}

// UpdateSearchPreferences applies a partial update and persists.
func (s *Store) UpdateSearchPreferences(patch SearchPatch) error {
	if patch.MaxResults != nil && *patch.MaxResults < 1 {
		return fmt.Errorf("%w: max_results must be positive", ErrInvalidFormat)
	}
	if patch.DefaultSort != nil && !patch.DefaultSort.Valid() {
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidFormat, *patch.DefaultSort)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.MaxResults != nil {
		s.p.Search.MaxResults = *patch.MaxResults
	}
	if patch.DefaultSort != nil {
		s.p.Search.DefaultSort = *patch.DefaultSort
	}
	if patch.Dedup != nil {
		s.p.Search.Dedup = *patch.Dedup
	}
	if patch.PreferManagedScraping != nil {
		s.p.Search.PreferManagedScraping = *patch.PreferManagedScraping
	}
	return s.writeLocked()
}

// DisplayPatch is a partial update for display options.
type DisplayPatch struct {
	MaxAuthors   *int  `json:"max_authors,omitempty"`
	ShowAbstract *bool `json:"show_abstract,omitempty"`
}

// UpdateDisplayPreferences applies a partial update and persists.
func (s *Store) UpdateDisplayPreferences(patch DisplayPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.MaxAuthors != nil {
		s.p.Display.MaxAuthors = *patch.MaxAuthors
	}
	if patch.ShowAbstract != nil {
		s.p.Display.ShowAbstract = *patch.ShowAbstract
	}
	return s.writeLocked()
}

// ResetToDefaults restores the seed document and persists it.
func (s *Store) ResetToDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = types.DefaultPreferences()
	return s.writeLocked()
}

// Export returns the current document as indented JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.p, "", "  ")
}

// Import replaces the document with data after validating its shape.
// On any validation failure the prior state is untouched.
func (s *Store) Import(data []byte) error {
	var p types.Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	return s.writeLocked()
}

// validate checks the structural invariants of an imported document.
func validate(p types.Preferences) error {
	if len(p.Sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrInvalidFormat)
	}
	seen := make(map[types.Source]bool)
	for _, sp := range p.Sources {
		if !sp.Name.Valid() {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidFormat, sp.Name)
		}
		if seen[sp.Name] {
			return fmt.Errorf("%w: duplicate source %q", ErrInvalidFormat, sp.Name)
		}
		seen[sp.Name] = true
		if sp.Priority < 1 {
			return fmt.Errorf("%w: source %q priority must be positive", ErrInvalidFormat, sp.Name)
		}
	}
	if p.Search.MaxResults < 1 {
		return fmt.Errorf("%w: search.max_results must be positive", ErrInvalidFormat)
	}
	if !p.Search.DefaultSort.Valid() {
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidFormat, p.Search.DefaultSort)
	}
	return nil
}

// writeLocked persists the document. Caller holds s.mu. The write is
// synchronous: mutating calls do not return until the file is on disk.
func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(s.p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
