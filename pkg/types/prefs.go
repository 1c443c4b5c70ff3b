// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourcePreference configures one source: whether it participates in
// searches, its priority (1 = highest), and a per-source result cap.
type SourcePreference struct {
	Name       Source `json:"name" yaml:"name"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Priority   int    `json:"priority" yaml:"priority"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
}

// SearchPreferences holds the default search parameters.
type SearchPreferences struct {
	// MaxResults is the default cap on the final result list.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// DefaultSort is the sort key used when a request does not name one.
	DefaultSort SortKey `json:"default_sort" yaml:"default_sort"`

	// Dedup enables cross-source deduplication by default.
	Dedup bool `json:"dedup" yaml:"dedup"`

	// PreferManagedScraping selects the managed scraping service for
	// Google Scholar before falling back to the local browser.
	PreferManagedScraping bool `json:"prefer_managed_scraping" yaml:"prefer_managed_scraping"`
}

// DisplayPreferences holds output formatting options.
type DisplayPreferences struct {
	// MaxAuthors truncates author lists in table output.
	MaxAuthors int `json:"max_authors" yaml:"max_authors"`

	// ShowAbstract includes abstracts in table output.
	ShowAbstract bool `json:"show_abstract" yaml:"show_abstract"`
}

// CachePreferences holds result-cache settings.
type CachePreferences struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TTL is how long a cached response stays valid.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Dir is the cache database directory. Empty means the default
	// location next to the preferences file.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Preferences is the persisted configuration document. It is read at
// startup and rewritten wholesale on every mutation.
type Preferences struct {
	Sources []SourcePreference `json:"sources" yaml:"sources"`
	Search  SearchPreferences  `json:"search" yaml:"search"`
	Display DisplayPreferences `json:"display" yaml:"display"`
	Cache   CachePreferences   `json:"cache" yaml:"cache"`
}

// DefaultPreferences returns the seed configuration used on first run
// and whenever the preferences file is missing or unreadable.
func DefaultPreferences() Preferences {
	return Preferences{
		Sources: []SourcePreference{
			{Name: SourcePubMed, Enabled: true, Priority: 1, MaxResults: 20},
			{Name: SourceArxiv, Enabled: true, Priority: 2, MaxResults: 20},
			{Name: SourceGoogleScholar, Enabled: true, Priority: 3, MaxResults: 20},
		},
		Search: SearchPreferences{
			MaxResults:  20,
			DefaultSort: SortRelevance,
			Dedup:       true,
		},
		Display: DisplayPreferences{
			MaxAuthors:   3,
			ShowAbstract: false,
		},
		Cache: CachePreferences{
			Enabled: false,
			TTL:     24 * time.Hour,
		},
	}
}

// Clone returns a deep copy of p. Callers that hand preferences out of
// a shared store must not leak the shared slice.
func (p Preferences) Clone() Preferences {
	out := p
	out.Sources = make([]SourcePreference, len(p.Sources))
	copy(out.Sources, p.Sources)
	return out
}

// SourcePreference returns the preference entry for name, or ok=false
// if the source is unknown to this document.
func (p Preferences) SourcePreference(name Source) (SourcePreference, bool) {
	for _, sp := range p.Sources {
		if sp.Name == name {
			return sp, true
		}
	}
	return SourcePreference{}, false
}
