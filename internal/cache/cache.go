// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists recent search responses in a small SQLite
// database so repeated queries skip the network. Entries expire by TTL
// and corrupt rows are treated as misses.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scholarly/pkg/types"
)

const dbFile = "searches.db"

// Store is the SQLite-backed search-response cache.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// Open creates or opens the cache database under dir, creating the
// schema if needed.
func Open(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, ttl: ttl}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS searches (
		key TEXT PRIMARY KEY,
		request TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	return err
}

// Key derives the cache key for a request. The key covers every field
// that changes the response; NoCache is excluded on purpose.
func Key(req types.SearchRequest) string {
	sources := make([]string, len(req.Sources))
	for i, s := range req.Sources {
		sources[i] = string(s)
	}
	sort.Strings(sources)

	parts := []string{
		strings.ToLower(strings.TrimSpace(req.Query)),
		fmt.Sprintf("max=%d", req.MaxResults),
		fmt.Sprintf("from=%s", req.StartDate.Format("2006-01-02")),
		fmt.Sprintf("to=%s", req.EndDate.Format("2006-01-02")),
		fmt.Sprintf("sort=%s", req.SortBy),
		fmt.Sprintf("dedup=%t", !req.NoDedup),
		"sources=" + strings.Join(sources, ","),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for a request, or ok=false on miss,
// expiry, or corruption.
func (s *Store) Get(req types.SearchRequest) (types.SearchResult, bool) {
	var (
		response  string
		createdAt int64
	)
	row := s.db.QueryRow(`SELECT response, created_at FROM searches WHERE key = ?`, Key(req))
	if err := row.Scan(&response, &createdAt); err != nil {
		return types.SearchResult{}, false
	}

	if s.ttl > 0 && time.Since(time.Unix(createdAt, 0)) > s.ttl {
		return types.SearchResult{}, false
	}

	var result types.SearchResult
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return types.SearchResult{}, false
	}
	result.Cached = true
	return result, true
}

// Put stores a response for a request, replacing any prior entry.
func (s *Store) Put(req types.SearchRequest, result types.SearchResult) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	respJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO searches (key, request, response, created_at) VALUES (?, ?, ?, ?)`,
		Key(req), string(reqJSON), string(respJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (s *Store) Prune() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.ttl).Unix()
	res, err := s.db.Exec(`DELETE FROM searches WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM searches`)
	return err
}
