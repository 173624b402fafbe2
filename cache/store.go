package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

// Well-known cache keys. Each one is independently clearable; correctness of
// the reconciliation flows depends on explicit invalidation, never on expiry.
const (
	KeyLastTransferDate  = "last_transfer_date"
	KeyIssueAccountCache = "issue_account_cache"
	KeyAccountNumbers    = "account_number_cache"
	KeyDefaultValues     = "default_value_cache"
	KeyCaseLookups       = "case_lookup_cache"
)

// KnownKeys lists every well-known cache key in display order.
func KnownKeys() []string {
	return []string{
		KeyLastTransferDate,
		KeyIssueAccountCache,
		KeyAccountNumbers,
		KeyDefaultValues,
		KeyCaseLookups,
	}
}

// Store is a durable key -> JSON payload store for cross-run memoization of
// expensive provider lookups. The document is read lazily once per process and
// held in memory for the remainder of the run; every Set flushes the changed
// key to durable storage. Entries never expire. Single-user, single-process:
// concurrent external mutation is not guarded against.
type Store struct {
	db      *sql.DB
	entries map[string]json.RawMessage
}

// DefaultPath returns the per-user cache database location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".timesync", "cache.db"), nil
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create cache schema: %w", err)
	}
	return nil
}

func (s *Store) ensureRead() error {
	if s.entries != nil {
		return nil
	}

	rows, err := s.db.Query(`SELECT key, value FROM metadata;`)
	if err != nil {
		return fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan cache entry: %w", err)
		}
		entries[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cache entries: %w", err)
	}

	s.entries = entries
	return nil
}

// Get unmarshals the payload stored under key into out. The second return
// value is false when the key is absent.
func (s *Store) Get(key string, out any) (bool, error) {
	if err := s.ensureRead(); err != nil {
		return false, err
	}

	payload, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and flushes it immediately. A nil value clears
// the key.
func (s *Store) Set(key string, value any) error {
	if value == nil {
		return s.Delete(key)
	}

	if err := s.ensureRead(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	const upsert = `
INSERT INTO metadata (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
`
	if _, err := s.db.Exec(upsert, key, string(payload)); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}

	s.entries[key] = payload
	return nil
}

// Delete clears a single key.
func (s *Store) Delete(key string) error {
	if err := s.ensureRead(); err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM metadata WHERE key = ?;`, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}

	delete(s.entries, key)
	return nil
}

// ClearAll wipes every cache entry.
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM metadata;`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	s.entries = make(map[string]json.RawMessage)
	return nil
}

// Keys returns every stored key in ascending order.
func (s *Store) Keys() ([]string, error) {
	if err := s.ensureRead(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
