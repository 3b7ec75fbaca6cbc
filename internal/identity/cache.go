package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// Entry is one cached identity session, keyed by account and scope set.
type Entry struct {
	Account      string
	ScopeKey     string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Cache stores identity sessions between runs. It belongs to the
// identity-provider collaborator; the core never reads it directly.
type Cache interface {
	Get(account, scopeKey string) (*Entry, error)
	Put(entry Entry) error
	Delete(account, scopeKey string) error
}

// ScopeKey canonicalizes a scope set for cache lookup.
func ScopeKey(scopes []string) string {
	sorted := slices.Clone(scopes)
	slices.Sort(sorted)
	return strings.Join(sorted, " ")
}

// SQLiteCache is a token cache backed by SQLite.
type SQLiteCache struct {
	sql *sql.DB
	log *logging.Logger
}

// OpenSQLiteCache opens (or creates) the cache database at the given path.
// Use ":memory:" for an in-memory database (useful for tests).
func OpenSQLiteCache(path string, log *logging.Logger) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	c := &SQLiteCache{sql: sqlDB, log: log.Sub("identity.cache")}
	if err := c.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	c.log.Debug().Str("path", path).Msg("token cache opened")
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	_, err := c.sql.Exec(`
		CREATE TABLE IF NOT EXISTS identity_tokens (
			account       TEXT NOT NULL,
			scope_key     TEXT NOT NULL,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at    TEXT NOT NULL DEFAULT '',
			updated_at    TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (account, scope_key)
		)
	`)
	if err != nil {
		return fmt.Errorf("creating identity_tokens table: %w", err)
	}
	return nil
}

// Get returns the cached entry for an account and scope set, or nil.
func (c *SQLiteCache) Get(account, scopeKey string) (*Entry, error) {
	row := c.sql.QueryRow(`
		SELECT access_token, refresh_token, expires_at
		FROM identity_tokens WHERE account = ? AND scope_key = ?`,
		account, scopeKey)

	var entry Entry
	var expiresAt string
	err := row.Scan(&entry.AccessToken, &entry.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}

	entry.Account = account
	entry.ScopeKey = scopeKey
	if expiresAt != "" {
		if t, err := time.Parse(time.RFC3339, expiresAt); err == nil {
			entry.Expiry = t
		}
	}
	return &entry, nil
}

// Put inserts or replaces the entry for its account and scope set.
func (c *SQLiteCache) Put(entry Entry) error {
	var expiresAt string
	if !entry.Expiry.IsZero() {
		expiresAt = entry.Expiry.UTC().Format(time.RFC3339)
	}
	_, err := c.sql.Exec(`
		INSERT INTO identity_tokens (account, scope_key, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (account, scope_key) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		entry.Account, entry.ScopeKey, entry.AccessToken, entry.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Delete removes the entry for an account and scope set.
func (c *SQLiteCache) Delete(account, scopeKey string) error {
	_, err := c.sql.Exec(`DELETE FROM identity_tokens WHERE account = ? AND scope_key = ?`, account, scopeKey)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Close closes the cache database.
func (c *SQLiteCache) Close() error {
	return c.sql.Close()
}

// MemoryCache is a non-persistent Cache for tests and the "memory" store.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func memKey(account, scopeKey string) string {
	return account + "\x00" + scopeKey
}

func (c *MemoryCache) Get(account, scopeKey string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[memKey(account, scopeKey)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryCache) Put(entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[memKey(entry.Account, entry.ScopeKey)] = entry
	return nil
}

func (c *MemoryCache) Delete(account, scopeKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, memKey(account, scopeKey))
	return nil
}

var (
	_ Cache = (*SQLiteCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
