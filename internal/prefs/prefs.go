package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/glebarez/sqlite"
)

// Well-known preference keys. The controller reads these once at
// construction and writes through on change; nothing polls the store.
const (
	KeySort         = "catalog.sort"
	KeyOrder        = "catalog.order"
	KeyPageSize     = "catalog.page_size"
	KeyPrintFilter  = "catalog.print_filter"
	KeyAutoScan     = "scan.auto_incremental"
	KeyScanInterval = "scan.interval_minutes"
	KeyDupeMinTags  = "dupes.min_shared_tags"
	KeyDupeLimit    = "dupes.limit"
)

// Store is the persisted-preference collaborator: a small sqlite key/value
// table with typed reads and defined fallback values.
type Store struct {
	sql  *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{sql: db, path: path}, nil
}

func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) get(key string) (string, bool) {
	var v string
	err := s.sql.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return "", false
	}
	return v, true
}

// GetString returns the stored value or def when absent.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.get(key); ok {
		return v
	}
	return def
}

func (s *Store) GetInt(key string, def int) int {
	if v, ok := s.get(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (s *Store) GetBool(key string, def bool) bool {
	if v, ok := s.get(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Set writes through immediately; values stringify via fmt.
func (s *Store) Set(key string, value any) error {
	_, err := s.sql.Exec(`INSERT INTO prefs(key, value, updated_at) VALUES(?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, fmt.Sprint(value), time.Now().Unix())
	return err
}
