package prefs

import (
	"path/filepath"
	"testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestStore_FallbackDefaults(t *testing.T) {
	s := setupStore(t)

	if got := s.GetString(KeySort, "name"); got != "name" {
		t.Errorf("GetString default = %q", got)
	}
	if got := s.GetInt(KeyPageSize, 24); got != 24 {
		t.Errorf("GetInt default = %d", got)
	}
	if got := s.GetBool(KeyAutoScan, false); got {
		t.Errorf("GetBool default = %v", got)
	}
}

func TestStore_WriteThrough(t *testing.T) {
	s := setupStore(t)

	if err := s.Set(KeySort, "rating"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyPageSize, 48); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyAutoScan, true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := s.GetString(KeySort, "name"); got != "rating" {
		t.Errorf("sort = %q", got)
	}
	if got := s.GetInt(KeyPageSize, 24); got != 48 {
		t.Errorf("page size = %d", got)
	}
	if !s.GetBool(KeyAutoScan, false) {
		t.Error("auto scan not persisted")
	}

	// overwrite
	if err := s.Set(KeySort, "modified"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.GetString(KeySort, "name"); got != "modified" {
		t.Errorf("sort after overwrite = %q", got)
	}
}

func TestStore_MalformedValueFallsBack(t *testing.T) {
	s := setupStore(t)
	if err := s.Set(KeyPageSize, "lots"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.GetInt(KeyPageSize, 24); got != 24 {
		t.Errorf("malformed int = %d, want fallback 24", got)
	}
}
