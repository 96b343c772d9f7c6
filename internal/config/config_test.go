package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
general:
  data_root: /tmp/stlman-test
server:
  base_url: http://localhost:8091
  timeout_seconds: 30
catalog:
  default_sort: rating
  default_order: desc
  default_page_size: 48
  page_sizes: [12, 24, 48]
dupes:
  min_shared_tags: 3
  limit: 50
scan:
  auto_incremental: true
  interval_minutes: 15
logging:
  level: debug
  format: json
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Catalog.DefaultSort != "rating" || c.Catalog.DefaultPageSize != 48 {
		t.Fatalf("catalog section not applied: %+v", c.Catalog)
	}
	if !c.Scan.AutoIncremental || c.Scan.IntervalMinutes != 15 {
		t.Fatalf("scan section not applied: %+v", c.Scan)
	}
}

func TestDefaultValidates(t *testing.T) {
	c := Default()
	c.General.DataRoot = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestPageSizeMustBeOffered(t *testing.T) {
	path := writeConfig(t, `
version: 1
general:
  data_root: /tmp/stlman-test
server:
  base_url: http://localhost:8091
catalog:
  default_sort: name
  default_order: asc
  default_page_size: 33
  page_sizes: [12, 24, 48]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("default_page_size outside page_sizes should fail validation")
	}
}

func TestBadSortRejected(t *testing.T) {
	path := writeConfig(t, `
version: 1
general:
  data_root: /tmp/stlman-test
server:
  base_url: http://localhost:8091
catalog:
  default_sort: shininess
  default_order: asc
  default_page_size: 24
  page_sizes: [24]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown sort key should fail validation")
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("STLMAN_TEST_URL", "http://catalog.example:9000")
	path := writeConfig(t, `
version: 1
general:
  data_root: /tmp/stlman-test
server:
  base_url: ${STLMAN_TEST_URL}
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Server.BaseURL != "http://catalog.example:9000" {
		t.Fatalf("env not expanded: %q", c.Server.BaseURL)
	}
}

func TestPrefsPathUnderDataRoot(t *testing.T) {
	c := Default()
	c.General.DataRoot = "/data/stl"
	if got := c.PrefsPath(); got != filepath.Join("/data/stl", "prefs.db") {
		t.Fatalf("PrefsPath = %q", got)
	}
}
