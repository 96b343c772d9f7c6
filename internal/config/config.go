package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// MinScanIntervalMinutes is the floor for the automatic incremental reindex
// interval; anything lower would hammer the collection on every tick.
const MinScanIntervalMinutes = 5

// Config mirrors the YAML schema. All values should be supplied via YAML; we
// avoid hard-coded defaults outside Default().
type Config struct {
	Version int       `yaml:"version"`
	General General   `yaml:"general"`
	Server  Server    `yaml:"server"`
	Catalog Catalog   `yaml:"catalog"`
	Dupes   Dupes     `yaml:"dupes"`
	Scan    Scan      `yaml:"scan"`
	Logging Logging   `yaml:"logging"`
	UI      UIOptions `yaml:"ui"`
}

type General struct {
	DataRoot string `yaml:"data_root"` // prefs DB and other local state live here
}

type Server struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type Catalog struct {
	DefaultSort     string `yaml:"default_sort"`  // name|date|created|modified|rating
	DefaultOrder    string `yaml:"default_order"` // asc|desc
	DefaultPageSize int    `yaml:"default_page_size"`
	PageSizes       []int  `yaml:"page_sizes"`
}

type Dupes struct {
	MinSharedTags int      `yaml:"min_shared_tags"`
	Limit         int      `yaml:"limit"`
	Exclude       []string `yaml:"exclude"`
}

type Scan struct {
	AutoIncremental bool `yaml:"auto_incremental"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // human|json
}

type UIOptions struct {
	// RefreshHz controls the TUI refresh frequency (ticks per second). If 0,
	// defaults to 1. Values above 10 are clamped to 10.
	RefreshHz int `yaml:"refresh_hz"`
	// Compact hides the counts column in the catalog table for a denser view.
	Compact bool `yaml:"compact"`
}

// Default returns a config usable without a file, pointing at a local backend.
func Default() *Config {
	return &Config{
		Version: 1,
		General: General{DataRoot: "~/.stlman"},
		Server:  Server{BaseURL: "http://localhost:8091", TimeoutSeconds: 60},
		Catalog: Catalog{
			DefaultSort:     "name",
			DefaultOrder:    "asc",
			DefaultPageSize: 24,
			PageSizes:       []int{12, 24, 48, 96},
		},
		Dupes:   Dupes{MinSharedTags: 2, Limit: 100},
		Scan:    Scan{AutoIncremental: false, IntervalMinutes: 30},
		Logging: Logging{Level: "info", Format: "human"},
	}
}

// Load reads, parses, expands, and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	expanded, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	// Expand ${ENV} placeholders before unmarshalling. Absent sections keep
	// their defaults; only keys present in the file override.
	b = []byte(os.ExpandEnv(string(b)))
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if c.General.DataRoot, err = expandTilde(c.General.DataRoot); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Version, validation.Required, validation.In(1)),
		validation.Field(&c.General),
		validation.Field(&c.Server),
		validation.Field(&c.Catalog),
		validation.Field(&c.Dupes),
		validation.Field(&c.Scan),
		validation.Field(&c.Logging),
		validation.Field(&c.UI),
	)
	if err != nil {
		return err
	}
	if c.Catalog.DefaultPageSize != 0 && !containsInt(c.Catalog.PageSizes, c.Catalog.DefaultPageSize) {
		return fmt.Errorf("catalog.default_page_size %d not in catalog.page_sizes", c.Catalog.DefaultPageSize)
	}
	return nil
}

func (g General) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.DataRoot, validation.Required),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.BaseURL, validation.Required, is.URL),
		validation.Field(&s.TimeoutSeconds, validation.Min(0)),
	)
}

func (c Catalog) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultSort, validation.In("", "name", "date", "created", "modified", "rating")),
		validation.Field(&c.DefaultOrder, validation.In("", "asc", "desc")),
		validation.Field(&c.DefaultPageSize, validation.Min(0)),
		validation.Field(&c.PageSizes, validation.Each(validation.Min(1))),
	)
}

func (d Dupes) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.MinSharedTags, validation.Min(1)),
		validation.Field(&d.Limit, validation.Min(1)),
	)
}

func (s Scan) Validate() error {
	if s.AutoIncremental && s.IntervalMinutes < MinScanIntervalMinutes {
		return fmt.Errorf("scan.interval_minutes must be >= %d when auto_incremental is on", MinScanIntervalMinutes)
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.IntervalMinutes, validation.Min(0)),
	)
}

func (l Logging) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("", "debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("", "human", "json")),
	)
}

func (u UIOptions) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.RefreshHz, validation.Min(0)),
	)
}

// PrefsPath returns the location of the sqlite preference store.
func (c *Config) PrefsPath() string {
	return filepath.Join(c.General.DataRoot, "prefs.db")
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func expandTilde(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p[0] != '~' {
		return p, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return h, nil
	}
	return filepath.Join(h, p[2:]), nil
}
