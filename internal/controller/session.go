package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jolivier22/stlmanager/internal/cache"
	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/dupes"
	"github.com/jolivier22/stlmanager/internal/gateway"
	"github.com/jolivier22/stlmanager/internal/logging"
	"github.com/jolivier22/stlmanager/internal/prefs"
	"github.com/jolivier22/stlmanager/internal/suggest"
)

const suggestLimit = 12

// Hooks are the UI-facing delivery callbacks. All of them may be invoked
// from background goroutines; the UI is expected to funnel them back onto
// its own loop.
type Hooks struct {
	SearchSuggest  func(suggest.Result)
	TagSuggest     func(suggest.Result)
	ExcludeSuggest func(suggest.Result)
	Dupes          func(dupes.State)
	ScanDue        func()
}

// Session wires the synchronization layer together and owns its lifetime:
// the gateway, the cache, the query controller, both suggestion boxes, the
// duplicate-feed coordinator and the recurring-scan scheduler all start with
// NewSession and stop with Close.
type Session struct {
	Config     *config.Config
	Log        *logging.Logger
	Gateway    *gateway.Client
	Cache      *cache.Store
	Prefs      *prefs.Store
	Controller *Controller
	Search     *suggest.Box
	Tags       *suggest.Box
	Exclude    *suggest.Box
	Dupes      *dupes.Coordinator
	Scanner    *Scheduler

	mu          sync.Mutex
	filterTags  []string
	appliedTags []string
	excludeTags []string
}

func NewSession(cfg *config.Config, log *logging.Logger, hooks Hooks) (*Session, error) {
	gw, err := gateway.New(cfg, log)
	if err != nil {
		return nil, err
	}
	store, err := prefs.Open(cfg.PrefsPath())
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}

	cs := cache.New()
	s := &Session{
		Config:     cfg,
		Log:        log,
		Gateway:    gw,
		Cache:      cs,
		Prefs:      store,
		Controller: New(cfg, store, cs, log),
	}

	lookup := func(ctx context.Context, substr string) ([]string, error) {
		tags, _, err := gw.SuggestTags(ctx, substr, suggestLimit)
		return tags, err
	}
	s.filterTags = append([]string(nil), s.Controller.Query().Tags...)
	s.Search = suggest.NewBox(lookup, suggest.Options{
		Applied: s.FilterTags,
		Deliver: hooks.SearchSuggest,
	})
	s.Tags = suggest.NewBox(lookup, suggest.Options{
		Applied: s.AppliedTags,
		Deliver: hooks.TagSuggest,
	})
	s.excludeTags = append([]string(nil), cfg.Dupes.Exclude...)
	s.Exclude = suggest.NewBox(lookup, suggest.Options{
		Applied: s.ExcludeTags,
		Deliver: hooks.ExcludeSuggest,
	})

	s.Dupes = dupes.New(dupes.GatewayFeed{Client: gw}, log, hooks.Dupes)

	if hooks.ScanDue != nil {
		s.Scanner = NewScheduler(hooks.ScanDue)
		if store.GetBool(prefs.KeyAutoScan, cfg.Scan.AutoIncremental) {
			mins := store.GetInt(prefs.KeyScanInterval, cfg.Scan.IntervalMinutes)
			s.Scanner.Start(time.Duration(mins) * time.Minute)
		}
	}
	return s, nil
}

// DuplicateParams assembles stream parameters from persisted preferences and
// the session's exclusion set.
func (s *Session) DuplicateParams() gateway.DuplicateParams {
	return gateway.DuplicateParams{
		MinSharedTags: s.Prefs.GetInt(prefs.KeyDupeMinTags, s.Config.Dupes.MinSharedTags),
		Limit:         s.Prefs.GetInt(prefs.KeyDupeLimit, s.Config.Dupes.Limit),
		Exclude:       s.ExcludeTags(),
	}
}

// ExcludeTags reports the tags currently excluded from duplicate matching.
func (s *Session) ExcludeTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.excludeTags...)
}

// AddExcludeTag extends the exclusion set; takes effect on the next analysis.
func (s *Session) AddExcludeTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.excludeTags {
		if t == tag {
			return
		}
	}
	s.excludeTags = append(s.excludeTags, tag)
}

// SetFilterTags publishes the catalog query's tag set for the search
// suggestion box. The box settles on its own timer goroutine and must never
// touch the controller directly; callers publish after every query change.
func (s *Session) SetFilterTags(tags []string) {
	s.mu.Lock()
	s.filterTags = append([]string(nil), tags...)
	s.mu.Unlock()
}

func (s *Session) FilterTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.filterTags...)
}

// SetAppliedTags publishes the tag set of the project currently open in the
// detail view; the detail suggestion box excludes these at settle time.
func (s *Session) SetAppliedTags(tags []string) {
	s.mu.Lock()
	s.appliedTags = append([]string(nil), tags...)
	s.mu.Unlock()
}

func (s *Session) AppliedTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.appliedTags...)
}

// SetAutoScan flips the recurring incremental reindex and persists the choice.
func (s *Session) SetAutoScan(enabled bool, interval time.Duration) {
	if err := s.Prefs.Set(prefs.KeyAutoScan, enabled); err != nil {
		s.Log.Warnf("persist %s: %v", prefs.KeyAutoScan, err)
	}
	if s.Scanner == nil {
		return
	}
	if enabled {
		s.Scanner.Start(interval)
	} else {
		s.Scanner.Stop()
	}
}

func (s *Session) Close() {
	if s.Scanner != nil {
		s.Scanner.Stop()
	}
	s.Dupes.Stop()
	s.Search.Close()
	s.Tags.Close()
	s.Exclude.Close()
	if err := s.Prefs.Close(); err != nil {
		s.Log.Warnf("close preference store: %v", err)
	}
}
