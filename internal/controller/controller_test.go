package controller

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jolivier22/stlmanager/internal/cache"
	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/logging"
	"github.com/jolivier22/stlmanager/internal/prefs"
)

func setupController(t *testing.T) (*Controller, *cache.Store, *prefs.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.General.DataRoot = t.TempDir()
	store, err := prefs.Open(cfg.PrefsPath())
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cs := cache.New()
	log := logging.NewWriter("error", false, io.Discard)
	return New(cfg, store, cs, log), cs, store
}

func pageFor(job *Job, n, total int) catalog.Page {
	items := make([]catalog.FolderRecord, n)
	for i := range items {
		items[i] = catalog.FolderRecord{Name: "p", Path: "/col/p"}
	}
	return catalog.Page{Items: items, Total: total, Query: job.Query}
}

func TestFlushCoalescesSameTickChanges(t *testing.T) {
	c, _, _ := setupController(t)

	c.SetTerm("dragon")
	c.AddTag("fantasy")
	c.SetSort(catalog.SortRating, catalog.Desc)

	job := c.Flush()
	if job == nil {
		t.Fatal("expected a job after changes")
	}
	q := job.Query
	if q.Term != "dragon" || len(q.Tags) != 1 || q.Sort != catalog.SortRating {
		t.Fatalf("job query missing batched changes: %+v", q)
	}
	if q.Page != 1 {
		t.Fatalf("filter change should reset to page 1, got %d", q.Page)
	}
	if c.ViewState() != Loading {
		t.Fatalf("state = %v, want Loading", c.ViewState())
	}
	if second := c.Flush(); second != nil {
		t.Fatal("second flush without changes should be nil")
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	c, cs, _ := setupController(t)

	c.SetTerm("a")
	first := c.Flush()
	c.SetTerm("ab")
	second := c.Flush()

	if job := c.ApplyResult(first.Token, pageFor(first, 3, 3), nil); job != nil {
		t.Fatal("stale result must not issue a job")
	}
	if c.ViewState() != Loading {
		t.Fatalf("stale result changed state to %v", c.ViewState())
	}
	if cs.Page().Items != nil {
		t.Fatal("stale result reached the cache")
	}

	c.ApplyResult(second.Token, pageFor(second, 2, 2), nil)
	if c.ViewState() != Loaded || c.Total() != 2 {
		t.Fatalf("fresh result not applied: state=%v total=%d", c.ViewState(), c.Total())
	}
	if got := len(cs.Page().Items); got != 2 {
		t.Fatalf("cache has %d items, want 2", got)
	}
}

func TestPageClampIssuesExactlyOneCorrection(t *testing.T) {
	c, _, _ := setupController(t)

	c.SetTerm("x")
	job := c.Flush()
	c.ApplyResult(job.Token, pageFor(job, 24, 45), nil)
	if c.TotalPages() != 2 {
		t.Fatalf("TotalPages = %d, want 2", c.TotalPages())
	}

	c.SetPage(2)
	job = c.Flush()

	// The result set shrank to 20 while we were on page 2.
	corrective := c.ApplyResult(job.Token, pageFor(job, 0, 20), nil)
	if corrective == nil {
		t.Fatal("out-of-range page must trigger a corrective query")
	}
	if corrective.Query.Page != 1 {
		t.Fatalf("corrective page = %d, want 1", corrective.Query.Page)
	}

	// The correction's own response never re-derives another correction.
	if again := c.ApplyResult(corrective.Token, pageFor(corrective, 0, 0), nil); again != nil {
		t.Fatal("corrective response issued a second correction")
	}
	if c.ViewState() != Loaded || c.Query().Page != 1 {
		t.Fatalf("after correction: state=%v page=%d", c.ViewState(), c.Query().Page)
	}
}

func TestResultFromSupersededQueryStaysOutOfCache(t *testing.T) {
	c, cs, _ := setupController(t)
	c.Resume()
	job := c.Flush()

	// Query changed after the request went out; the token is still current
	// but the page belongs to the old query.
	c.AddTag("fantasy")
	if corr := c.ApplyResult(job.Token, pageFor(job, 5, 5), nil); corr != nil {
		t.Fatal("superseded result must not issue a job")
	}
	if got := cs.Page().Items; got != nil {
		t.Fatalf("superseded page reached the cache: %d items", len(got))
	}
}

func TestFailurePresentsEmptyResult(t *testing.T) {
	c, cs, _ := setupController(t)

	c.SetTerm("x")
	job := c.Flush()
	c.ApplyResult(job.Token, catalog.Page{}, io.ErrUnexpectedEOF)

	if c.ViewState() != Errored {
		t.Fatalf("state = %v, want Errored", c.ViewState())
	}
	if c.Total() != 0 || c.TotalPages() != 1 {
		t.Fatalf("errored totals: total=%d pages=%d", c.Total(), c.TotalPages())
	}
	if len(cs.Page().Items) != 0 {
		t.Fatal("errored view should cache an empty page")
	}

	// Any state change retries naturally.
	c.SetTerm("y")
	if c.Flush() == nil {
		t.Fatal("change after failure should issue a job")
	}
}

func TestSuspendAndResume(t *testing.T) {
	c, _, _ := setupController(t)

	c.Suspend()
	c.SetTerm("dragon")
	if c.Flush() != nil {
		t.Fatal("suspended view must not query")
	}

	c.Resume()
	flushed := c.Flush()
	if flushed == nil {
		t.Fatal("resume must re-query")
	}
	if flushed.Query.Term != "dragon" {
		t.Fatalf("resume lost accumulated change, term=%q", flushed.Query.Term)
	}
}

func TestPreferencesReadOnceAndWrittenThrough(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.General.DataRoot = dir

	seed, err := prefs.Open(cfg.PrefsPath())
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	if err := seed.Set(prefs.KeySort, "rating"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seed.Close()

	store, err := prefs.Open(cfg.PrefsPath())
	if err != nil {
		t.Fatalf("reopen prefs: %v", err)
	}
	defer store.Close()
	log := logging.NewWriter("error", false, io.Discard)
	c := New(cfg, store, cache.New(), log)

	if c.Query().Sort != catalog.SortRating {
		t.Fatalf("persisted sort not restored, got %q", c.Query().Sort)
	}

	c.SetSort(catalog.SortName, catalog.Asc)
	if got := store.GetString(prefs.KeySort, ""); got != "name" {
		t.Fatalf("sort not written through, got %q", got)
	}

	c.SetPageSize(7) // not in the allowed set
	if c.Query().PageSize != cfg.Catalog.DefaultPageSize {
		t.Fatalf("disallowed page size applied: %d", c.Query().PageSize)
	}
	c.SetPageSize(48)
	if got := store.GetInt(prefs.KeyPageSize, 0); got != 48 {
		t.Fatalf("page size not written through, got %d", got)
	}
}

func TestDetailStaleTokenDiscarded(t *testing.T) {
	c, cs, _ := setupController(t)

	old := c.OpenDetail("/col/alpha")
	cur := c.OpenDetail("/col/beta")

	stale := &catalog.FolderDetail{FolderRecord: catalog.FolderRecord{Path: "/col/alpha"}}
	if c.ApplyDetail(old, stale, nil) {
		t.Fatal("stale detail accepted")
	}
	if cs.Detail() != nil {
		t.Fatal("stale detail reached the cache")
	}

	fresh := &catalog.FolderDetail{FolderRecord: catalog.FolderRecord{Path: "/col/beta"}}
	if !c.ApplyDetail(cur, fresh, nil) {
		t.Fatal("fresh detail rejected")
	}
	if cs.Detail() == nil || cs.Detail().Path != "/col/beta" {
		t.Fatal("fresh detail not cached")
	}

	next := c.OpenDetail("/col/gamma")
	c.CloseDetail()
	if c.ApplyDetail(next, fresh, nil) {
		t.Fatal("detail accepted after CloseDetail")
	}
}

func TestSchedulerEnforcesIntervalFloor(t *testing.T) {
	var fired atomic.Int32
	s := NewScheduler(func() { fired.Add(1) })
	defer s.Stop()

	// A pathological interval is raised to the floor, so nothing fires soon.
	s.Start(time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("scheduler fired %d times inside the floor window", n)
	}
	if !s.Running() {
		t.Fatal("scheduler should report running")
	}
	s.Stop()
	if s.Running() {
		t.Fatal("scheduler still running after Stop")
	}
}
