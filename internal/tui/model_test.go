package tui

import (
	"io"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/logging"
)

func setupModel(t *testing.T) *Model {
	t.Helper()
	cfg := config.Default()
	cfg.General.DataRoot = t.TempDir()
	log := logging.NewWriter("error", false, io.Discard)
	m, err := New(cfg, log, &Relay{})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	t.Cleanup(func() { m.Session().Close() })
	return m
}

func TestRelayDropsBeforeBind(t *testing.T) {
	r := &Relay{}
	r.Send(tickMsg(time.Now())) // must not panic

	var got tea.Msg
	r.Bind(func(msg tea.Msg) { got = msg })
	r.Send(scanDueMsg{})
	if _, ok := got.(scanDueMsg); !ok {
		t.Fatalf("bound relay did not deliver, got %T", got)
	}
}

func TestSwitchTabSuspendsCatalog(t *testing.T) {
	m := setupModel(t)
	ctl := m.Session().Controller

	if cmd := m.switchTab(tabSettings); cmd != nil {
		t.Fatal("settings tab should not issue a command")
	}
	ctl.SetTerm("dragon")
	if ctl.Flush() != nil {
		t.Fatal("suspended catalog issued a query")
	}

	if cmd := m.switchTab(tabCatalog); cmd == nil {
		t.Fatal("returning to catalog must re-query")
	}
}

func TestNextSortCyclesThroughAllKeys(t *testing.T) {
	seen := map[catalog.SortKey]bool{}
	k := catalog.SortName
	for i := 0; i < 5; i++ {
		seen[k] = true
		k = nextSortKey(k)
	}
	if len(seen) != 5 || k != catalog.SortName {
		t.Fatalf("sort cycle broken: %v (back to %q)", seen, k)
	}
}

func TestNextPrintFilterCycles(t *testing.T) {
	f := catalog.PrintAll
	for i := 0; i < 4; i++ {
		f = nextPrintFilter(f)
	}
	if f != catalog.PrintAll {
		t.Fatalf("print filter cycle did not return to all, got %q", f)
	}
}

func TestNextPageSizeWrapsAndRecovers(t *testing.T) {
	sizes := []int{12, 24, 48}
	if got := nextPageSize(sizes, 48); got != 12 {
		t.Fatalf("wrap: got %d, want 12", got)
	}
	if got := nextPageSize(sizes, 99); got != 12 {
		t.Fatalf("unknown current: got %d, want 12", got)
	}
}

func TestToastsExpire(t *testing.T) {
	m := setupModel(t)
	m.toasts = append(m.toasts, toast{msg: "old", when: time.Now().Add(-time.Minute), ttl: 5 * time.Second})
	m.addToast("fresh")
	if len(m.toasts) != 1 || m.toasts[0].msg != "fresh" {
		t.Fatalf("toast gc kept %v", m.toasts)
	}
}

func TestMediaFilesDisplayOrder(t *testing.T) {
	d := &catalog.FolderDetail{Media: catalog.Media{
		Images: []string{"a.jpg"},
		Stls:   []string{"m.stl"},
		Others: []string{"notes.txt"},
	}}
	got := mediaFiles(d)
	want := []string{"a.jpg", "m.stl", "notes.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
}

func TestRatingStars(t *testing.T) {
	if got := ratingStars(nil); got != "-" {
		t.Fatalf("nil rating: %q", got)
	}
	three := 3
	if got := ratingStars(&three); got != "★★★··" {
		t.Fatalf("3 stars: %q", got)
	}
}

func TestClipKeepsRuneBoundaries(t *testing.T) {
	if got := clip("mörkö-dragon-tower", 6); got != "mörkö…" {
		t.Fatalf("clip = %q", got)
	}
	if !utf8.ValidString(clip("日本語の竜の模型", 4)) {
		t.Fatal("clip split a rune")
	}
	if got := clip("short", 32); got != "short" {
		t.Fatalf("clip lengthened %q", got)
	}
}

func TestScanDoneRefreshesOnlyVisibleCatalog(t *testing.T) {
	m := setupModel(t)
	done := scanDoneMsg{summary: &catalog.ReindexSummary{Added: 1}}

	m.switchTab(tabSettings)
	if _, cmd := m.Update(done); cmd != nil {
		t.Fatal("background scan queried the catalog for a hidden view")
	}

	m.switchTab(tabCatalog)
	if _, cmd := m.Update(done); cmd == nil {
		t.Fatal("scan on the visible catalog must re-query")
	}
}
