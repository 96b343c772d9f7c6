package controller

import (
	"io"
	"testing"

	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/logging"
)

func setupSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.General.DataRoot = t.TempDir()
	log := logging.NewWriter("error", false, io.Discard)
	s, err := NewSession(cfg, log, Hooks{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// The suggestion boxes settle on their own timer goroutines and read the
// applied-tag sets there; those reads must go through the session snapshots,
// never the controller, which only the program loop may touch.
func TestSessionFilterTagsReadableOffLoop(t *testing.T) {
	s := setupSession(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			s.Controller.SetTerm("dragon")
			s.Controller.AddTag("fantasy")
			s.SetFilterTags(s.Controller.Query().Tags)
			s.Controller.RemoveTag("fantasy")
			s.SetFilterTags(s.Controller.Query().Tags)
		}
	}()
	for i := 0; i < 500; i++ {
		_ = s.FilterTags()
		_ = s.AppliedTags()
		_ = s.ExcludeTags()
	}
	<-done
}

func TestSessionFilterTagsSeededFromQuery(t *testing.T) {
	s := setupSession(t)
	if got := s.FilterTags(); len(got) != 0 {
		t.Fatalf("fresh session filter tags = %v, want none", got)
	}
	s.SetFilterTags([]string{"fantasy", "boss"})
	got := s.FilterTags()
	if len(got) != 2 || got[0] != "fantasy" || got[1] != "boss" {
		t.Fatalf("filter tags = %v", got)
	}
	got[0] = "mutated"
	if s.FilterTags()[0] != "fantasy" {
		t.Fatal("FilterTags must return a copy")
	}
}
