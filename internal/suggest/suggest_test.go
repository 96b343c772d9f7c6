package suggest

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recorder collects delivered results and signals each arrival.
type recorder struct {
	mu      sync.Mutex
	results []Result
	arrived chan struct{}
}

func newRecorder() *recorder {
	return &recorder{arrived: make(chan struct{}, 16)}
}

func (r *recorder) deliver(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.arrived <- struct{}{}
}

func (r *recorder) wait(t *testing.T) Result {
	t.Helper()
	select {
	case <-r.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for delivery")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[len(r.results)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func TestBox_DebouncesToSettledInput(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	rec := newRecorder()

	b := NewBox(func(ctx context.Context, input string) ([]string, error) {
		mu.Lock()
		calls = append(calls, input)
		mu.Unlock()
		return []string{input + "-tag"}, nil
	}, Options{Quiet: 20 * time.Millisecond, Deliver: rec.deliver})
	defer b.Close()

	b.SetInput("d")
	b.SetInput("dr")
	b.SetInput("dragon")

	res := rec.wait(t)
	if res.Input != "dragon" {
		t.Fatalf("settled input = %q", res.Input)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != "dragon" {
		t.Fatalf("lookups = %v, want exactly one for the settled input", calls)
	}
}

func TestBox_EmptyInputClearsWithoutLookup(t *testing.T) {
	rec := newRecorder()
	called := false
	b := NewBox(func(ctx context.Context, input string) ([]string, error) {
		called = true
		return nil, nil
	}, Options{Quiet: 5 * time.Millisecond, Deliver: rec.deliver})
	defer b.Close()

	b.SetInput("")
	res := rec.wait(t)
	if res.Input != "" || res.Candidates != nil {
		t.Fatalf("clear result = %+v", res)
	}
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Fatal("lookup fired for empty input")
	}
}

func TestBox_StaleResponseDiscarded(t *testing.T) {
	// "a" is issued first but resolves after "ab"; its response must not
	// overwrite "ab"'s result.
	release := map[string]chan struct{}{
		"a":  make(chan struct{}),
		"ab": make(chan struct{}),
	}
	started := make(chan string, 2)
	rec := newRecorder()

	b := NewBox(func(ctx context.Context, input string) ([]string, error) {
		started <- input
		<-release[input]
		return []string{"answer for " + input}, nil
	}, Options{Quiet: time.Millisecond, Deliver: rec.deliver})
	defer b.Close()

	b.SetInput("a")
	if got := <-started; got != "a" {
		t.Fatalf("first lookup = %q", got)
	}
	b.SetInput("ab")
	if got := <-started; got != "ab" {
		t.Fatalf("second lookup = %q", got)
	}

	close(release["ab"])
	res := rec.wait(t)
	if res.Input != "ab" || len(res.Candidates) != 1 || res.Candidates[0] != "answer for ab" {
		t.Fatalf("result = %+v", res)
	}

	close(release["a"])
	time.Sleep(50 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Fatalf("deliveries = %d, stale response was applied", n)
	}
}

func TestBox_ExcludesAppliedAtSettleTime(t *testing.T) {
	var mu sync.Mutex
	applied := []string{}
	rec := newRecorder()
	inLookup := make(chan struct{})
	release := make(chan struct{})

	b := NewBox(func(ctx context.Context, input string) ([]string, error) {
		close(inLookup)
		<-release
		return []string{"fantasy", "fauna", "fae"}, nil
	}, Options{
		Quiet: time.Millisecond,
		Applied: func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), applied...)
		},
		Deliver: rec.deliver,
	})
	defer b.Close()

	b.SetInput("fa")
	<-inLookup
	// the user applies a tag while the lookup is in flight
	mu.Lock()
	applied = []string{"fantasy"}
	mu.Unlock()
	close(release)

	res := rec.wait(t)
	for _, c := range res.Candidates {
		if c == "fantasy" {
			t.Fatalf("already-applied tag suggested: %v", res.Candidates)
		}
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %v", res.Candidates)
	}
}

func TestBox_CloseStopsDeliveries(t *testing.T) {
	rec := newRecorder()
	b := NewBox(func(ctx context.Context, input string) ([]string, error) {
		return []string{"x"}, nil
	}, Options{Quiet: 10 * time.Millisecond, Deliver: rec.deliver})

	b.SetInput("x")
	b.Close()
	time.Sleep(40 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Fatalf("deliveries after Close = %d", n)
	}
}

func TestRank_PrefersCloserMatches(t *testing.T) {
	out := rank("drag", []string{"warhammer", "dragon", "dragoon"})
	if len(out) != 3 {
		t.Fatalf("rank dropped candidates: %v", out)
	}
	if out[0] != "dragon" {
		t.Fatalf("best match = %q, want dragon (got order %v)", out[0], out)
	}
}
