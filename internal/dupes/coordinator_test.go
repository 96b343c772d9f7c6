package dupes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/gateway"
	"github.com/jolivier22/stlmanager/internal/logging"
)

type fakeStream struct {
	events chan gateway.StreamEvent
	open   bool // events channel still needs closing on Close
	closes int
	mu     sync.Mutex
}

func newFakeStream(events ...gateway.StreamEvent) *fakeStream {
	ch := make(chan gateway.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeStream{events: ch}
}

func newBlockingStream() *fakeStream {
	return &fakeStream{events: make(chan gateway.StreamEvent), open: true}
}

func (f *fakeStream) Events() <-chan gateway.StreamEvent { return f.events }

func (f *fakeStream) Close() {
	f.mu.Lock()
	f.closes++
	open := f.open
	f.open = false
	f.mu.Unlock()
	if open {
		close(f.events)
	}
}

func (f *fakeStream) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeFeed struct {
	mu            sync.Mutex
	streams       []*fakeStream
	streamErr     error
	opened        int
	fallbackCalls int
	fallbackPairs []catalog.DuplicatePair
	fallbackErr   error
}

func (f *fakeFeed) OpenDuplicateStream(ctx context.Context, p gateway.DuplicateParams) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	s := f.streams[f.opened]
	f.opened++
	return s, nil
}

func (f *fakeFeed) FindDuplicates(ctx context.Context, minTags, limit int, exclude []string) ([]catalog.DuplicatePair, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbackCalls++
	if f.fallbackErr != nil {
		return nil, 0, f.fallbackErr
	}
	return f.fallbackPairs, len(f.fallbackPairs), nil
}

func (f *fakeFeed) fallbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fallbackCalls
}

func (f *fakeFeed) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// watcher waits for the coordinator to reach a terminal phase.
type watcher struct {
	terminal chan State
}

func newWatcher() *watcher {
	return &watcher{terminal: make(chan State, 4)}
}

func (w *watcher) notify(s State) {
	switch s.Phase {
	case Done, Unavailable, Failed:
		w.terminal <- s
	}
}

func (w *watcher) wait(t *testing.T) State {
	t.Helper()
	select {
	case s := <-w.terminal:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for terminal state")
		return State{}
	}
}

func pair(a, b string) catalog.DuplicatePair {
	return catalog.DuplicatePair{
		A:     catalog.DuplicateSide{Name: a, Path: "/col/" + a},
		B:     catalog.DuplicateSide{Name: b, Path: "/col/" + b},
		Score: 0.8,
	}
}

func params() gateway.DuplicateParams {
	return gateway.DuplicateParams{MinSharedTags: 2, Limit: 100}
}

func TestCoordinator_EmptyTerminalTriggersOneFallback(t *testing.T) {
	feed := &fakeFeed{
		streams: []*fakeStream{newFakeStream(
			gateway.StreamEvent{Kind: gateway.EventProgress, Percent: 10, Phase: "scanning"},
			gateway.StreamEvent{Kind: gateway.EventProgress, Percent: 55, Phase: "scoring"},
			gateway.StreamEvent{Kind: gateway.EventDone},
		)},
		fallbackPairs: []catalog.DuplicatePair{pair("x", "y")},
	}
	w := newWatcher()
	c := New(feed, logging.New("error", false), w.notify)

	c.Start(context.Background(), params())
	s := w.wait(t)

	if s.Phase != Done || len(s.Pairs) != 1 {
		t.Fatalf("state = %+v", s)
	}
	if got := feed.fallbacks(); got != 1 {
		t.Fatalf("fallback calls = %d, want exactly 1", got)
	}
}

func TestCoordinator_PairsTerminalSkipsFallback(t *testing.T) {
	feed := &fakeFeed{
		streams: []*fakeStream{newFakeStream(
			gateway.StreamEvent{Kind: gateway.EventProgress, Percent: 40, Phase: "scanning"},
			gateway.StreamEvent{Kind: gateway.EventDone, Pairs: []catalog.DuplicatePair{pair("x", "y"), pair("u", "v")}, Total: 2},
		)},
	}
	w := newWatcher()
	c := New(feed, logging.New("error", false), w.notify)

	c.Start(context.Background(), params())
	s := w.wait(t)

	if s.Phase != Done || len(s.Pairs) != 2 || s.Total != 2 {
		t.Fatalf("state = %+v", s)
	}
	if got := feed.fallbacks(); got != 0 {
		t.Fatalf("fallback calls = %d, want 0", got)
	}
}

func TestCoordinator_StreamErrorFallsBack(t *testing.T) {
	feed := &fakeFeed{
		streams: []*fakeStream{newFakeStream(
			gateway.StreamEvent{Kind: gateway.EventError, Err: context.DeadlineExceeded},
		)},
		fallbackPairs: []catalog.DuplicatePair{pair("x", "y")},
	}
	w := newWatcher()
	c := New(feed, logging.New("error", false), w.notify)

	c.Start(context.Background(), params())
	s := w.wait(t)

	if s.Phase != Done || len(s.Pairs) != 1 {
		t.Fatalf("state = %+v", s)
	}
	if got := feed.fallbacks(); got != 1 {
		t.Fatalf("fallback calls = %d", got)
	}
}

func TestCoordinator_UnsupportedServerIsUnavailable(t *testing.T) {
	feed := &fakeFeed{
		streamErr:   &gateway.StatusError{Code: 404},
		fallbackErr: &gateway.StatusError{Code: 404},
	}
	w := newWatcher()
	c := New(feed, logging.New("error", false), w.notify)

	c.Start(context.Background(), params())
	s := w.wait(t)

	if s.Phase != Unavailable {
		t.Fatalf("phase = %v, want Unavailable", s.Phase)
	}
}

func TestCoordinator_FallbackTransportFailureIsFailed(t *testing.T) {
	feed := &fakeFeed{
		streamErr:   &gateway.StatusError{Code: 404},
		fallbackErr: context.DeadlineExceeded,
	}
	w := newWatcher()
	c := New(feed, logging.New("error", false), w.notify)

	c.Start(context.Background(), params())
	s := w.wait(t)

	if s.Phase != Failed || s.Err == nil {
		t.Fatalf("state = %+v", s)
	}
}

func TestCoordinator_RestartTearsDownPriorStream(t *testing.T) {
	// first stream never terminates on its own
	blocking := newBlockingStream()
	second := newFakeStream(
		gateway.StreamEvent{Kind: gateway.EventDone, Pairs: []catalog.DuplicatePair{pair("x", "y")}, Total: 1},
	)
	feed := &fakeFeed{streams: []*fakeStream{blocking, second}}
	w := newWatcher()
	c := New(feed, logging.New("error", false), w.notify)

	c.Start(context.Background(), params())
	// wait until the first subscription is registered
	deadline := time.Now().Add(time.Second)
	for {
		if c.State().Phase == Streaming && feed.openCount() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first stream never opened")
		}
		time.Sleep(time.Millisecond)
	}

	c.Start(context.Background(), params())
	s := w.wait(t)

	if s.Phase != Done || s.Total != 1 {
		t.Fatalf("state = %+v", s)
	}
	if got := blocking.closeCount(); got == 0 {
		t.Fatal("prior subscription not closed on restart")
	}
}

func TestCoordinator_ProgressClamped(t *testing.T) {
	var mu sync.Mutex
	var percents []float64
	feed := &fakeFeed{
		streams: []*fakeStream{newFakeStream(
			gateway.StreamEvent{Kind: gateway.EventProgress, Percent: -5, Phase: "warmup"},
			gateway.StreamEvent{Kind: gateway.EventProgress, Percent: 140, Phase: "scoring"},
			gateway.StreamEvent{Kind: gateway.EventDone, Pairs: []catalog.DuplicatePair{pair("x", "y")}, Total: 1},
		)},
	}
	w := newWatcher()
	c := New(feed, logging.New("error", false), func(s State) {
		mu.Lock()
		if s.Phase == Streaming {
			percents = append(percents, s.Percent)
		}
		mu.Unlock()
		w.notify(s)
	})

	c.Start(context.Background(), params())
	w.wait(t)

	mu.Lock()
	defer mu.Unlock()
	for _, p := range percents {
		if p < 0 || p > 100 {
			t.Fatalf("unclamped percent %v", p)
		}
	}
}
