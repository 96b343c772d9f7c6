package suggest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultQuietPeriod is how long the input must sit still before a lookup
// fires.
const DefaultQuietPeriod = 150 * time.Millisecond

// Lookup queries the tag catalog for candidates matching the input.
type Lookup func(ctx context.Context, input string) ([]string, error)

// Result is one settled suggestion lookup. An empty Input means "cleared".
type Result struct {
	Input      string
	Candidates []string
	Err        error
}

// Options configure a Box.
type Options struct {
	// Quiet overrides DefaultQuietPeriod; mainly for tests.
	Quiet time.Duration
	// Applied returns the tags already applied in this context. It is
	// consulted when a lookup settles, not when it is issued, so the
	// exclusion always reflects the latest applied set.
	Applied func() []string
	// Deliver receives settled results. Called from a timer goroutine.
	Deliver func(Result)
}

// Box is a race-safe debounced lookup for one autocompletion context
// (filter-tag entry, detail-tag entry, exclusion-tag entry each own one).
// Every input change supersedes the previous lookup: its in-flight request
// is cancelled and its response, should it still arrive, is discarded by
// generation comparison.
type Box struct {
	mu     sync.Mutex
	lookup Lookup
	opts   Options
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

func NewBox(lookup Lookup, opts Options) *Box {
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuietPeriod
	}
	if opts.Applied == nil {
		opts.Applied = func() []string { return nil }
	}
	if opts.Deliver == nil {
		opts.Deliver = func(Result) {}
	}
	return &Box{lookup: lookup, opts: opts}
}

// SetInput registers the latest input. Empty input clears suggestions
// immediately with no network call; anything else fires one lookup after the
// quiet period, superseding whatever was pending.
func (b *Box) SetInput(input string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.gen++
	gen := b.gen
	b.stopPendingLocked()

	if input == "" {
		b.mu.Unlock()
		b.opts.Deliver(Result{Input: ""})
		return
	}

	b.timer = time.AfterFunc(b.opts.Quiet, func() { b.fire(gen, input) })
	b.mu.Unlock()
}

func (b *Box) fire(gen uint64, input string) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	candidates, err := b.lookup(ctx, input)

	b.mu.Lock()
	if b.closed || gen != b.gen {
		// superseded while in flight: discard on arrival
		b.mu.Unlock()
		return
	}
	b.cancel = nil
	b.mu.Unlock()

	if err == nil {
		candidates = exclude(candidates, b.opts.Applied())
		candidates = rank(input, candidates)
	}
	b.opts.Deliver(Result{Input: input, Candidates: candidates, Err: err})
}

// Close tears the box down; no further deliveries happen.
func (b *Box) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.gen++
	b.stopPendingLocked()
}

func (b *Box) stopPendingLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// exclude drops candidates already applied in this context.
func exclude(candidates, applied []string) []string {
	if len(applied) == 0 {
		return candidates
	}
	have := make(map[string]struct{}, len(applied))
	for _, t := range applied {
		have[t] = struct{}{}
	}
	var out []string
	for _, c := range candidates {
		if _, ok := have[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// rank orders candidates by fuzzy closeness to the input; candidates the
// matcher rejects outright keep their server order at the end.
func rank(input string, candidates []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(input, candidates)
	sort.Sort(ranks)
	matched := make(map[string]struct{}, len(ranks))
	out := make([]string, 0, len(candidates))
	for _, r := range ranks {
		if _, ok := matched[r.Target]; ok {
			continue
		}
		matched[r.Target] = struct{}{}
		out = append(out, r.Target)
	}
	for _, c := range candidates {
		if _, ok := matched[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
