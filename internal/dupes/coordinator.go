package dupes

import (
	"context"
	"sync"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/gateway"
	"github.com/jolivier22/stlmanager/internal/logging"
)

// Phase is the coordinator's lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Streaming
	Done
	// Unavailable means the stream and the single-shot fallback are both
	// absent on this server; distinct from Done with zero pairs so the UI
	// can tell "no duplicates" from "feature unsupported".
	Unavailable
	Failed
)

func (p Phase) String() string {
	switch p {
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a snapshot of the duplicate-detection session.
type State struct {
	Phase      Phase
	Percent    float64 // clamped 0..100
	PhaseLabel string
	Pairs      []catalog.DuplicatePair
	Total      int
	Err        error
}

// Subscription is a live duplicate stream as the coordinator consumes it.
type Subscription interface {
	Events() <-chan gateway.StreamEvent
	Close()
}

// Feed abstracts the two gateway paths to duplicate data.
type Feed interface {
	OpenDuplicateStream(ctx context.Context, p gateway.DuplicateParams) (Subscription, error)
	FindDuplicates(ctx context.Context, minTags, limit int, exclude []string) ([]catalog.DuplicatePair, int, error)
}

// GatewayFeed adapts *gateway.Client to Feed.
type GatewayFeed struct {
	Client *gateway.Client
}

func (g GatewayFeed) OpenDuplicateStream(ctx context.Context, p gateway.DuplicateParams) (Subscription, error) {
	return g.Client.OpenDuplicateStream(ctx, p)
}

func (g GatewayFeed) FindDuplicates(ctx context.Context, minTags, limit int, exclude []string) ([]catalog.DuplicatePair, int, error) {
	return g.Client.FindDuplicates(ctx, minTags, limit, exclude)
}

// Coordinator manages the streaming duplicate-scan session: progress events,
// the terminal result, and the single-shot fallback taken on stream failure
// or an empty terminal result. At most one subscription is live; starting a
// new session tears the previous one down first.
type Coordinator struct {
	feed   Feed
	log    *logging.Logger
	notify func(State)

	mu      sync.Mutex
	session uint64
	stream  Subscription
	state   State
}

func New(feed Feed, log *logging.Logger, notify func(State)) *Coordinator {
	if notify == nil {
		notify = func(State) {}
	}
	return &Coordinator{feed: feed, log: log, notify: notify}
}

// State returns the latest snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens a new scan session with the given tunables, tearing down any
// prior subscription first. Called on view entry and whenever the threshold
// or cap changes.
func (c *Coordinator) Start(ctx context.Context, p gateway.DuplicateParams) {
	c.mu.Lock()
	c.session++
	session := c.session
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	c.state = State{Phase: Streaming, PhaseLabel: "starting"}
	c.mu.Unlock()
	c.notify(c.State())

	go c.run(ctx, session, p)
}

// Stop tears down the live subscription; the session ends in Idle.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.session++
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	c.state = State{Phase: Idle}
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, session uint64, p gateway.DuplicateParams) {
	sub, err := c.feed.OpenDuplicateStream(ctx, p)
	if err != nil {
		c.log.Debugf("duplicate stream unavailable, falling back: %v", err)
		c.fallback(ctx, session, p)
		return
	}

	c.mu.Lock()
	if session != c.session {
		c.mu.Unlock()
		sub.Close()
		return
	}
	c.stream = sub
	c.mu.Unlock()

	for ev := range sub.Events() {
		switch ev.Kind {
		case gateway.EventProgress:
			if !c.update(session, func(s *State) {
				s.Percent = clampPercent(ev.Percent)
				s.PhaseLabel = ev.Phase
			}) {
				return
			}
		case gateway.EventDebug:
			c.log.Debugf("duplicate scan: %s", ev.Message)
		case gateway.EventDone:
			if len(ev.Pairs) == 0 {
				// partial streaming implementations end with an empty
				// terminal event; one single-shot fetch covers them
				c.fallback(ctx, session, p)
				return
			}
			c.finish(session, State{Phase: Done, Percent: 100, Pairs: ev.Pairs, Total: ev.Total})
			return
		case gateway.EventError:
			c.log.Debugf("duplicate stream failed, falling back: %v", ev.Err)
			c.fallback(ctx, session, p)
			return
		}
	}
}

// fallback performs the one single-shot fetch a failed or empty stream gets.
func (c *Coordinator) fallback(ctx context.Context, session uint64, p gateway.DuplicateParams) {
	pairs, total, err := c.feed.FindDuplicates(ctx, p.MinSharedTags, p.Limit, p.Exclude)
	if err != nil {
		if gateway.IsNotFound(err) {
			c.finish(session, State{Phase: Unavailable, Err: err})
		} else {
			c.finish(session, State{Phase: Failed, Err: err})
		}
		return
	}
	c.finish(session, State{Phase: Done, Percent: 100, Pairs: pairs, Total: total})
}

// update applies fn to the state if the session is still current.
func (c *Coordinator) update(session uint64, fn func(*State)) bool {
	c.mu.Lock()
	if session != c.session {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.mu.Unlock()
	c.notify(c.State())
	return true
}

// finish installs a terminal state atomically: pair list and total replace
// the previous ones in one step.
func (c *Coordinator) finish(session uint64, s State) {
	c.mu.Lock()
	if session != c.session {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.stream = nil
	c.mu.Unlock()
	c.notify(c.State())
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
