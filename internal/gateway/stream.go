package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/logging"
)

// DuplicateParams are the two tunables of a duplicate-detection session plus
// the excluded-tag list.
type DuplicateParams struct {
	MinSharedTags int
	Limit         int
	Exclude       []string
}

type EventKind int

const (
	// EventProgress carries Percent (clamped 0..100 by the consumer) and Phase.
	EventProgress EventKind = iota
	// EventDebug carries a free-form Message from the scanner.
	EventDebug
	// EventDone is terminal and carries the final Pairs and Total.
	EventDone
	// EventError is terminal: the stream failed at the transport level.
	EventError
)

// StreamEvent is one event of a duplicate-detection stream.
type StreamEvent struct {
	Kind    EventKind
	Percent float64
	Phase   string
	Message string
	Pairs   []catalog.DuplicatePair
	Total   int
	Err     error
}

// DuplicateStream is a live subscription to the streaming duplicate scan.
// Events() delivers progress, optional debug, and exactly one terminal event
// (done or error), after which the channel closes. Close tears the
// subscription down; it is safe to call more than once.
type DuplicateStream struct {
	events chan StreamEvent
	cancel context.CancelFunc
}

func (s *DuplicateStream) Events() <-chan StreamEvent { return s.events }

func (s *DuplicateStream) Close() { s.cancel() }

// OpenDuplicateStream subscribes to the SSE duplicate-detection feed. The
// returned stream stays open until a terminal event, a transport failure, or
// Close. Opening fails eagerly on a rejected subscription (e.g. 404 from a
// service without streaming support) so the caller can fall back.
func (c *Client) OpenDuplicateStream(ctx context.Context, p DuplicateParams) (*DuplicateStream, error) {
	v := url.Values{
		"min_tags": []string{strconv.Itoa(p.MinSharedTags)},
		"limit":    []string{strconv.Itoa(p.Limit)},
	}
	for _, t := range p.Exclude {
		v.Add("exclude", t)
	}
	rawURL := c.endpoint("/duplicates/stream", v)

	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
		_ = resp.Body.Close()
		cancel()
		return nil, se
	}

	s := &DuplicateStream{events: make(chan StreamEvent, 8), cancel: cancel}
	go func() {
		defer close(s.events)
		defer func() { _ = resp.Body.Close() }()
		if err := readEvents(ctx, resp.Body, s.events, c.log); err != nil {
			if ctx.Err() != nil {
				return // torn down locally, not a failure
			}
			select {
			case s.events <- StreamEvent{Kind: EventError, Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return s, nil
}

type progressPayload struct {
	Percent float64 `json:"percent"`
	Phase   string  `json:"phase"`
}

type donePayload struct {
	Pairs []catalog.DuplicatePair `json:"pairs"`
	Total int                     `json:"total"`
}

// readEvents parses the SSE wire format: "event:" names the event, "data:"
// carries its JSON payload, a blank line dispatches. Comment lines (": ...")
// are keepalives and skipped. Returns nil after a terminal done event. Every
// channel send is guarded by ctx so a consumer that stopped draining cannot
// strand the reader; cancelling the context also fails the underlying read.
func readEvents(ctx context.Context, r io.Reader, out chan<- StreamEvent, log *logging.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event != "" || data.Len() > 0 {
				done, err := dispatch(ctx, event, data.String(), out, log)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("duplicate stream: %w", err)
	}
	return fmt.Errorf("duplicate stream: closed before terminal event")
}

func dispatch(ctx context.Context, event, data string, out chan<- StreamEvent, log *logging.Logger) (done bool, err error) {
	switch event {
	case "progress":
		var p progressPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return false, fmt.Errorf("duplicate stream: progress payload: %w", err)
		}
		return false, emit(ctx, out, StreamEvent{Kind: EventProgress, Percent: p.Percent, Phase: p.Phase})
	case "debug":
		return false, emit(ctx, out, StreamEvent{Kind: EventDebug, Message: data})
	case "done":
		var d donePayload
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return false, fmt.Errorf("duplicate stream: done payload: %w", err)
		}
		return true, emit(ctx, out, StreamEvent{Kind: EventDone, Pairs: d.Pairs, Total: d.Total})
	default:
		log.Debugf("duplicate stream: unknown event %q", event)
	}
	return false, nil
}

func emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
