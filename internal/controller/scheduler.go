package controller

import (
	"sync"
	"time"

	"github.com/jolivier22/stlmanager/internal/config"
)

// Scheduler fires a callback on a fixed interval, used for the recurring
// incremental reindex. Intervals below the configured floor are raised to it
// so a typo in config cannot hammer the server.
type Scheduler struct {
	mu      sync.Mutex
	fn      func()
	stop    chan struct{}
	running bool
}

func NewScheduler(fn func()) *Scheduler {
	return &Scheduler{fn: fn}
}

// Start begins (or restarts) the recurring fire. The first fire happens one
// full interval after Start, never immediately.
func (s *Scheduler) Start(interval time.Duration) {
	if min := config.MinScanIntervalMinutes * time.Minute; interval < min {
		interval = min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	stop := make(chan struct{})
	s.stop = stop
	s.running = true
	go s.run(interval, stop)
}

func (s *Scheduler) run(interval time.Duration, stop chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.fn()
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) stopLocked() {
	if s.running {
		close(s.stop)
		s.stop = nil
		s.running = false
	}
}
