// Package crawl holds the server-side crawl state and the per-keyword
// run loop that feeds it.
package crawl

import (
	"sync"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/bid"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

// Session is the shared state of at most one crawl at a time. Handlers,
// the runner goroutine and the hub all read it concurrently.
type Session struct {
	mu        sync.RWMutex
	running   bool
	results   []bid.Notice
	seen      map[string]bool
	processed []string
	total     int
	startTime *time.Time
	endTime   *time.Time
}

func NewSession() *Session {
	return &Session{seen: make(map[string]bool)}
}

// Begin resets the session for a new run. It reports false when a run is
// already in flight, which keeps the start endpoint race-free.
func (s *Session) Begin(totalKeywords int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	now := time.Now()
	s.running = true
	s.results = nil
	s.seen = make(map[string]bool)
	s.processed = nil
	s.total = totalKeywords
	s.startTime = &now
	s.endTime = nil
	return true
}

// Stop flags the run for termination; the runner notices at its next
// checkpoint. Reports false when nothing is running.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	now := time.Now()
	s.running = false
	s.endTime = &now
	return true
}

// Finish closes the run out: clears the running flag and stamps the end
// time, whether the run completed or was stopped.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.running = false
	s.endTime = &now
}

func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// AddResults appends items, skipping ones already collected under another
// keyword. Returns how many were actually added.
func (s *Session) AddResults(items []bid.Notice) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, item := range items {
		key := item.Key()
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.results = append(s.results, item)
		added++
	}
	return added
}

func (s *Session) MarkProcessed(keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kw := range s.processed {
		if kw == keyword {
			return
		}
	}
	s.processed = append(s.processed, keyword)
}

func (s *Session) Results() []bid.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]bid.Notice(nil), s.results...)
}

func (s *Session) Processed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.processed...)
}

// Status builds the wire payload every status push and pull serves.
func (s *Session) Status() wire.StatusData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return wire.StatusData{
		IsRunning:         s.running,
		ProcessedKeywords: append([]string{}, s.processed...),
		TotalKeywords:     s.total,
		TotalItems:        len(s.results),
		StartTime:         wire.FormatTime(s.startTime),
		EndTime:           wire.FormatTime(s.endTime),
	}
}
