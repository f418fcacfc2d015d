// Package state holds the monitor's single source of truth for a crawl job:
// the job snapshot, the current result set, the log, and the push-channel
// connection state. All mutation goes through Store, which applies each
// update atomically and then notifies subscribers.
package state

import (
	"math"
	"sync"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/bid"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

type ConnState string

const (
	Disconnected ConnState = "disconnected"
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
)

// Job mirrors the server's crawl status. Every status update overwrites the
// whole struct, so applying the same message twice is a no-op.
type Job struct {
	Running           bool
	ProcessedKeywords []string
	TotalKeywords     int
	TotalItems        int
	StartTime         *time.Time
	EndTime           *time.Time
}

// Progress is the processed-keyword percentage, 0 while no keyword total is
// known yet.
func (j Job) Progress() int {
	if j.TotalKeywords <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(j.ProcessedKeywords)) / float64(j.TotalKeywords)))
}

// LogEntry timestamps are client receipt times, not server event times.
type LogEntry struct {
	Time    time.Time
	Level   wire.Level
	Message string
}

type Connection struct {
	State            ConnState
	PendingReconnect bool
}

type Snapshot struct {
	Job     Job
	Results []bid.Notice
	Conn    Connection
}

type ChangeKind string

const (
	ChangeStatus ChangeKind = "status"
	ChangeLog    ChangeKind = "log"
	ChangeResult ChangeKind = "result"
	ChangeError  ChangeKind = "error"
	ChangeConn   ChangeKind = "connection"
)

// Change is published after each applied update. Logs carries only the
// entries appended by this update so a renderer never re-prints old lines.
type Change struct {
	Kind     ChangeKind
	Snapshot Snapshot
	Logs     []LogEntry
}

const DefaultMaxLog = 1000

type Store struct {
	mu        sync.Mutex
	job       Job
	results   []bid.Notice
	conn      Connection
	logs      []LogEntry
	maxLog    int
	listeners []func(Change)

	// Serializes listener callbacks so they observe changes in apply order.
	notifyMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		conn:   Connection{State: Disconnected},
		maxLog: DefaultMaxLog,
	}
}

// SetMaxLog bounds the retained log. Older entries are dropped once the
// limit is exceeded; zero or negative keeps the default.
func (s *Store) SetMaxLog(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxLog = n
	}
}

// OnChange registers a subscriber. Callbacks run synchronously after each
// applied update, in registration order.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Apply merges one classified push frame into the store. Pull responses are
// fed through the same path, so push and pull cannot diverge in semantics.
func (s *Store) Apply(msg wire.Message) {
	switch msg.Kind {
	case wire.KindStatus:
		s.applyStatus(msg.Status)
	case wire.KindLog:
		s.applyLog(msg.Log)
	case wire.KindResult:
		s.applyResult(msg.Result)
	case wire.KindError:
		s.applyError(msg.Error)
	case wire.KindPong:
		// Keepalive; nothing to merge.
	}
}

func (s *Store) applyStatus(d *wire.StatusData) {
	s.mu.Lock()
	s.job = Job{
		Running:           d.IsRunning,
		ProcessedKeywords: append([]string(nil), d.ProcessedKeywords...),
		TotalKeywords:     d.TotalKeywords,
		TotalItems:        d.TotalItems,
		StartTime:         wire.ParseTime(d.StartTime),
		EndTime:           wire.ParseTime(d.EndTime),
	}
	c := s.changeLocked(ChangeStatus, nil)
	s.mu.Unlock()
	s.publish(c)
}

func (s *Store) applyLog(d *wire.LogData) {
	entry := LogEntry{Time: time.Now(), Level: d.Level, Message: d.Message}
	s.mu.Lock()
	s.appendLogLocked(entry)
	c := s.changeLocked(ChangeLog, []LogEntry{entry})
	s.mu.Unlock()
	s.publish(c)
}

func (s *Store) applyResult(d *wire.ResultData) {
	s.mu.Lock()
	s.results = append([]bid.Notice(nil), d.Results...)
	c := s.changeLocked(ChangeResult, nil)
	s.mu.Unlock()
	s.publish(c)
}

// applyError records the server error and, when the stopped flag is set,
// forces the running flag off immediately. A later status message remains
// authoritative and may flip it back (see the race note in the store tests).
func (s *Store) applyError(d *wire.ErrorData) {
	entry := LogEntry{Time: time.Now(), Level: wire.LevelError, Message: d.Message}
	s.mu.Lock()
	s.appendLogLocked(entry)
	if d.Stopped {
		s.job.Running = false
	}
	c := s.changeLocked(ChangeError, []LogEntry{entry})
	s.mu.Unlock()
	s.publish(c)
}

// LocalLog appends a client-side entry (transport warnings, protocol errors).
func (s *Store) LocalLog(level wire.Level, message string) {
	s.applyLog(&wire.LogData{Message: message, Level: level})
}

// SetRunning flips only the running flag. Used for the optimistic update on
// a successful start command, ahead of the confirming status push.
func (s *Store) SetRunning(running bool) {
	s.mu.Lock()
	s.job.Running = running
	c := s.changeLocked(ChangeStatus, nil)
	s.mu.Unlock()
	s.publish(c)
}

// SetConnection is called by the connection manager only.
func (s *Store) SetConnection(st ConnState, pendingReconnect bool) {
	s.mu.Lock()
	s.conn = Connection{State: st, PendingReconnect: pendingReconnect}
	c := s.changeLocked(ChangeConn, nil)
	s.mu.Unlock()
	s.publish(c)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Logs returns a copy of the retained log, oldest first.
func (s *Store) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.logs...)
}

func (s *Store) appendLogLocked(entry LogEntry) {
	s.logs = append(s.logs, entry)
	if over := len(s.logs) - s.maxLog; over > 0 {
		s.logs = append([]LogEntry(nil), s.logs[over:]...)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	job := s.job
	job.ProcessedKeywords = append([]string(nil), s.job.ProcessedKeywords...)
	return Snapshot{
		Job:     job,
		Results: append([]bid.Notice(nil), s.results...),
		Conn:    s.conn,
	}
}

func (s *Store) changeLocked(kind ChangeKind, logs []LogEntry) Change {
	return Change{Kind: kind, Snapshot: s.snapshotLocked(), Logs: logs}
}

func (s *Store) publish(c Change) {
	s.mu.Lock()
	listeners := append(([]func(Change))(nil), s.listeners...)
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}
