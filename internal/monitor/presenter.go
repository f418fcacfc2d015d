// Package monitor renders state changes as console output. It is a pure
// consumer: it never mutates the store it watches.
package monitor

import (
	"fmt"
	"io"
	"sync"

	"github.com/EnzoMH/cradcrawl/internal/state"
)

const timeLayout = "15:04:05"

// Renderer prints one line per event. All output goes through a single
// writer guarded by a mutex because store notifications may arrive from
// the connection goroutine while commands print from the main one.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer

	lastConn state.Connection
	haveConn bool
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Attach subscribes the renderer to the store's change feed.
func (r *Renderer) Attach(store *state.Store) {
	store.OnChange(r.render)
}

func (r *Renderer) render(c state.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range c.Logs {
		fmt.Fprintf(r.w, "%s [%s] %s\n", e.Time.Format(timeLayout), e.Level, e.Message)
	}

	switch c.Kind {
	case state.ChangeStatus:
		r.printStatus(c.Snapshot)
	case state.ChangeResult:
		if n := len(c.Snapshot.Results); n == 0 {
			fmt.Fprintln(r.w, "수집된 결과가 없습니다.")
		} else {
			fmt.Fprintf(r.w, "결과가 갱신되었습니다: %d 건\n", n)
		}
	case state.ChangeConn:
		r.printConnection(c.Snapshot.Conn)
	}
}

func (r *Renderer) printStatus(snap state.Snapshot) {
	job := snap.Job
	indicator := "대기 중"
	if job.Running {
		indicator = "실행 중"
	}
	fmt.Fprintf(r.w, "상태: %s | 진행 %d/%d (%d%%) | 수집 %d 건\n",
		indicator, len(job.ProcessedKeywords), job.TotalKeywords, job.Progress(), job.TotalItems)
}

func (r *Renderer) printConnection(conn state.Connection) {
	// Connection state flips back and forth during reconnect cycles;
	// only transitions are worth a line.
	if r.haveConn && conn == r.lastConn {
		return
	}
	r.lastConn, r.haveConn = conn, true

	switch {
	case conn.State == state.Connecting:
		fmt.Fprintln(r.w, "서버에 연결하는 중...")
	case conn.State == state.Connected:
		fmt.Fprintln(r.w, "서버에 연결되었습니다.")
	case conn.PendingReconnect:
		fmt.Fprintln(r.w, "서버 연결이 끊어졌습니다. 재연결을 기다리는 중...")
	default:
		fmt.Fprintln(r.w, "서버 연결이 종료되었습니다.")
	}
}

// Summary writes a final overview of the snapshot: job state plus a
// numbered result listing, the same shape the dashboard table shows.
func Summary(w io.Writer, snap state.Snapshot) {
	job := snap.Job
	fmt.Fprintf(w, "처리한 키워드: %d/%d (%d%%)\n", len(job.ProcessedKeywords), job.TotalKeywords, job.Progress())
	if job.StartTime != nil {
		fmt.Fprintf(w, "시작 시각: %s\n", job.StartTime.Format("2006-01-02 15:04:05"))
	}
	if job.EndTime != nil {
		fmt.Fprintf(w, "종료 시각: %s\n", job.EndTime.Format("2006-01-02 15:04:05"))
	}

	if len(snap.Results) == 0 {
		fmt.Fprintln(w, "수집된 결과가 없습니다.")
		return
	}
	fmt.Fprintf(w, "총 %d 건\n", len(snap.Results))
	for i, n := range snap.Results {
		fmt.Fprintf(w, "%3d. [%s] %s | %s | %s\n", i+1, n.Status, n.Title, n.Agency, n.Date)
	}
}
