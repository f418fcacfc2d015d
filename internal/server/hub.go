// Package server exposes the crawl over HTTP: a websocket push channel for
// monitors plus the command and query endpoints.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/EnzoMH/cradcrawl/internal/bid"
	"github.com/EnzoMH/cradcrawl/internal/crawl"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

const pushTimeout = 5 * time.Second

// Hub fans crawl events out to every connected monitor. Implements
// crawl.Broadcaster.
type Hub struct {
	session *crawl.Session
	connsMu sync.RWMutex
	conns   map[string]*websocket.Conn
}

func NewHub(session *crawl.Session) *Hub {
	return &Hub{
		session: session,
		conns:   make(map[string]*websocket.Conn),
	}
}

// HandleWS upgrades a monitor connection, replays the current state and
// then answers pings until the peer goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("WebSocket accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	id := uuid.New().String()
	h.connsMu.Lock()
	h.conns[id] = conn
	h.connsMu.Unlock()
	log.Printf("Monitor %s connected", id)

	defer func() {
		h.connsMu.Lock()
		delete(h.conns, id)
		h.connsMu.Unlock()
		log.Printf("Monitor %s disconnected", id)
	}()

	// A fresh monitor gets the full picture right away: status always,
	// results only when there is something to show.
	if err := wsjson.Write(r.Context(), conn, wire.Frame{Type: wire.KindStatus, Data: h.session.Status()}); err != nil {
		log.Printf("Failed to send initial status to %s: %v", id, err)
		return
	}
	if results := h.session.Results(); len(results) > 0 {
		if err := wsjson.Write(r.Context(), conn, wire.Frame{Type: wire.KindResult, Data: wire.ResultData{Results: results}}); err != nil {
			log.Printf("Failed to send initial results to %s: %v", id, err)
			return
		}
	}

	h.readLoop(r.Context(), conn)
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		// Monitors only ever send pings; anything else is ignored.
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == wire.KindPing {
			wsjson.Write(ctx, conn, wire.Frame{Type: wire.KindPong})
		}
	}
}

// Broadcast writes one frame to every monitor, pruning connections that
// fail the write.
func (h *Hub) Broadcast(frame wire.Frame) {
	h.connsMu.RLock()
	conns := make(map[string]*websocket.Conn, len(h.conns))
	for id, conn := range h.conns {
		conns[id] = conn
	}
	h.connsMu.RUnlock()

	for id, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := wsjson.Write(ctx, conn, frame)
		cancel()
		if err != nil {
			log.Printf("Failed to push to monitor %s: %v", id, err)
			h.drop(id, conn)
		}
	}
}

func (h *Hub) drop(id string, conn *websocket.Conn) {
	h.connsMu.Lock()
	delete(h.conns, id)
	h.connsMu.Unlock()
	conn.CloseNow()
}

// Count reports how many monitors are connected.
func (h *Hub) Count() int {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return len(h.conns)
}

func (h *Hub) SendStatus(d wire.StatusData) {
	h.Broadcast(wire.Frame{Type: wire.KindStatus, Data: d})
}

func (h *Hub) SendLog(message string, level wire.Level) {
	h.Broadcast(wire.Frame{Type: wire.KindLog, Data: wire.LogData{
		Message:   message,
		Level:     level,
		Timestamp: time.Now().Format(time.RFC3339),
	}})
}

func (h *Hub) SendResults(results []bid.Notice) {
	h.Broadcast(wire.Frame{Type: wire.KindResult, Data: wire.ResultData{Results: results}})
}

func (h *Hub) SendError(message string, stopped bool) {
	h.Broadcast(wire.Frame{Type: wire.KindError, Data: wire.ErrorData{
		Message:   message,
		Stopped:   stopped,
		Timestamp: time.Now().Format(time.RFC3339),
	}})
}
