// Package client keeps a monitor in sync with the crawl backend. It owns the
// push-channel connection and its reconnection policy, classifies inbound
// frames into the state store, and issues the start/stop/pull commands whose
// effects the next push update reconciles.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/EnzoMH/cradcrawl/internal/state"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

const defaultUserAgent = "cradcrawl-monitor/1.0"

var ErrAlreadyRunning = errors.New("client: Run already active")

type Options struct {
	// Delay before the single scheduled reconnect attempt. Defaults to 5s.
	ReconnectDelay time.Duration
	// Interval between keepalive pings. Defaults to 30s.
	PingInterval time.Duration
	HTTPClient   *http.Client
	UserAgent    string
}

type Client struct {
	baseURL string
	wsURL   string
	store   *state.Store
	http    *http.Client
	ua      string
	opts    Options

	running atomic.Bool // Run may be entered once at a time
	closed  atomic.Bool // clean shutdown requested

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(baseURL string, store *state.Store) (*Client, error) {
	return NewWithOptions(baseURL, store, Options{})
}

func NewWithOptions(baseURL string, store *state.Store, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	ws := *u
	switch u.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	ws.Path = "/ws"

	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	return &Client{
		baseURL: u.String(),
		wsURL:   ws.String(),
		store:   store,
		http:    opts.HTTPClient,
		ua:      opts.UserAgent,
		opts:    opts,
	}, nil
}

// Run owns the connection for its whole lifetime: dial, read until the
// connection drops, wait out the reconnect delay, dial again. Because one
// goroutine drives the loop there is never a second live connection or a
// second pending reconnect timer. Run returns nil after a clean close and
// ctx.Err() once the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		if c.closed.Load() {
			c.store.SetConnection(state.Disconnected, false)
			return nil
		}

		err := c.connect(ctx)
		if err == nil || c.closed.Load() {
			c.store.SetConnection(state.Disconnected, false)
			return nil
		}
		if ctx.Err() != nil {
			c.store.SetConnection(state.Disconnected, false)
			return ctx.Err()
		}

		log.Printf("connection lost: %v, reconnecting in %s", err, c.opts.ReconnectDelay)
		c.store.LocalLog(wire.LevelWarning, "서버 연결이 끊어졌습니다. 잠시 후 재연결합니다.")
		c.store.SetConnection(state.Disconnected, true)

		select {
		case <-ctx.Done():
			c.store.SetConnection(state.Disconnected, false)
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// connect performs one dial and reads frames until the connection ends.
// A nil return means the closure was clean (no reconnect).
func (c *Client) connect(ctx context.Context) error {
	c.store.SetConnection(state.Connecting, false)

	conn, _, err := websocket.Dial(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.store.SetConnection(state.Connected, false)

	// The push channel cannot replay what was missed while disconnected, so
	// every (re)connect pulls the authoritative status once.
	go c.resync(ctx)
	go c.keepalive(ctx, conn)

	return c.readLoop(ctx, conn)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if c.closed.Load() || ctx.Err() != nil ||
				websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(data)
	}
}

// dispatch classifies one frame and merges it. A frame that fails to decode
// is logged and dropped; it never takes the connection down.
func (c *Client) dispatch(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		log.Printf("dropping bad frame: %v", err)
		c.store.LocalLog(wire.LevelError, "잘못된 메시지를 수신했습니다: "+err.Error())
		return
	}
	c.store.Apply(msg)
}

func (c *Client) resync(ctx context.Context) {
	if err := c.PullStatus(ctx); err != nil {
		log.Printf("status resync failed: %v", err)
	}
}

func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, wire.Frame{Type: wire.KindPing}); err != nil {
				return
			}
		}
	}
}

// Close requests a clean shutdown: the connection is closed normally and no
// reconnect is scheduled.
func (c *Client) Close() {
	c.closed.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closing")
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}
