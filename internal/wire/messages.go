// Package wire defines the frames exchanged over the push channel and the
// request/response envelopes of the crawl API. Both the server hub and the
// monitor client speak these types, so pull and push updates cannot drift.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

type Kind string

const (
	KindStatus Kind = "status"
	KindLog    Kind = "log"
	KindResult Kind = "result"
	KindError  Kind = "error"

	// Client → server keepalive and its reply.
	KindPing Kind = "ping"
	KindPong Kind = "pong"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Envelope is an inbound frame before its payload is decoded.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Frame is an outbound frame. The hub marshals Data along with the type tag.
type Frame struct {
	Type Kind `json:"type"`
	Data any  `json:"data,omitempty"`
}

type StatusData struct {
	IsRunning         bool     `json:"is_running"`
	ProcessedKeywords []string `json:"processed_keywords"`
	TotalKeywords     int      `json:"total_keywords"`
	TotalItems        int      `json:"total_items"`
	StartTime         string   `json:"start_time,omitempty"`
	EndTime           string   `json:"end_time,omitempty"`
}

type LogData struct {
	Message   string `json:"message"`
	Level     Level  `json:"level,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type ResultData struct {
	Results []bid.Notice `json:"results"`
}

type ErrorData struct {
	Message   string `json:"message"`
	Stopped   bool   `json:"stopped,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Message is one classified push frame. Exactly one payload field is set,
// matching Kind.
type Message struct {
	Kind   Kind
	Status *StatusData
	Log    *LogData
	Result *ResultData
	Error  *ErrorData
}

// Decode classifies a raw frame. It probes the type tag first, then decodes
// the matching payload. A malformed payload or unknown type is an error for
// the caller to log and drop; it must never take the connection down.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}

	msg := Message{Kind: env.Type}
	switch env.Type {
	case KindStatus:
		msg.Status = &StatusData{}
		if err := json.Unmarshal(env.Data, msg.Status); err != nil {
			return Message{}, fmt.Errorf("decode status payload: %w", err)
		}
	case KindLog:
		msg.Log = &LogData{}
		if err := json.Unmarshal(env.Data, msg.Log); err != nil {
			return Message{}, fmt.Errorf("decode log payload: %w", err)
		}
		if msg.Log.Level == "" {
			msg.Log.Level = LevelInfo
		}
	case KindResult:
		msg.Result = &ResultData{}
		if err := json.Unmarshal(env.Data, msg.Result); err != nil {
			return Message{}, fmt.Errorf("decode result payload: %w", err)
		}
	case KindError:
		msg.Error = &ErrorData{}
		if err := json.Unmarshal(env.Data, msg.Error); err != nil {
			return Message{}, fmt.Errorf("decode error payload: %w", err)
		}
	case KindPong:
		// Keepalive reply carries no payload.
	default:
		return Message{}, fmt.Errorf("unknown message type: %q", env.Type)
	}
	return msg, nil
}

// Response is the request/response envelope. Any status other than "success"
// is a failed command.
type Response struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    *StatusData  `json:"data,omitempty"`
	Results []bid.Notice `json:"results,omitempty"`
}

const StatusSuccess = "success"

func (r *Response) OK() bool { return r.Status == StatusSuccess }

// StartRequest is the POST /api/start body. The REST surface keeps the
// original camelCase field names; push frames are snake_case.
type StartRequest struct {
	Keywords  []string `json:"keywords"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`
	Headless  bool     `json:"headless"`
	// MaxItems caps results per keyword; the server applies its default
	// when zero.
	MaxItems   int        `json:"maxItems,omitempty"`
	ClientInfo ClientInfo `json:"clientInfo"`
}

type ClientInfo struct {
	UserAgent string `json:"userAgent"`
	Timestamp string `json:"timestamp"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	// The previous backend sent naive isoformat timestamps without a zone.
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTime parses a status timestamp. Empty or unparseable input yields nil;
// a missing timestamp is normal for a job that has not started or finished.
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// FormatTime renders a timestamp for a status payload, "" when unset.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
