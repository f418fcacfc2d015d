package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/EnzoMH/cradcrawl/internal/bid"
	"github.com/EnzoMH/cradcrawl/internal/state"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

func writeEnvelope(w http.ResponseWriter, env wire.Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(env)
}

func newTestClient(t *testing.T, srv *httptest.Server, store *state.Store) *Client {
	t.Helper()
	c, err := NewWithOptions(srv.URL, store, Options{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestStartRejectsEmptyKeywordsLocally(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeEnvelope(w, wire.Response{Status: wire.StatusSuccess})
	}))
	defer srv.Close()

	store := state.NewStore()
	c := newTestClient(t, srv, store)

	err := c.Start(context.Background(), []string{"  ", "", "\t"}, "", "", true)
	if !errors.Is(err, ErrNoKeywords) {
		t.Errorf("expected ErrNoKeywords, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("expected no HTTP requests, got %d", n)
	}
	if logs := store.Logs(); len(logs) != 0 {
		t.Errorf("expected no log entries for local validation, got %d", len(logs))
	}
	if store.Snapshot().Job.Running {
		t.Error("expected job to stay stopped")
	}
}

func TestStartPostsTrimmedKeywords(t *testing.T) {
	var got wire.StartRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/start" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		writeEnvelope(w, wire.Response{Status: wire.StatusSuccess, Message: "크롤링이 시작되었습니다."})
	}))
	defer srv.Close()

	store := state.NewStore()
	c := newTestClient(t, srv, store)

	if err := c.Start(context.Background(), []string{" 학교 ", "", "소프트웨어"}, "2025-01-01", "2025-01-31", false); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if len(got.Keywords) != 2 || got.Keywords[0] != "학교" || got.Keywords[1] != "소프트웨어" {
		t.Errorf("expected trimmed keywords, got %v", got.Keywords)
	}
	if got.StartDate != "2025-01-01" || got.EndDate != "2025-01-31" {
		t.Errorf("unexpected date range: %s..%s", got.StartDate, got.EndDate)
	}
	if got.Headless {
		t.Error("expected headless false")
	}
	if got.ClientInfo.UserAgent == "" || got.ClientInfo.Timestamp == "" {
		t.Errorf("expected client info to be filled, got %+v", got.ClientInfo)
	}
	if !store.Snapshot().Job.Running {
		t.Error("expected optimistic running flag after accepted start")
	}
}

func TestStartRejectedByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, wire.Response{Status: "error", Message: "이미 크롤링이 실행 중입니다"})
	}))
	defer srv.Close()

	store := state.NewStore()
	c := newTestClient(t, srv, store)

	if err := c.Start(context.Background(), []string{"입찰"}, "", "", true); err == nil {
		t.Fatal("expected error for rejected start")
	}
	if store.Snapshot().Job.Running {
		t.Error("expected running flag untouched after rejection")
	}
	logs := store.Logs()
	if len(logs) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(logs))
	}
	if logs[0].Level != wire.LevelError {
		t.Errorf("expected error level, got %s", logs[0].Level)
	}
}

func TestStartNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	store := state.NewStore()
	c := newTestClient(t, srv, store)
	srv.Close()

	if err := c.Start(context.Background(), []string{"입찰"}, "", "", true); err == nil {
		t.Fatal("expected error when server is unreachable")
	}
	if len(store.Logs()) != 1 {
		t.Errorf("expected exactly one log entry, got %d", len(store.Logs()))
	}
	if store.Snapshot().Job.Running {
		t.Error("expected running flag untouched after network error")
	}
}

func TestStopLogsOutcome(t *testing.T) {
	tests := []struct {
		name      string
		env       wire.Response
		wantErr   bool
		wantLevel wire.Level
	}{
		{"accepted", wire.Response{Status: wire.StatusSuccess, Message: "크롤링 중지 요청이 전송되었습니다."}, false, wire.LevelInfo},
		{"rejected", wire.Response{Status: "error", Message: "실행 중인 크롤링이 없습니다"}, true, wire.LevelWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/stop" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				writeEnvelope(w, tt.env)
			}))
			defer srv.Close()

			store := state.NewStore()
			store.SetRunning(true)
			c := newTestClient(t, srv, store)

			err := c.Stop(context.Background())
			if tt.wantErr != (err != nil) {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
			if !store.Snapshot().Job.Running {
				t.Error("expected stop to leave the running flag to the reconciler")
			}
			logs := store.Logs()
			if len(logs) != 1 {
				t.Fatalf("expected exactly one log entry, got %d", len(logs))
			}
			if logs[0].Level != tt.wantLevel {
				t.Errorf("expected %s level, got %s", tt.wantLevel, logs[0].Level)
			}
		})
	}
}

func TestPullStatusAppliesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeEnvelope(w, wire.Response{
			Status: wire.StatusSuccess,
			Data: &wire.StatusData{
				IsRunning:         true,
				ProcessedKeywords: []string{"학교"},
				TotalKeywords:     2,
				TotalItems:        7,
			},
		})
	}))
	defer srv.Close()

	store := state.NewStore()
	c := newTestClient(t, srv, store)

	if err := c.PullStatus(context.Background()); err != nil {
		t.Fatalf("pull status failed: %v", err)
	}

	job := store.Snapshot().Job
	if !job.Running || job.TotalItems != 7 || job.TotalKeywords != 2 {
		t.Errorf("unexpected job state: %+v", job)
	}
	if job.Progress() != 50 {
		t.Errorf("expected progress 50, got %d", job.Progress())
	}
}

func TestPullResultsReplacesWithEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/crawl-results/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeEnvelope(w, wire.Response{Status: wire.StatusSuccess})
	}))
	defer srv.Close()

	store := state.NewStore()
	store.Apply(wire.Message{Kind: wire.KindResult, Result: &wire.ResultData{
		Results: []bid.Notice{{Title: "이전 공고"}},
	}})
	c := newTestClient(t, srv, store)

	if err := c.PullResults(context.Background()); err != nil {
		t.Fatalf("pull results failed: %v", err)
	}
	if n := len(store.Snapshot().Results); n != 0 {
		t.Errorf("expected results replaced with empty set, got %d", n)
	}
}

func TestDownloadStreamsFile(t *testing.T) {
	const body = "\uFEFF번호,공고명\n1,테스트 공고\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/results/download" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="crawl_results_20250102_030405.csv"`)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	store := state.NewStore()
	c := newTestClient(t, srv, store)

	var buf bytes.Buffer
	name, err := c.Download(context.Background(), &buf)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if name != "crawl_results_20250102_030405.csv" {
		t.Errorf("unexpected filename %q", name)
	}
	if buf.String() != body {
		t.Errorf("unexpected file contents %q", buf.String())
	}
}

func TestDownloadRejectedWithoutResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, wire.Response{Status: "error", Message: "다운로드할 결과가 없습니다"})
	}))
	defer srv.Close()

	store := state.NewStore()
	c := newTestClient(t, srv, store)

	if _, err := c.Download(context.Background(), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error when there is nothing to download")
	}
	logs := store.Logs()
	if len(logs) != 1 || logs[0].Level != wire.LevelWarning {
		t.Errorf("expected one warning entry, got %+v", logs)
	}
}
