package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EnzoMH/cradcrawl/internal/archive"
	"github.com/EnzoMH/cradcrawl/internal/crawl"
	"github.com/EnzoMH/cradcrawl/internal/engine"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

const defaultMaxItems = 10000

// EngineFactory builds a fresh engine for each run, the way the original
// spins up one crawler per crawl.
type EngineFactory func() (engine.Engine, error)

type Handlers struct {
	session *crawl.Session
	hub     *Hub
	newEng  EngineFactory
	saver   crawl.Saver
	archive *archive.Store

	maxItems int

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewHandlers(session *crawl.Session, hub *Hub, newEng EngineFactory, saver crawl.Saver, archiveStore *archive.Store) *Handlers {
	return &Handlers{
		session:  session,
		hub:      hub,
		newEng:   newEng,
		saver:    saver,
		archive:  archiveStore,
		maxItems: defaultMaxItems,
	}
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "나라장터 크롤링 API",
		"version": "1.0.0",
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"is_running": h.session.Running(),
		"monitors":   h.hub.Count(),
	})
}

// Start validates the request, claims the session and launches the runner
// goroutine. Rejections use the error envelope, not HTTP status codes.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req wire.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, wire.Response{Status: "error", Message: "잘못된 요청 형식입니다."})
		return
	}

	var keywords []string
	for _, kw := range req.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		writeJSON(w, http.StatusOK, wire.Response{Status: "error", Message: "키워드를 하나 이상 입력해주세요."})
		return
	}

	if !h.session.Begin(len(keywords)) {
		writeJSON(w, http.StatusOK, wire.Response{Status: "error", Message: "이미 크롤링이 실행 중입니다."})
		return
	}

	eng, err := h.newEng()
	if err != nil {
		h.session.Finish()
		log.Printf("Failed to build engine: %v", err)
		writeJSON(w, http.StatusOK, wire.Response{Status: "error", Message: "크롤러를 준비할 수 없습니다: " + err.Error()})
		return
	}

	if req.ClientInfo.UserAgent != "" {
		log.Printf("Crawl requested by %s", req.ClientInfo.UserAgent)
	}

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = h.maxItems
	}
	opts := engine.SearchOptions{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		MaxItems:  maxItems,
		Headless:  req.Headless,
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.setCancel(cancel)

	h.hub.SendStatus(h.session.Status())
	h.hub.SendLog(fmt.Sprintf("키워드 %d개로 크롤링을 시작합니다.", len(keywords)), wire.LevelInfo)

	runner := crawl.NewRunner(h.session, eng, h.hub, h.saver)
	go func() {
		defer cancel()
		runner.Run(ctx, keywords, opts)
	}()

	st := h.session.Status()
	writeJSON(w, http.StatusOK, wire.Response{
		Status:  wire.StatusSuccess,
		Message: "크롤링이 시작되었습니다.",
		Data:    &st,
	})
}

// Stop flags the session and cancels the runner's context; the runner does
// the actual wind-down, including the save.
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.session.Stop() {
		writeJSON(w, http.StatusOK, wire.Response{Status: "error", Message: "실행 중인 크롤링이 없습니다."})
		return
	}

	h.hub.SendLog("크롤링 중지 요청이 접수되었습니다.", wire.LevelInfo)
	h.cancelRun()
	h.hub.SendStatus(h.session.Status())

	st := h.session.Status()
	writeJSON(w, http.StatusOK, wire.Response{
		Status:  wire.StatusSuccess,
		Message: "크롤링이 중지되었습니다.",
		Data:    &st,
	})
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	st := h.session.Status()
	writeJSON(w, http.StatusOK, wire.Response{Status: wire.StatusSuccess, Data: &st})
}

func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.Response{
		Status:  wire.StatusSuccess,
		Results: h.session.Results(),
	})
}

// Download streams the current result set as CSV.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	results := h.session.Results()
	if len(results) == 0 {
		writeJSON(w, http.StatusOK, wire.Response{Status: "error", Message: "다운로드할 결과가 없습니다."})
		return
	}

	filename := fmt.Sprintf("crawl_results_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := writeCSV(w, results); err != nil {
		log.Printf("Failed to write CSV download: %v", err)
	}
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := h.archive.List(limit)
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		writeJSON(w, http.StatusInternalServerError, wire.Response{Status: "error", Message: "크롤링 기록을 불러올 수 없습니다."})
		return
	}
	if runs == nil {
		runs = []archive.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": wire.StatusSuccess,
		"runs":   runs,
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.archive.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, wire.Response{Status: "error", Message: "크롤링 기록을 찾을 수 없습니다."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": wire.StatusSuccess,
		"run":    run,
	})
}

func (h *Handlers) setCancel(cancel context.CancelFunc) {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	h.cancel = cancel
}

func (h *Handlers) cancelRun() {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
