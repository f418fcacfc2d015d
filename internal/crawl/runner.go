package crawl

import (
	"context"
	"fmt"
	"log"

	"github.com/EnzoMH/cradcrawl/internal/bid"
	"github.com/EnzoMH/cradcrawl/internal/engine"
	"github.com/EnzoMH/cradcrawl/internal/wire"
)

// Broadcaster pushes frames to every connected monitor. Implemented by
// server.Hub; a stub in tests.
type Broadcaster interface {
	SendStatus(wire.StatusData)
	SendLog(message string, level wire.Level)
	SendResults([]bid.Notice)
	SendError(message string, stopped bool)
}

// Saver persists a finished run and returns a reference to it (a file
// path, an archive id).
type Saver interface {
	Save(keywords []string, results []bid.Notice) (string, error)
}

// Savers fans a run out to several stores. The first reference is the one
// reported to monitors.
type Savers []Saver

func (sv Savers) Save(keywords []string, results []bid.Notice) (string, error) {
	var ref string
	for _, s := range sv {
		r, err := s.Save(keywords, results)
		if err != nil {
			return ref, err
		}
		if ref == "" {
			ref = r
		}
	}
	return ref, nil
}

// Runner drives one crawl across a keyword list, reporting progress to the
// hub after every keyword. It runs on its own goroutine; the session's stop
// flag is its only external control.
type Runner struct {
	session *Session
	engine  engine.Engine
	hub     Broadcaster
	saver   Saver
}

func NewRunner(session *Session, eng engine.Engine, hub Broadcaster, saver Saver) *Runner {
	return &Runner{session: session, engine: eng, hub: hub, saver: saver}
}

// Run executes the crawl. The final status broadcast and completion log
// fire on every path, including engine-init failure.
func (r *Runner) Run(ctx context.Context, keywords []string, opts engine.SearchOptions) {
	defer func() {
		r.engine.Close()
		r.session.Finish()
		r.hub.SendStatus(r.session.Status())
		r.hub.SendLog("크롤링 작업이 완료되었습니다.", wire.LevelInfo)
	}()

	r.hub.SendLog("크롤러 초기화 중...", wire.LevelInfo)
	if err := r.engine.Init(ctx); err != nil {
		log.Printf("engine init failed: %v", err)
		r.hub.SendError("크롤러 초기화 실패: "+err.Error(), true)
		return
	}
	r.hub.SendLog("크롤러 초기화 완료", wire.LevelInfo)
	r.hub.SendLog(fmt.Sprintf("검색 시작: %d개 키워드", len(keywords)), wire.LevelInfo)

	for i, keyword := range keywords {
		if r.stopped(ctx) {
			r.hub.SendLog("크롤링 중지 요청으로 작업을 종료합니다.", wire.LevelInfo)
			break
		}
		r.hub.SendLog(fmt.Sprintf("키워드 검색 중 (%d/%d): '%s'", i+1, len(keywords), keyword), wire.LevelInfo)

		items, err := r.engine.Search(ctx, keyword, opts)
		if err != nil {
			log.Printf("keyword %q search failed: %v", keyword, err)
			r.hub.SendLog(fmt.Sprintf("키워드 '%s' 처리 중 오류: %v", keyword, err), wire.LevelError)
			continue
		}

		if len(items) == 0 {
			r.hub.SendLog(fmt.Sprintf("키워드 '%s'에 대한 검색 결과가 없습니다.", keyword), wire.LevelInfo)
			r.session.MarkProcessed(keyword)
			r.hub.SendStatus(r.session.Status())
			continue
		}

		r.hub.SendLog(fmt.Sprintf("키워드 '%s' 검색 결과: %d건", keyword, len(items)), wire.LevelInfo)
		r.enrich(ctx, items)

		r.session.AddResults(items)
		r.session.MarkProcessed(keyword)
		r.hub.SendStatus(r.session.Status())
		r.hub.SendResults(r.session.Results())
	}

	r.hub.SendLog("모든 키워드 처리 완료", wire.LevelInfo)
	r.save()
}

// enrich visits each item's detail page in place. Failures keep the list
// row's base fields.
func (r *Runner) enrich(ctx context.Context, items []bid.Notice) {
	r.hub.SendLog(fmt.Sprintf("상세 정보 추출 시작: %d개 항목", len(items)), wire.LevelInfo)
	done := 0
	for i := range items {
		if r.stopped(ctx) {
			break
		}
		item := &items[i]
		r.hub.SendLog(fmt.Sprintf("항목 %d/%d 상세 정보 추출 중: %s", i+1, len(items), item.Title), wire.LevelInfo)
		if err := r.engine.Details(ctx, item); err != nil {
			r.hub.SendLog(fmt.Sprintf("항목 %d 상세 정보 추출 오류: %v", i+1, err), wire.LevelError)
		} else {
			r.hub.SendLog(fmt.Sprintf("항목 %d 상세 정보 추출 성공", i+1), wire.LevelSuccess)
		}
		done++
	}
	r.hub.SendLog(fmt.Sprintf("상세 정보 추출 완료: %d개 항목", done), wire.LevelInfo)
}

func (r *Runner) save() {
	results := r.session.Results()
	if len(results) == 0 {
		r.hub.SendLog("저장할 결과가 없습니다.", wire.LevelWarning)
		return
	}
	if r.saver == nil {
		return
	}
	ref, err := r.saver.Save(r.session.Processed(), results)
	if err != nil {
		log.Printf("failed to save run: %v", err)
		r.hub.SendLog("결과 저장 실패: "+err.Error(), wire.LevelError)
		return
	}
	r.hub.SendLog(fmt.Sprintf("결과 저장 완료: %s (%d건)", ref, len(results)), wire.LevelSuccess)
}

func (r *Runner) stopped(ctx context.Context) bool {
	return !r.session.Running() || ctx.Err() != nil
}
