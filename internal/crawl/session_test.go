package crawl

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

func TestSessionBeginBlocksSecondRun(t *testing.T) {
	s := NewSession()

	if !s.Begin(3) {
		t.Fatal("expected first begin to succeed")
	}
	if s.Begin(3) {
		t.Error("expected begin to fail while running")
	}

	s.Finish()
	if !s.Begin(1) {
		t.Error("expected begin to succeed after finish")
	}
}

func TestSessionBeginResetsPreviousRun(t *testing.T) {
	s := NewSession()
	s.Begin(1)
	s.AddResults([]bid.Notice{{Title: "이전 공고", Number: "1"}})
	s.MarkProcessed("이전")
	s.Finish()

	s.Begin(2)
	st := s.Status()
	if st.TotalItems != 0 || len(st.ProcessedKeywords) != 0 || st.TotalKeywords != 2 {
		t.Errorf("expected clean state after begin, got %+v", st)
	}
	if st.EndTime != "" {
		t.Errorf("expected end time cleared, got %q", st.EndTime)
	}
	// A notice from the previous run must be collectible again.
	if added := s.AddResults([]bid.Notice{{Title: "이전 공고", Number: "1"}}); added != 1 {
		t.Errorf("expected dedupe set reset, added %d", added)
	}
}

func TestSessionAddResultsDedupes(t *testing.T) {
	s := NewSession()
	s.Begin(2)

	first := s.AddResults([]bid.Notice{
		{Title: "공고 A", Number: "100"},
		{Title: "공고 B", Number: "200"},
	})
	if first != 2 {
		t.Errorf("expected 2 added, got %d", first)
	}

	second := s.AddResults([]bid.Notice{
		{Title: "공고 A", Number: "100"},
		{Title: "공고 C", Number: "300"},
	})
	if second != 1 {
		t.Errorf("expected 1 added on overlap, got %d", second)
	}
	if n := len(s.Results()); n != 3 {
		t.Errorf("expected 3 results total, got %d", n)
	}
}

func TestSessionMarkProcessedOnce(t *testing.T) {
	s := NewSession()
	s.Begin(1)
	s.MarkProcessed("학교")
	s.MarkProcessed("학교")
	if got := s.Processed(); len(got) != 1 {
		t.Errorf("expected one processed keyword, got %v", got)
	}
}

func TestSessionStopStampsEndTime(t *testing.T) {
	s := NewSession()
	s.Begin(1)

	if !s.Stop() {
		t.Fatal("expected stop to succeed while running")
	}
	if s.Stop() {
		t.Error("expected second stop to report not running")
	}

	st := s.Status()
	if st.IsRunning {
		t.Error("expected running false after stop")
	}
	if st.EndTime == "" {
		t.Error("expected end time after stop")
	}
}

func TestSessionStatusMarshalsEmptyKeywordList(t *testing.T) {
	s := NewSession()
	s.Begin(2)

	data, err := json.Marshal(s.Status())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"processed_keywords":[]`) {
		t.Errorf("expected empty list, not null: %s", data)
	}
}
