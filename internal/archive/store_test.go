package archive

import (
	"os"
	"testing"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "archive-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestArchiveSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save([]string{"학교", "급식"}, []bid.Notice{
		{Title: "공고 A", Number: "100", Agency: "서울특별시교육청"},
		{Title: "공고 B", Number: "200"},
	})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	if id == "" {
		t.Fatal("expected a run id")
	}

	run, err := store.Get(id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.ID != id || run.TotalItems != 2 {
		t.Errorf("unexpected run %+v", run)
	}
	if len(run.Results) != 2 || run.Results[0].Title != "공고 A" {
		t.Errorf("expected full results in get, got %+v", run.Results)
	}
	if len(run.Keywords) != 2 {
		t.Errorf("expected keywords preserved, got %v", run.Keywords)
	}
}

func TestArchiveGetNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("00000000-0000-0000-0000-000000000000"); err == nil {
		t.Error("expected error for unknown run id")
	}
}

func TestArchiveListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save([]string{"학교"}, []bid.Notice{{Title: "공고 A"}})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := store.Save([]string{"급식"}, []bid.Notice{{Title: "공고 B"}, {Title: "공고 C"}})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	runs, err := store.List(0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].Results != nil {
		t.Error("expected listings without result payloads")
	}
	if runs[0].TotalItems != 2 {
		t.Errorf("expected item count in listing, got %d", runs[0].TotalItems)
	}

	limited, err := store.List(1)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != second {
		t.Errorf("expected only the newest run, got %+v", limited)
	}
}
