package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

func TestStoreSaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	path, err := store.Save([]string{"학교"}, []bid.Notice{
		{Title: "공고 A", Number: "100", Agency: "서울특별시교육청", Status: bid.StatusBidding},
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.Contains(path, "crawl_results_") || !strings.HasSuffix(path, ".json") {
		t.Errorf("unexpected export path %q", path)
	}

	export, err := store.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if export.TotalItems != 1 || len(export.Results) != 1 {
		t.Errorf("unexpected export %+v", export)
	}
	if export.Results[0].Title != "공고 A" || export.Results[0].Status != bid.StatusBidding {
		t.Errorf("unexpected notice %+v", export.Results[0])
	}
	if export.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestStoreListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	if _, err := store.Save([]string{"학교"}, nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("메모"), 0644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "crawl_results_bad.txt"), nil, 0644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected 1 export, got %d", len(names))
	}
	if !strings.HasPrefix(names[0], "crawl_results_") {
		t.Errorf("unexpected name %q", names[0])
	}
}
