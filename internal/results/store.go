// Package results writes finished crawls to a results directory as JSON,
// one timestamped file per run.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

const filePrefix = "crawl_results_"

// Export is the on-disk shape of one saved run.
type Export struct {
	Timestamp  string       `json:"timestamp"`
	TotalItems int          `json:"total_items"`
	Keywords   []string     `json:"keywords"`
	Results    []bid.Notice `json:"results"`
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes crawl_results_<timestamp>.json and returns its path.
// Implements crawl.Saver.
func (s *Store) Save(keywords []string, results []bid.Notice) (string, error) {
	now := time.Now()
	export := Export{
		Timestamp:  now.Format(time.RFC3339),
		TotalItems: len(results),
		Keywords:   keywords,
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s%s.json", filePrefix, now.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// Load reads one export back by filename.
func (s *Store) Load(name string) (*Export, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("decode export %s: %w", name, err)
	}
	return &export, nil
}

// List returns export filenames, newest first. The timestamped naming makes
// lexicographic order chronological.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
