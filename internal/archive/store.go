// Package archive keeps a local history of completed runs so past crawls
// survive server restarts.
package archive

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

// Run is one completed crawl as stored. Listings carry it without Results
// to keep payloads small; Get returns the full record.
type Run struct {
	ID         string       `json:"id"`
	FinishedAt time.Time    `json:"finished_at"`
	Keywords   []string     `json:"keywords"`
	TotalItems int          `json:"total_items"`
	Results    []bid.Notice `json:"results,omitempty"`
}

const (
	runPrefix = "run:"
	idPrefix  = "runid:"
)

type Store struct {
	db *badger.DB
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save records a finished run and returns its id. Implements crawl.Saver.
func (s *Store) Save(keywords []string, results []bid.Notice) (string, error) {
	run := Run{
		ID:         uuid.New().String(),
		FinishedAt: time.Now(),
		Keywords:   keywords,
		TotalItems: len(results),
		Results:    results,
	}

	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}

	key := runKey(run.FinishedAt, run.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(idPrefix+run.ID), key)
	})
	if err != nil {
		return "", fmt.Errorf("store run: %w", err)
	}
	return run.ID, nil
}

// Get returns one archived run with its full result list.
func (s *Store) Get(id string) (*Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if err != nil {
			return err
		}
		var key []byte
		if err := item.Value(func(val []byte) error {
			key = append([]byte{}, val...)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	return &run, nil
}

// List returns run summaries newest first, up to limit (0 = no limit).
func (s *Store) List(limit int) ([]Run, error) {
	var runs []Run

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(runPrefix)
		it.Seek(prefix)

		for it.ValidForPrefix(prefix) && (limit <= 0 || len(runs) < limit) {
			var run Run
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			})
			if err != nil {
				return err
			}
			run.Results = nil
			runs = append(runs, run)
			it.Next()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// runKey inverts the timestamp so badger's ascending iteration yields the
// newest run first.
func runKey(finished time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runPrefix, math.MaxInt64-finished.UnixNano(), id))
}
