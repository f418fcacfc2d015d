// Package engine abstracts where bid notices come from: the live 나라장터
// site or a scripted scenario for demos and tests.
package engine

import (
	"context"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

type SearchOptions struct {
	// Date range in YYYY-MM-DD, both optional.
	StartDate string
	EndDate   string
	// MaxItems caps how many rows a single keyword may yield; 0 means no cap.
	MaxItems int
	// Headless is a hint for browser-backed engines; HTTP engines ignore it.
	Headless bool
}

type Engine interface {
	// Init prepares the engine. Failures here abort the whole run.
	Init(ctx context.Context) error
	// Search returns the list rows matching one keyword, without detail
	// fields. An empty slice with nil error means no matches.
	Search(ctx context.Context, keyword string, opts SearchOptions) ([]bid.Notice, error)
	// Details enriches one notice in place from its detail page.
	Details(ctx context.Context, n *bid.Notice) error
	Close() error
}
