package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/archive"
	"github.com/EnzoMH/cradcrawl/internal/config"
	"github.com/EnzoMH/cradcrawl/internal/crawl"
	"github.com/EnzoMH/cradcrawl/internal/engine"
	"github.com/EnzoMH/cradcrawl/internal/results"
	"github.com/EnzoMH/cradcrawl/internal/server"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting bid crawl server (engine: %s)", cfg.Engine)

	resultsStore, err := results.NewStore(cfg.ResultsDir)
	if err != nil {
		log.Fatalf("Failed to open results dir: %v", err)
	}
	if names, err := resultsStore.List(); err == nil && len(names) > 0 {
		log.Printf("Found %d saved result file(s) in %s", len(names), resultsStore.Dir())
	}

	archiveStore, err := archive.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open run archive: %v", err)
	}
	defer archiveStore.Close()

	factory, err := engineFactory(cfg)
	if err != nil {
		log.Fatalf("Failed to configure engine: %v", err)
	}

	session := crawl.NewSession()
	hub := server.NewHub(session)
	saver := crawl.Savers{resultsStore, archiveStore}
	handlers := server.NewHandlers(session, hub, factory, saver, archiveStore)
	router := server.NewRouter(handlers, hub)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// engineFactory builds a fresh engine per crawl. The script path is
// re-read on every run so a scenario can be edited between runs.
func engineFactory(cfg *config.Config) (server.EngineFactory, error) {
	switch cfg.Engine {
	case "g2b":
		return func() (engine.Engine, error) {
			return engine.NewG2B(cfg.G2BBaseURL), nil
		}, nil
	case "script":
		if _, err := os.Stat(cfg.ScriptPath); err != nil {
			return nil, fmt.Errorf("script scenario %s: %w", cfg.ScriptPath, err)
		}
		return func() (engine.Engine, error) {
			return engine.LoadScript(cfg.ScriptPath)
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want g2b or script)", cfg.Engine)
	}
}
