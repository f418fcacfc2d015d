package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/EnzoMH/cradcrawl/internal/client"
	"github.com/EnzoMH/cradcrawl/internal/monitor"
	"github.com/EnzoMH/cradcrawl/internal/state"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8000", "Crawl server base URL")
	start := flag.String("start", "", "Start a crawl with these comma-separated keywords, then watch it")
	from := flag.String("from", "", "Notice date range start (YYYY-MM-DD)")
	to := flag.String("to", "", "Notice date range end (YYYY-MM-DD)")
	headless := flag.Bool("headless", true, "Ask the server to crawl without a visible browser")
	stop := flag.Bool("stop", false, "Stop the running crawl and exit")
	status := flag.Bool("status", false, "Print current status and results, then exit")
	download := flag.Bool("download", false, "Download the current results as CSV, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := state.NewStore()
	monitor.NewRenderer(os.Stdout).Attach(store)

	cli, err := client.New(*serverURL, store)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}

	switch {
	case *stop:
		if err := cli.Stop(ctx); err != nil {
			os.Exit(1)
		}
		return
	case *status:
		if err := cli.PullStatus(ctx); err != nil {
			log.Fatalf("Failed to fetch status: %v", err)
		}
		if err := cli.PullResults(ctx); err != nil {
			log.Fatalf("Failed to fetch results: %v", err)
		}
		monitor.Summary(os.Stdout, store.Snapshot())
		return
	case *download:
		var buf bytes.Buffer
		name, err := cli.Download(ctx, &buf)
		if err != nil {
			os.Exit(1)
		}
		if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", name, err)
		}
		fmt.Printf("결과 파일을 저장했습니다: %s\n", name)
		return
	}

	runDone := make(chan error, 1)
	go func() { runDone <- cli.Run(ctx) }()

	if *start != "" {
		keywords := strings.Split(*start, ",")
		if err := cli.Start(ctx, keywords, *from, *to, *headless); err != nil {
			if errors.Is(err, client.ErrNoKeywords) {
				log.Fatal(err)
			}
			// The renderer already printed the failure log.
			cancel()
			<-runDone
			os.Exit(1)
		}
	}

	select {
	case <-ctx.Done():
	case err := <-runDone:
		if err != nil && ctx.Err() == nil {
			log.Printf("Monitor error: %v", err)
		}
	}
	cli.Close()

	fmt.Println()
	monitor.Summary(os.Stdout, store.Snapshot())
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "G2B bid-notice crawl monitor (나라장터 입찰공고 수집 모니터)\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Without flags the monitor connects and watches the current crawl.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                        # watch a running crawl\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --start 학교,병원 --from 2025-01-01      # start and watch\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stop                                 # stop the running crawl\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --download                             # save results as CSV\n", os.Args[0])
	}
}
