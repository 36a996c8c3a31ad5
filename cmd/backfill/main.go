package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dart_accounts/pkg/core/backfill"
	"dart_accounts/pkg/core/catalog"
	"dart_accounts/pkg/core/classify"
	"dart_accounts/pkg/core/config"
	"dart_accounts/pkg/core/logging"
	"dart_accounts/pkg/core/metrics"
	"dart_accounts/pkg/core/store"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to server.yaml")
	limit := flag.Int("limit", 0, "rows per batch (default: backfill.limit from config)")
	all := flag.Bool("all", false, "repeat batches until no incomplete rows remain")
	gateway := flag.String("pushgateway", "", "Pushgateway URL for run metrics (default: backfill.pushgateway from config)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found, using environment variables")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *limit <= 0 {
		*limit = cfg.Backfill.Limit
	}
	if *gateway == "" {
		*gateway = cfg.Backfill.Pushgateway
	}
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.InitDB(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer store.Close()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.LoadFile(cfg.Catalog.Path); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	// Metrics only leave the process through a Pushgateway.
	var m *metrics.Metrics
	if *gateway != "" {
		m = metrics.New()
	}

	w := backfill.New(
		store.NewLinesRepo(store.GetPool()),
		classify.NewMemo(classify.New(cat), cfg.MemoTTL()),
		backfill.WithLogger(logger),
		backfill.WithMetrics(m),
	)

	var (
		total  int
		runErr error
	)
	for {
		res, err := w.Run(ctx, *limit)
		total += res.Updated
		if err != nil {
			runErr = err
			break
		}
		if !*all || res.Updated < *limit {
			break
		}
	}

	if err := m.Push(context.Background(), *gateway, "dart_accounts_backfill"); err != nil {
		log.Printf("Warning: %v", err)
	}

	if runErr != nil {
		fmt.Printf("[BACKFILL] stopped after %d rows: %v\n", total, runErr)
		store.Close()
		os.Exit(1)
	}
	fmt.Printf("[BACKFILL] updated %d rows\n", total)
}
