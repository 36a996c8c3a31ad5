package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dart_accounts/pkg/api/accounts"
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
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	log := logging.Component(logging.New(cfg.Logging.Level), "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.InitDB(ctx); err != nil {
		log.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.LoadFile(cfg.Catalog.Path); err != nil {
			log.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
			os.Exit(1)
		}
	}
	log.Info("catalog loaded", "definitions", cat.Len(), "path", cfg.Catalog.Path)

	m := metrics.New()
	memo := classify.NewMemo(classify.New(cat), cfg.MemoTTL())
	h := accounts.NewHandler(store.NewLinesRepo(store.GetPool()), cat, memo, m, logging.New(cfg.Logging.Level))
	h.AllowedOrigin = cfg.Server.AllowedOrigin

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("API server starting", "addr", cfg.Server.Addr)
	fmt.Println("  - GET  /api/accounts/canon-keys?sj_div=")
	fmt.Println("  - GET  /api/accounts/classify?sj_div=&account_id=&account_nm=")
	fmt.Println("  - GET  /api/accounts/list?year=&reprt_code=&fs_div=&sj_div=&corp_code=")
	fmt.Println("  - GET  /api/accounts/compare?...&canon_key=|account_id=&account_nm=&format=json|md|html")
	fmt.Println("  - GET  /metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
