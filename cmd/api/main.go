package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/andrifirman/go-print-assets/internal/binder"
	"github.com/andrifirman/go-print-assets/internal/blob"
	"github.com/andrifirman/go-print-assets/internal/config"
	"github.com/andrifirman/go-print-assets/internal/drafts"
	"github.com/andrifirman/go-print-assets/internal/favorites"
	"github.com/andrifirman/go-print-assets/internal/fetch"
	"github.com/andrifirman/go-print-assets/internal/httpx"
	"github.com/andrifirman/go-print-assets/internal/postgres"
	"github.com/andrifirman/go-print-assets/internal/redisx"
	"github.com/andrifirman/go-print-assets/internal/tierstore"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Storage + tiers
	disk, err := blob.NewDisk(cfg.BlobRoot)
	if err != nil {
		log.Error("blob root unusable", "root", cfg.BlobRoot, "err", err)
		os.Exit(1)
	}
	fetcher := fetch.New(cfg.FetchTimeout)
	tiers := tierstore.New(disk, fetcher, log)

	// Draft registry + eviction sweep
	registry := drafts.New(cfg.DraftTTL, cfg.SweepInterval, drafts.WithLogger(log))
	registry.Start(ctx)
	defer registry.Stop()

	// Services & handlers
	favSvc := favorites.NewService(&favorites.Repo{DB: db}, tiers, log)

	router := httpx.NewRouter()
	(&httpx.DraftsHandler{Registry: registry, Fetcher: fetcher}).Register(router)
	(&httpx.FavoritesHandler{Service: favSvc, Redis: rdb}).Register(router)
	(&httpx.OrderAssetsHandler{Results: &binder.Repo{DB: db}, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen failed", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
}
