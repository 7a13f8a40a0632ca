package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/binder"
	"github.com/andrifirman/go-print-assets/internal/blob"
	"github.com/andrifirman/go-print-assets/internal/config"
	"github.com/andrifirman/go-print-assets/internal/fetch"
	kafkax "github.com/andrifirman/go-print-assets/internal/kafka"
	"github.com/andrifirman/go-print-assets/internal/postgres"
	"github.com/andrifirman/go-print-assets/internal/redisx"
	"github.com/andrifirman/go-print-assets/internal/render"
	"github.com/andrifirman/go-print-assets/internal/renderworker"
	"github.com/andrifirman/go-print-assets/internal/sizes"
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

	// Storage + render engine
	disk, err := blob.NewDisk(cfg.BlobRoot)
	if err != nil {
		log.Error("blob root unusable", "root", cfg.BlobRoot, "err", err)
		os.Exit(1)
	}
	tiers := tierstore.New(disk, fetch.New(cfg.FetchTimeout), log)

	contract, err := sizes.Load(ctx, db, assets.SizeSpec{Width: cfg.DefaultPrintW, Height: cfg.DefaultPrintH})
	if err != nil {
		log.Error("size contract load failed", "err", err)
		os.Exit(1)
	}

	engine := &render.Engine{
		Tiers:    tiers,
		Contract: contract,
		Timeout:  cfg.RenderTimeout,
		DPI:      cfg.PrintDPI,
		Log:      log,
	}

	// Producer: rendered assets
	prod := kafkax.NewProducer(cfg.KafkaBrokers, assets.TopicAssetsRendered, 1024, log)
	prod.Start(ctx)

	svc := &renderworker.Service{
		Binder:      binder.New(engine, cfg.RenderParallel, log),
		Results:     &binder.Repo{DB: db},
		Dedup:       &redisx.Deduper{Client: rdb, Scope: "renderer"},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-renderer",
		Log:         log,
	}

	group := getenv("RENDERER_GROUP", "renderer-svc")
	workers := mustAtoi(os.Getenv("RENDERER_WORKERS"), "2")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, assets.TopicPaymentAuthorized, workers, log)

	go func() {
		log.Info("render consumer started",
			"group", group, "topic", assets.TopicPaymentAuthorized, "workers", workers)
		if err := cons.Start(ctx, svc.HandlePaymentAuthorized); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down renderer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
