package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/conorfennell/archpad/internal/cache"
	"github.com/conorfennell/archpad/internal/config"
	"github.com/conorfennell/archpad/internal/notify"
	"github.com/conorfennell/archpad/internal/seedsource"
	"github.com/conorfennell/archpad/internal/storage"
	"github.com/conorfennell/archpad/internal/studytime"
	appsync "github.com/conorfennell/archpad/internal/sync"
	"github.com/conorfennell/archpad/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	sink := notify.NewConsole(slog.Default())

	db, err := storage.Open(cfg.DBPath, sink)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// Seed the fallback glossary. Only empty mirrors are filled, so a
	// stale seed never clobbers synced data.
	if cfg.SeedRepo != "" {
		if err := seedsource.Sync(cfg.SeedRepo, cfg.SeedDir); err != nil {
			slog.Warn("seed repository sync failed", "error", err)
		}
	}
	if cfg.SeedDir != "" {
		if err := seedsource.Provision(db, cfg.SeedDir); err != nil {
			slog.Warn("seed provisioning failed", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := cache.NewWorker(cache.NewStore(cfg.CacheDir), cfg.Origin, cfg.CacheVersion, cfg.Manifest)
	// Activation only follows a successful install; a failed install
	// leaves any previously swept-in version untouched.
	if err := worker.Install(ctx); err != nil {
		slog.Warn("cache install failed, continuing without precache", "error", err)
	} else if err := worker.Activate(ctx); err != nil {
		slog.Warn("cache activate failed", "error", err)
	}
	defer worker.Close()

	syncer := appsync.New(db, cfg.APIBase, sink)
	if _, err := syncer.SyncFromServer(ctx); err != nil {
		slog.Warn("startup sync failed", "error", err)
	}

	acc := studytime.New(db, sink)
	acc.Poll = cfg.StudyPoll
	acc.Threshold = cfg.StudyThreshold
	acc.Start()
	defer acc.Stop()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: web.NewServer(worker, syncer),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	slog.Info("shell server listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
