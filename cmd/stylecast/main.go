package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelworks/stylecast/internal/activeset"
	"github.com/reelworks/stylecast/internal/cleanup"
	"github.com/reelworks/stylecast/internal/config"
	"github.com/reelworks/stylecast/internal/db"
	"github.com/reelworks/stylecast/internal/ffmpeg"
	"github.com/reelworks/stylecast/internal/fonts"
	"github.com/reelworks/stylecast/internal/orchestrator"
	"github.com/reelworks/stylecast/internal/render"
)

func main() {
	renderJob := flag.String("render-job", "", "render the given job ID and exit (worker mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] Failed to load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("[Main] Failed to create directories: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Main] Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *renderJob != "" {
		if err := runWorker(ctx, cfg, database, *renderJob); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("[Main] Failed to ensure schema: %v", err)
	}
	runOrchestrator(ctx, cfg, database)
}

// runWorker is the child-process mode: render exactly one job, then exit.
// The exit code is informational; the job status in the database is the
// authoritative outcome.
func runWorker(ctx context.Context, cfg *config.Config, database *db.DB, jobID string) error {
	w := &render.Worker{
		DB:     database,
		Cfg:    cfg,
		FFmpeg: ffmpeg.NewService(cfg.VideoInfoCacheFile),
		Fonts:  fonts.NewResolver(cfg.FontCacheDir, cfg.FontsDir, cfg.FontCatalogFile, cfg.GoogleFontsAPIKey, cfg.DefaultFont),
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return w.Run(ctx, jobID)
}

func runOrchestrator(ctx context.Context, cfg *config.Config, database *db.DB) {
	active, err := activeset.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[Main] Failed to connect to redis: %v", err)
	}
	defer active.Close()

	// A fresh start means no workers are running: clear stale claims and
	// fail jobs a dead process left in rendering.
	if err := active.Clear(ctx); err != nil {
		log.Fatalf("[Main] Failed to clear active set: %v", err)
	}

	binary, err := os.Executable()
	if err != nil {
		log.Fatalf("[Main] Failed to resolve own binary: %v", err)
	}

	o := &orchestrator.Orchestrator{
		Jobs:     database,
		Active:   active,
		Interval: cfg.PollInterval,
		Spawn:    orchestrator.ProcessSpawner(binary),
	}
	if err := o.RecoverStaleJobs(ctx); err != nil {
		log.Fatalf("[Main] %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.Run(ctx)
	})
	g.Go(func() error {
		retention := time.Duration(cfg.OutputRetentionHours) * time.Hour
		interval := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
		return cleanup.Run(ctx, cfg.OutputsDir, retention, interval)
	})

	log.Printf("[Main] stylecast running")
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("[Main] %v", err)
	}
	log.Printf("[Main] Shutdown complete")
}
