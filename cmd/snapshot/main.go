package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edusync/platform-sync/internal/app"
	"github.com/edusync/platform-sync/internal/config"
	"github.com/edusync/platform-sync/internal/snapshot"
	"github.com/edusync/platform-sync/internal/storage"
	"github.com/edusync/platform-sync/pkg/logger"
)

// snapshot copies every platform document into the configured MinIO bucket.
func main() {
	root := flag.String("prefix", "snapshots", "object key prefix")
	linkTTL := flag.Duration("link-ttl", time.Hour, "validity of the printed manifest link (0 disables)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
	if err != nil {
		logger.Fatalf("failed to init object storage: %v", err)
	}

	// the exporter only reads documents; migrations are the server's job
	cfg.Postgres.MigrateOnStart = false
	stores, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open stores: %v", err)
	}
	defer stores.Close()

	m, err := snapshot.NewExporter(stores.Docs, store, *root).Export(ctx)
	if err != nil {
		logger.Errorf("snapshot failed: %v", err)
		stores.Close()
		os.Exit(1)
	}

	if *linkTTL > 0 {
		link, err := store.GetPresignedURL(ctx, snapshot.ManifestKey(m.Prefix), *linkTTL)
		if err != nil {
			logger.Warnf("presign manifest: %v", err)
			return
		}
		logger.Infof("manifest: %s", link)
	}
}
