package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/edusync/platform-sync/internal/app"
	"github.com/edusync/platform-sync/internal/config"
	"github.com/edusync/platform-sync/pkg/logger"
)

// resync rebuilds every platform document from the relational store and
// removes documents whose platform no longer exists.
func main() {
	dryRun := flag.Bool("dry-run", false, "connect and report counts without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open stores: %v", err)
	}
	defer stores.Close()

	if *dryRun {
		platforms, err := stores.Records.ListPlatformIDs(ctx)
		if err != nil {
			logger.Fatalf("list platforms: %v", err)
		}
		docs, err := stores.Docs.ListIDs(ctx)
		if err != nil {
			logger.Fatalf("list documents: %v", err)
		}
		logger.Infof("dry run: %d platforms, %d documents", len(platforms), len(docs))
		return
	}

	report, err := stores.Orchestrator(cfg).Reconcile(ctx)
	if err != nil {
		logger.Fatalf("reconcile failed: %v", err)
	}
	for _, f := range report.Failed {
		logger.Errorf("platform %d: %s failed: %v", f.PlatformID, f.Op, f.Err)
	}
	if len(report.Failed) > 0 {
		stores.Close()
		os.Exit(1)
	}
}
