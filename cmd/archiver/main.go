package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/groundwatch/internal/adapters/nats"
	"github.com/samirrijal/groundwatch/internal/adapters/postgres"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
	"github.com/samirrijal/groundwatch/internal/pkg/config"
	"github.com/samirrijal/groundwatch/internal/pkg/logging"
)

// The archiver drains chat and prediction events from JetStream into the
// analyses table that backs the signed-in dashboard.
func main() {
	cfg, err := config.Load("groundwatch-archiver")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("groundwatch-archiver", logLevel, "json")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	archive := usecases.NewAnalysisService(postgres.NewAnalysisRepo(db), nil, nil)

	if err := sub.SubscribeAnalyses(ctx, archive.Archive); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("archiver started", "durable", natsadapter.ArchiverDurable)
	<-ctx.Done()
	slog.Info("archiver stopping")
}
