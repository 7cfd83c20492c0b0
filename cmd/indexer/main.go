package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("indexer", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	groups, err := normalize.LoadSynonymsFile(cfg.Build.SynonymsFile)
	if err != nil {
		return err
	}
	n, err := normalize.New(groups)
	if err != nil {
		return fmt.Errorf("building normalizer: %w", err)
	}

	opts := []indexer.BuilderOption{indexer.WithSpanLogging(cfg.Tracing.Enabled)}

	if cfg.Metrics.Enabled {
		m := metrics.New(prometheus.DefaultRegisterer)
		opts = append(opts, indexer.WithMetrics(m))
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, indexer.WithPublisher(producer))
		slog.Info("index completion events enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	if cfg.Postgres.Enabled() {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, build reports will not be stored", "error", err)
		} else {
			defer db.Close()
			store, err := indexer.NewPostgresReportStore(ctx, db)
			if err != nil {
				slog.Warn("build report store disabled", "error", err)
			} else {
				opts = append(opts, indexer.WithReportStore(store))
			}
		}
	}

	slog.Info("starting build",
		"lessons_dir", cfg.Build.LessonsDir,
		"out_dir", cfg.Build.OutDir,
		"workers", cfg.Build.Workers,
		"render_workers", cfg.Build.RenderWorkers,
		"variants", cfg.Build.Variants,
	)
	report, err := indexer.NewBuilder(cfg.Build, document.Open, n, opts...).Run(ctx)
	if err != nil {
		if indexer.IsLocked(err) {
			return fmt.Errorf("another build is running: %w", err)
		}
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		slog.Warn("build finished with failed documents", "failed", failed)
	}
	return nil
}
