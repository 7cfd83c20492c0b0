package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/redis"
)

// redisTimeout bounds every shared-cache call on the query path.
const redisTimeout = 200 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("searcher", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	groups, err := normalize.LoadSynonymsFile(cfg.Search.SynonymsFile)
	if err != nil {
		return err
	}
	n, err := normalize.New(groups)
	if err != nil {
		return fmt.Errorf("building normalizer: %w", err)
	}

	exec := executor.New(cfg.Search.IndexPath, n, m)
	if err := exec.Load(); err != nil {
		slog.Warn("no index served yet, waiting for a build", "path", cfg.Search.IndexPath, "error", err)
	}

	checker := health.NewChecker()
	checker.Register("index", health.Required(exec.Ready))

	var backend cache.Backend
	if cfg.Redis.Enabled() {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared cache disabled", "error", err)
		} else {
			defer client.Close()
			backend = client
			checker.Register("redis", health.Optional(client.Ping))
			slog.Info("shared query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache, err := cache.New(backend, cache.Options{
		Size:           cfg.Search.CacheSize,
		TTL:            cfg.Redis.CacheTTL,
		Timeout:        redisTimeout,
		ComputeTimeout: cfg.Server.RequestTimeout,
	}, m)
	if err != nil {
		return err
	}

	reloader := reload.New(exec, reload.OnReload(queryCache.Purge))
	if cfg.Search.WatchIndex {
		go func() {
			if err := reloader.Watch(ctx); err != nil {
				slog.Error("index watcher stopped", "error", err)
			}
		}()
	}

	agg := analytics.NewAggregator()
	var publisher kafka.Publisher = kafka.NopPublisher{}
	var sink analytics.Recorder = agg
	if cfg.Kafka.Enabled() {
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, host)

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
		// Every replica's events come back through the topic.
		sink = nil

		consumers := []*kafka.Consumer{
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group+"-reload", reloader.HandleComplete()),
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, group+"-analytics", analytics.HandleEvent(agg)),
		}
		for _, c := range consumers {
			defer c.Close()
			go func() {
				if err := c.Start(ctx); err != nil {
					slog.Error("kafka consumer stopped", "error", err)
				}
			}()
		}
		slog.Info("kafka enabled",
			"reload_topic", cfg.Kafka.Topics.IndexComplete,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
			"group", group,
		)
	}
	collector := analytics.NewCollector(publisher, sink, analytics.CollectorOptions{})
	collector.Start(ctx)
	defer collector.Close()

	if cfg.Postgres.Enabled() {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			checker.Register("postgres", health.Optional(db.DB.PingContext))
			store, err := aggregator.NewStore(ctx, db)
			if err != nil {
				slog.Warn("analytics snapshots disabled", "error", err)
			} else {
				if last, err := store.LatestSnapshot(ctx); err != nil {
					slog.Warn("reading last analytics snapshot failed", "error", err)
				} else if last != nil {
					slog.Info("previous analytics snapshot", "total_searches", last.TotalSearches)
				}
				go store.Run(ctx, agg, time.Minute)
			}
		}
	}

	h := handler.New(exec, queryCache, collector, cfg.Search.DefaultLimit, cfg.Search.MaxResults, m)
	analyticsH := analytics.NewHandler(agg)

	var search http.Handler = http.HandlerFunc(h.Search)
	if rl := cfg.Search.RateLimit; rl.Enabled {
		limiter := middleware.NewLimiter(rl.RequestsPerSecond, rl.Burst)
		go limiter.Run(ctx)
		search = middleware.RateLimit(limiter)(search)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/search", search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())
	if dir := cfg.Search.PagesDir; dir != "" {
		mux.Handle("GET /pages/", immutable(http.StripPrefix("/pages/", http.FileServer(http.Dir(dir)))))
		slog.Info("serving rendered pages", "dir", dir)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.CORS(cfg.Search.CORSOrigin)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "index", cfg.Search.IndexPath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// immutable marks responses as cacheable forever. Page images are named by
// their content hash.
func immutable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		next.ServeHTTP(w, r)
	})
}
