package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine, err := bootstrap.Open(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to start query engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("starting search service", "port", cfg.Server.Port, "engine", engine.Describe())

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(cache.WithBreaker(redisClient, resilience.CircuitBreakerConfig{}, m), cfg.Redis.CacheTTL, m)
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("publishing query events", "topic", cfg.Kafka.Topics.QueryEvents)
	}
	collector := analytics.NewCollector(publisher, aggregator, analytics.CollectorConfig{})
	collector.Start(ctx)
	defer collector.Close()

	checker := health.NewChecker()
	checker.Register("posting_source", func(ctx context.Context) health.ComponentHealth {
		n, err := engine.Source.NumDocs()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", n)}
	})
	if engine.Postgres != nil {
		checker.Register("postgres", health.PingCheck(engine.Postgres, false))
	}
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient, true)(ctx)
	})

	h := handler.New(engine.Executor, queryCache, collector, engine.Diversity, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	routerCfg := router.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		routerCfg.Limiter = middleware.NewLimiter(rl.Requests, rl.Window)
		go routerCfg.Limiter.Run(ctx, 5*time.Minute)
		slog.Info("rate limiting enabled", "requests", rl.Requests, "window", rl.Window)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(routerCfg, h, aggregator, checker, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Shutdown returns once in-flight requests finish; the collector and
	// clients are closed by the defers only after that.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}
