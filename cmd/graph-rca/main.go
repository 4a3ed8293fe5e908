package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aiopstack/graph-rca/internal/analyzer"
	"github.com/aiopstack/graph-rca/internal/api"
	"github.com/aiopstack/graph-rca/internal/bus"
	"github.com/aiopstack/graph-rca/internal/config"
	"github.com/aiopstack/graph-rca/internal/correlator"
	"github.com/aiopstack/graph-rca/internal/gc"
	"github.com/aiopstack/graph-rca/internal/graphcache"
	"github.com/aiopstack/graph-rca/internal/inference"
	"github.com/aiopstack/graph-rca/internal/metrics"
	"github.com/aiopstack/graph-rca/internal/pipeline"
	"github.com/aiopstack/graph-rca/internal/store"
	"github.com/aiopstack/graph-rca/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting graph-rca", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graphStore, err := store.NewNeo4jStore(ctx, store.Neo4jConfig{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
		Timeout:  cfg.Graph.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to graph store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := graphStore.Close(closeCtx); err != nil {
			logger.Warn("graph store close", slog.Any("error", err))
		}
	}()

	broker, err := bus.New(ctx, bus.Config{
		Addr:           cfg.Broker.Addr,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		DB:             cfg.Broker.DB,
		AnomalyChannel: cfg.Broker.AnomalyChannel,
		ResultChannel:  cfg.Broker.ResultChannel,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to broker", slog.Any("error", err))
		os.Exit(1)
	}
	defer broker.Close()

	clock := clockwork.NewRealClock()
	provider := graphcache.NewProvider(graphStore, cfg.Cache.TTL, logger, clock)

	graphAnalyzer := analyzer.New(logger)
	eventCorrelator := correlator.New(cfg.Correlation.Window)
	inferenceEngine := inference.New(logger)
	rcaPipeline := pipeline.New(logger, provider, graphAnalyzer, eventCorrelator, inferenceEngine, broker, cfg.Analysis.MaxDepth)

	collector := gc.NewCollector(graphStore, cfg.GC.TTLPolicy(), cfg.GC.BatchSize, logger, clock)
	if cfg.GC.Enabled {
		scheduler := gc.NewScheduler(collector, cfg.GC.Interval, cfg.GC.DryRun, logger)
		go scheduler.Run(ctx)
	}

	handlers := api.NewHandlers(provider, collector, graphAnalyzer, cfg.Analysis.MaxDepth, logger)
	server := api.NewServer(cfg.Server, handlers, logger)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	go func() {
		if consumeErr := broker.ConsumeAnomalies(ctx, rcaPipeline.ProcessAnomaly); consumeErr != nil {
			logger.Error("anomaly consumer exited", slog.Any("error", consumeErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("graph-rca stopped")
}
