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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/inframind/infra-mind/internal/api"
	"github.com/inframind/infra-mind/internal/auth"
	"github.com/inframind/infra-mind/internal/cache"
	"github.com/inframind/infra-mind/internal/config"
	"github.com/inframind/infra-mind/internal/detector"
	"github.com/inframind/infra-mind/internal/metrics"
	"github.com/inframind/infra-mind/internal/risk"
	"github.com/inframind/infra-mind/internal/services"
	"github.com/inframind/infra-mind/internal/store"
	"github.com/inframind/infra-mind/internal/utils"
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
	logger.Info("starting infra-mind",
		slog.String("version", cfg.App.Version),
		slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	timeSeries := store.New(cfg.Store.MaxEntries)
	anomalyDetector := detector.New(timeSeries)

	profiles, err := risk.LoadProfiles(cfg.Risk.ProfilesPath, logger)
	if err != nil {
		logger.Error("failed to load threshold profiles", slog.Any("error", err))
		os.Exit(1)
	}

	scorer, err := risk.NewScorer(
		timeSeries,
		anomalyDetector,
		risk.Thresholds{CPU: cfg.Risk.CPUThreshold, Memory: cfg.Risk.MemoryThreshold, GPU: cfg.Risk.GPUThreshold},
		risk.Weights{Anomaly: cfg.Risk.AnomalyWeight, Breach: cfg.Risk.BreachWeight},
		profiles,
	)
	if err != nil {
		logger.Error("invalid risk configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var cacheTTL time.Duration
	if cfg.Cache.Enabled {
		cacheProvider = cache.NewMemoryProvider()
		cacheTTL = cfg.Cache.AssessmentTTL
	}
	defer cacheProvider.Close()

	var authManager *auth.Manager
	if cfg.Auth.Enabled || len(cfg.Auth.Users) > 0 {
		authManager = auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		for _, u := range cfg.Auth.Users {
			if _, err := authManager.Register(u.Email, u.Password, u.FullName); err != nil {
				logger.Error("failed to seed user", slog.String("email", u.Email), slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	service := services.NewMonitorService(logger, timeSeries, anomalyDetector, scorer, cacheProvider, cacheTTL)
	handler := api.NewHandler(logger, service, authManager, cfg)

	server, err := api.NewServer(cfg.Server, handler.Routes())
	if err != nil {
		logger.Error("failed to create API server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

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
		group.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		logger.Info("API server listening", slog.String("address", server.Address()))
		return server.Start()
	})

	group.Go(func() error {
		<-groupCtx.Done()
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
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("infra-mind stopped")
}
