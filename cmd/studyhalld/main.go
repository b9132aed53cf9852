package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"studyhall-backend/config"
	"studyhall-backend/internal/api"
	"studyhall-backend/internal/db"
	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/logging"
	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/notification"
	"studyhall-backend/internal/occupancy"
	"studyhall-backend/internal/sensor"
	"studyhall-backend/internal/sensorbridge"
	"studyhall-backend/internal/server"
	"studyhall-backend/internal/session"
	"studyhall-backend/internal/store"
	"studyhall-backend/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "studyhalld: %v\n", err)
		os.Exit(1)
	}
}

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "./config/config.yaml"
}

func run() error {
	var (
		cfgFlag    string
		listenAddr string
	)
	flagSet := pflag.NewFlagSet("studyhalld", pflag.ContinueOnError)
	flagSet.StringVarP(&cfgFlag, "config", "c", "", "path to config file (default: $CONFIG_PATH or ./config/config.yaml)")
	flagSet.StringVar(&listenAddr, "listen", "", "override socket.listen_addr")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	path := configPath(cfgFlag)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	if listenAddr != "" {
		cfg.Socket.ListenAddr = listenAddr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "studyhalld")
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("configuration loaded", zap.String("path", path))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	h := hub.New(logger, m)
	occ := occupancy.NewService(appStore, occupancy.PolicyFromConfig(cfg.Occupancy),
		occupancy.WithLogger(logger), occupancy.WithMetrics(m))
	sensors := sensor.NewCache(appStore, logger, m)

	socketServer := server.New(cfg.Socket, session.Deps{
		Hub:       h,
		Occupancy: occ,
		Sensors:   sensors,
		Chat:      appStore,
		Log:       logger,
		Metrics:   m,
	})
	go func() {
		if err := socketServer.ListenAndServe(ctx); err != nil {
			logger.Error("socket server stopped", zap.Error(err))
			stop()
		}
	}()

	webpushOptions := notification.Options(cfg.Push)
	var notifier sweeper.Notifier
	if cfg.Push.Enabled() {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Warn("VAPID keys not configured; release notifications are disabled")
	}

	if cfg.Sweeper.Enabled {
		go sweeper.NewService(cfg.Sweeper, occ, h, notifier, logger, m).Run(ctx)
	}

	if cfg.MQTT.Enabled {
		bridge := sensorbridge.New(sensors, h, logger, m)
		mqttClient, err := sensorbridge.Connect(ctx, cfg.MQTT, bridge, logger)
		if err != nil {
			logger.Error("sensor bridge unavailable", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
		}
	}

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Occupancy: occ,
		Sensors:   sensors,
		Hub:       h,
		Push:      cfg.Push,
		Log:       logger,
	})
	router := api.NewRouter(cfg.Server, handler, api.Extras{
		WebSocket: socketServer.HandleWebSocket,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	if err := socketServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("socket server shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
	return nil
}
