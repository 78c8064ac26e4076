package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/bekci/internal/auth"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/metrics"
	"github.com/tuncerburak97/bekci/internal/proxy"
	"github.com/tuncerburak97/bekci/internal/repository"
	"github.com/tuncerburak97/bekci/internal/service"
	"github.com/tuncerburak97/bekci/internal/worker"
)

// The downstream transport must dial targets directly; inherited proxy
// environment variables would silently tunnel gateway traffic.
func clearProxyEnv() {
	for _, key := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy", "ALL_PROXY", "all_proxy"} {
		os.Unsetenv(key)
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	clearProxyEnv()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Log.Format == "json" {
		log.Logger = log.Output(os.Stdout)
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	metricsCollector := metrics.GetMetricsCollector("bekci", "bekci_gateway")

	lookupRepo, err := repository.NewLookupRepository(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize lookup store")
	}

	logRepo, err := repository.NewLogRepository(&cfg.LogDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit store")
	}

	migrateCtx := log.Logger.WithContext(context.Background())
	if err := lookupRepo.Migrate(migrateCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run lookup store migrations")
	}
	if err := logRepo.Migrate(migrateCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run audit store migrations")
	}

	pool := worker.NewPool(cfg.Auth.LookupWorkers)
	authSvc := auth.NewService(cfg.Auth.Salt, lookupRepo, pool, &log.Logger)
	auditSvc := service.NewAuditService(logRepo, metricsCollector, cfg.Audit, &log.Logger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: proxy.NewErrorHandler(cfg, auditSvc, metricsCollector, &log.Logger),
	})

	proxyHandler := proxy.NewProxyHandler(cfg, &log.Logger, lookupRepo, authSvc, auditSvc, pool, metricsCollector)
	app.All("/*", proxyHandler.Handle)

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	// Drain pending audit records before releasing the stores.
	auditSvc.Shutdown()
	pool.Close()

	if err := lookupRepo.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close lookup store")
	}
	if err := logRepo.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close audit store")
	}
}
