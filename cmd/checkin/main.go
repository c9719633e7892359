package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"checkin/internal/amqp"
	"checkin/internal/auth"
	"checkin/internal/cli"
	apphttp "checkin/internal/http"
	applog "checkin/internal/log"
	"checkin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// AMQP is optional; without it check-ins stay local and the export
	// worker picks them up from the pending scan.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("amqp connect failed", "error", err, "url", cfg.AMQPURL)
			os.Exit(1)
		}
		publisher = client
		logger.Info("amqp publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	checkins := services.NewCheckInService(repo, publisher)
	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:      ":" + cfg.Port,
		AdminSlug: cfg.AdminSlug,
	}, repo, checkins, sessions, logger)
	if err != nil {
		logger.Error("server setup failed", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := checkins.Close(); err != nil {
			logger.Error("service close error", "error", err)
		}
	})

	logger.Info("server starting", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("server stopped")
}
