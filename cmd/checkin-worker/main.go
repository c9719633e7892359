package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"checkin/internal/amqp"
	"checkin/internal/cli"
	"checkin/internal/config"
	"checkin/internal/export"
	csvexport "checkin/internal/export/csv"
	gsexport "checkin/internal/export/google"
	applog "checkin/internal/log"
	"checkin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.ExportBackend == "none" {
		logger.Info("export backend is none, nothing to do")
		return
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	exporter, err := buildExporter(context.Background(), cfg)
	if err != nil {
		logger.Error("exporter setup failed", "error", err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}
	logger.Info("exporter ready", "backend", cfg.ExportBackend)

	exportWorker := worker.NewExportWorker(repo, exporter, cfg.ExportBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on anything recorded while the worker was down.
	if n, err := exportWorker.ProcessPending(ctx); err != nil {
		logger.Error("startup export scan failed", "error", err)
	} else if n > 0 {
		logger.Info("startup export scan done", "exported", n)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("amqp connect failed", "error", err, "url", cfg.AMQPURL)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeCheckInRecorded(gctx, func(msg *amqp.CheckInRecordedMessage) error {
				return exportWorker.HandleRecordedMessage(gctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("no amqp url, relying on the periodic pending scan")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n, err := exportWorker.ProcessPending(gctx); err != nil {
					logger.Error("periodic export scan failed", "error", err)
				} else if n > 0 {
					logger.Info("periodic export scan done", "exported", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("worker stopped")
}

func buildExporter(ctx context.Context, cfg *config.Config) (export.Exporter, error) {
	switch cfg.ExportBackend {
	case "csv":
		return csvexport.New(cfg.ExportDir)
	case "sheets":
		return gsexport.New(ctx, gsexport.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
	default:
		return nil, errors.New("unknown export backend " + cfg.ExportBackend)
	}
}
