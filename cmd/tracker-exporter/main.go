package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/cli"
	"tracker/internal/log"
	"tracker/internal/sheets"
	"tracker/internal/sheets/gcs"
	gsheet "tracker/internal/sheets/google"
	"tracker/internal/sheets/memory"
	"tracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting tracker-exporter")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" && cfg.ExportInterval <= 0 {
		logger.Error("Nothing to do: set AMQP_URL or EXPORT_INTERVAL")
		os.Exit(1)
	}

	// The exporter only reads, so it never publishes events of its own
	amqpURL := cfg.AMQPURL
	cfg.AMQPURL = ""
	res := cli.InitBackend(context.Background(), logger, cfg)
	cfg.AMQPURL = amqpURL

	var (
		writer      sheets.DatasetWriter
		closeWriter = func() error { return nil }
	)
	switch {
	case cfg.GoogleSpreadsheetID != "":
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case os.Getenv("GCS_BUCKET") != "":
		w, err := gcs.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Cloud Storage client", log.FieldError, err)
			os.Exit(1)
		}
		writer, closeWriter = w, w.Close
	default:
		writer = memory.New()
		logger.Warn("Neither GOOGLE_SPREADSHEET_ID nor GCS_BUCKET set, datasets are kept in memory only")
	}

	exporter := worker.NewExportWorker(res.Ledger, writer)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		consumer = c
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := closeWriter(); err != nil {
			logger.Error("Dataset writer close error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := exporter.ExportNow(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	if consumer != nil {
		go func() {
			err := consumer.ConsumeTransactionRecorded(ctx, exporter.HandleMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}
	go exporter.RunPeriodic(ctx, cfg.ExportInterval)

	cli.WaitForShutdown(ctx, done)
	exports, last := exporter.Stats()
	logger.Info("Exporter stopped", "exports", exports, "last_run", last)
}
