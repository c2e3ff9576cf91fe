package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/cli"
	"spendlog/internal/config"
	gsheet "spendlog/internal/sheets/google"
	"spendlog/internal/worker"
)

func main() {
	cfg, logger := cli.MustBootstrap("spendlog-worker", (*config.Config).ValidateWorker)
	logger.Info("Starting spendlog-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	sheetsClient, err := gsheet.New(initCtx, gsheet.Config{
		SpreadsheetID:   cfg.Google.SpreadsheetID,
		SheetName:       cfg.Google.SheetName,
		CredentialsJSON: cfg.Google.ServiceAccountJSON,
		CredentialsFile: cfg.Google.ServiceAccountFile,
	})
	if err == nil {
		err = sheetsClient.EnsureHeader(initCtx)
	}
	initCancel()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.Google.SpreadsheetID,
		"sheet", cfg.Google.SheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sheetsClient, cfg.DefaultTimezone, logger)

	// Consume returns once ctx is cancelled; a delivery in flight finishes first.
	err = amqpClient.Consume(ctx, syncWorker)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
