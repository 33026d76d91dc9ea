package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"vandevis/internal/amqp"
	"vandevis/internal/cli"
	"vandevis/internal/sheets"
	gsheet "vandevis/internal/sheets/google"
	sheetmem "vandevis/internal/sheets/memory"
	"vandevis/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting vandevis-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Google Sheets is the production export target; without credentials the
	// worker falls back to the in-memory writer so consumption still drains
	// the queue.
	var writer sheets.QuoteWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = sheetmem.New()
		logger.Info("Google Sheets disabled - exporting to memory writer")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQuoteQueue, cfg.AMQPAuditQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, writer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeQuoteLocked(ctx, func(msg *amqp.QuoteLockedMessage) error {
			return exportWorker.HandleQuoteLocked(ctx, msg)
		})
	})

	logger.Info("Worker consuming quote events", "queue", cfg.AMQPQuoteQueue)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
