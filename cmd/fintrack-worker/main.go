package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger.Logger)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Worker is using the memory backend; accrual only affects this process")
	}

	factory := backend.NewFactory(logger.Logger)
	store, err := factory.OpenStore(backendCfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	var client *amqp.Client
	if cfg.AMQPURL != "" {
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
	}

	// The accrual processor publishes through the same client so credited
	// income reaches the audit mirror.
	var publisher services.EventPublisher
	if client != nil {
		publisher = client
	}
	txs := services.NewTransactionService(store.Store, publisher)
	processor := services.NewAccrualProcessor(store.Store, txs, services.AccrualProcessorConfig{
		Interval: cfg.AccrualInterval,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx)
	})

	if client != nil {
		audit, err := factory.OpenAuditWriter(ctx, backendCfg)
		if err != nil {
			logger.Error("Failed to open audit mirror", "error", err)
			os.Exit(1)
		}
		mirror := worker.NewMirrorWorker(audit.Writer, cfg.MirrorTimeout)
		g.Go(func() error {
			logger.Info("Starting audit mirror consumer", "queue", cfg.AMQPQueue, "remote", audit.Remote)
			return client.ConsumeTransactionEvents(gctx, func(ctx context.Context, ev *amqp.TransactionEvent) error {
				err := mirror.HandleEvent(ctx, ev)
				if errors.Is(err, worker.ErrMalformedEvent) {
					logger.Warn("Dropping malformed transaction event", "error", err)
					return nil
				}
				return err
			})
		})
	} else {
		logger.Info("Audit mirror disabled - no AMQP_URL provided")
	}

	logger.Info("Starting fintrack worker", "accrual_interval", cfg.AccrualInterval)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
