package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/session"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	store := cli.InitBackend(context.Background(), logger, cfg)

	// The worker holds no sessions: with AMQP its alerts reach the server
	// processes through the relay, without it they are only persisted.
	dispatcher := session.NewDispatcher(session.NewRegistry())
	var (
		publisher  session.Publisher = dispatcher
		amqpClient *amqp.Client
	)
	if cfg.AMQPEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqp.NewRelay(amqpClient, dispatcher)
	} else {
		logger.Info("AMQP disabled, journal consumer will not run")
	}

	notifier := notify.New(store.Store, publisher, notify.Config{Retention: cfg.NotificationRetention})
	ldg := ledger.New(store.Store, notifier)
	if amqpClient != nil {
		ldg.SetEventSink(amqp.NewLedgerEvents(amqpClient))
	}
	monitor := notify.NewMonitor(store.Store, notifier, cfg.DueSoonWindow)

	sweeper := worker.NewSweeper(store.Store, ldg, monitor, worker.SweeperConfig{
		Interval:      cfg.SweepInterval,
		DueSoonWindow: cfg.DueSoonWindow,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sweeper.Stop(stopCtx); err != nil {
			logger.Warn("Sweeper stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			logger.Error("Invalid backend configuration", log.FieldError, err)
			os.Exit(1)
		}
		writer, err := backend.NewFactory().CreateJournal(ctx, bcfg)
		if err != nil {
			logger.Error("Failed to initialize payment journal", log.FieldError, err)
			os.Exit(1)
		}
		consumer := worker.NewJournalConsumer(writer)

		g.Go(func() error {
			logger.Info("Consuming ledger events", "queue", cfg.AMQPJournalQueue)
			err := amqpClient.ConsumeLedgerEvents(gctx, cfg.AMQPJournalQueue, consumer.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Ledger event consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
