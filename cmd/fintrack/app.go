package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/session"
	"fintrack/internal/transport/ws"
)

// app is the fully wired server process. It is built before signal
// handling starts, so shutdown never sees a half-constructed process.
type app struct {
	logger     *log.Logger
	srv        *apphttp.Server
	janitor    *cache.Janitor
	amqpClient *amqp.Client
	relay      *amqp.Relay
	store      *backend.StoreResult

	stopSessions context.CancelFunc
}

// newApp wires the engine. amqpClient may be nil, which keeps fan-out local.
func newApp(cfg *config.Config, store *backend.StoreResult, amqpClient *amqp.Client, logger *log.Logger) *app {
	registry := session.NewRegistry()
	dispatcher := session.NewDispatcher(registry)

	a := &app{logger: logger, amqpClient: amqpClient, store: store}

	var publisher session.Publisher = dispatcher
	if amqpClient != nil {
		a.relay = amqp.NewRelay(amqpClient, dispatcher)
		publisher = a.relay
	}

	notifier := notify.New(store.Store, publisher, notify.Config{Retention: cfg.NotificationRetention})
	ldg := ledger.New(store.Store, notifier)
	if amqpClient != nil {
		ldg.SetEventSink(amqp.NewLedgerEvents(amqpClient))
	}
	monitor := notify.NewMonitor(store.Store, notifier, cfg.DueSoonWindow)

	var sessionCtx context.Context
	sessionCtx, a.stopSessions = context.WithCancel(context.Background())

	a.srv = apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:   ldg,
		Notifier: notifier,
		Monitor:  monitor,
		Registry: registry,
		Sessions: ws.NewHandler(sessionCtx, registry, apphttp.UserIdentity, cfg.DispatchBuffer),
		Ping:     store.Store.Ping,
	})
	a.srv.MaxHeaderBytes = 1 << 16

	a.janitor = cache.NewJanitor(notifier.CountCache())
	a.janitor.Start(sessionCtx, time.Minute)
	return a
}

// run serves HTTP and, with AMQP, consumes peer session events until
// shutdown or the first failure.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Run(gctx, a.amqpClient); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// shutdown stops the server, closes live sessions and releases the broker
// and the store.
func (a *app) shutdown(ctx context.Context) error {
	err := a.srv.Shutdown(ctx)
	a.stopSessions()
	a.janitor.Stop()
	if a.amqpClient != nil {
		if cerr := a.amqpClient.Close(); cerr != nil {
			a.logger.Warn("Failed to close AMQP client", log.FieldError, cerr)
		}
	}
	if cerr := a.store.Cleanup(); cerr != nil {
		a.logger.Warn("Failed to close store", log.FieldError, cerr)
	}
	return err
}
