// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the consultation agent. It runs video consultation sessions
// opened over NATS and serves their read-only views and health checks over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/backend"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/engine"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/journal"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/utils"
)

const gracefulShutdownSeconds = 25

func main() {
	loadDotEnv()
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		return
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	stores, err := setupCredentialStores(ctx, env, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up credential stores")
		return
	}

	tokenChain, err := setupTokenChain(ctx, env, stores)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up token chain")
		return
	}

	sessionJournal, pgJournal, pgPool, err := setupJournal(ctx, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up session journal")
		return
	}

	sessionClaims, err := setupSessionClaims(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up session claims")
		return
	}

	// Initialize services
	serviceConfig := service.ServiceConfig{
		EngineHost:         env.EngineHost,
		Location:           env.Location,
		LobbyAdmitDelay:    env.LobbyAdmitDelay,
		LobbyAdmitInterval: env.LobbyAdmitInterval,
	}
	sessionService := service.NewSessionService(
		backend.NewClient(backend.Config{
			BaseURL: env.BackendBaseURL,
			Timeout: env.BackendTimeout,
		}),
		tokenChain,
		engine.NewFactory(engine.NewNatsTransport(natsConn), constants.DefaultEngineRequestTimeout),
		messaging.NewMessageBuilder(natsConn),
		sessionJournal,
		stores.session,
		concurrent.NewWorkerPool(runtime.NumCPU()),
		serviceConfig,
	)
	sessionService.Claims = sessionClaims
	slog.With("instance_id", sessionService.InstanceID).Info("session claims enabled")
	go sessionService.KeepClaims(ctx, constants.SessionClaimRefreshInterval)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionService)

	api := &statusAPI{
		sessions: sessionService,
		checks:   readinessChecks(natsConn, stores, pgPool),
	}
	httpServer := setupHTTPServer(flags, api, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	err = createNatsSubscriptions(ctx, sessionHandler, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(shutdownDeps{
		httpServer:     httpServer,
		natsConn:       natsConn,
		sessionService: sessionService,
		pgJournal:      pgJournal,
		pgPool:         pgPool,
		stores:         stores,
		otelShutdown:   otelShutdown,
	}, &gracefulCloseWG, cancel)
}

// readinessChecks lists the dependencies /readyz pings.
func readinessChecks(natsConn *nats.Conn, stores *credentialStores, pgPool *pgxpool.Pool) map[string]Pinger {
	checks := map[string]Pinger{
		"nats": func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		},
	}
	if stores.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return stores.redis.Ping(ctx).Err()
		}
	}
	if pgPool != nil {
		checks["postgres"] = pgPool.Ping
	}
	return checks
}

// createNatsSubscriptions subscribes the session handler to the control
// subjects. Opens are load balanced across replicas with a queue group; close
// and get reach every replica and only the instance owning the session replies.
func createNatsSubscriptions(ctx context.Context, handler *handlers.SessionHandler, natsConn *nats.Conn) error {
	callback := func(msg *nats.Msg) {
		handler.HandleMessage(ctx, messaging.NewNatsMessage(msg))
	}

	slog.With("subject", models.SessionOpenSubject, "queue", models.ConsultationAgentQueue).Info("subscribing to NATS subject")
	if _, err := natsConn.QueueSubscribe(models.SessionOpenSubject, models.ConsultationAgentQueue, callback); err != nil {
		return err
	}

	for _, subject := range []string{models.SessionCloseSubject, models.SessionGetSubject} {
		slog.With("subject", subject).Info("subscribing to NATS subject")
		if _, err := natsConn.Subscribe(subject, callback); err != nil {
			return err
		}
	}
	return nil
}

type shutdownDeps struct {
	httpServer     interface{ Shutdown(context.Context) error }
	natsConn       *nats.Conn
	sessionService *service.SessionService
	pgJournal      *journal.PgJournal
	pgPool         *pgxpool.Pool
	stores         *credentialStores
	otelShutdown   func(context.Context) error
}

// gracefulShutdown stops accepting work, closes open sessions while the engine
// bridge is still reachable, then drains NATS and releases storage.
func gracefulShutdown(deps shutdownDeps, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("shutting down consultation agent")

	// Cancelling the context marks the NATS close as expected.
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	go func() {
		if err := deps.httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		gracefulCloseWG.Done()
	}()

	if err := deps.sessionService.Shutdown(ctx); err != nil {
		slog.With(logging.ErrKey, err).Warn("sessions did not shut down cleanly")
	}

	if deps.natsConn.IsClosed() {
		gracefulCloseWG.Done()
	} else if err := deps.natsConn.Drain(); err != nil {
		slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		gracefulCloseWG.Done()
	}

	if deps.pgJournal != nil {
		if err := deps.pgJournal.Close(ctx); err != nil {
			slog.With(logging.ErrKey, err).Warn("session journal not flushed")
		}
	}
	if deps.pgPool != nil {
		deps.pgPool.Close()
	}
	if deps.stores.redis != nil {
		if err := deps.stores.redis.Close(); err != nil {
			slog.With(logging.ErrKey, err).Warn("error closing redis")
		}
	}

	waited := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		slog.Warn("graceful shutdown timed out")
	}

	if err := deps.otelShutdown(context.Background()); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry")
	}
	slog.Info("graceful shutdown complete")
}
