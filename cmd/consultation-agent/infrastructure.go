// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/credentials"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/journal"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

const (
	natsDrainTimeout = 10 * time.Second
	natsReconnects   = -1 // retry forever
	connectTimeout   = 10 * time.Second
)

// setupNATS connects to NATS. A connection that closes while the agent is
// running signals done so the process shuts down.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	slog.With("nats_url", env.NatsURL).Info("attempting to connect to NATS")

	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.Name("consultation-agent"),
		nats.DrainTimeout(natsDrainTimeout),
		nats.MaxReconnects(natsReconnects),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NatsURL).Info("NATS connection established")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.With(logging.ErrKey, err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// drained during graceful shutdown
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly")
			done <- os.Interrupt
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	gracefulCloseWG.Add(1)
	return natsConn, nil
}

// getKVBucket binds a KV bucket, creating it from cfg when it does not exist yet.
func getKVBucket(ctx context.Context, natsConn *nats.Conn, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateOrUpdateKeyValue(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("bind KV bucket %s: %w", cfg.Bucket, err)
	}
	return kv, nil
}

// setupSessionClaims binds the claim bucket shared by all agent replicas.
func setupSessionClaims(ctx context.Context, natsConn *nats.Conn) (*store.NatsSessionClaims, error) {
	kv, err := getKVBucket(ctx, natsConn, jetstream.KeyValueConfig{
		Bucket:      constants.KVBucketNameSessions,
		Description: "agent instance owning each open consultation session",
		History:     1,
		TTL:         constants.SessionClaimTTL,
	})
	if err != nil {
		return nil, err
	}
	return store.NewNatsSessionClaims(kv, nil), nil
}

// credentialStores are the session and durable token stores.
type credentialStores struct {
	session domain.CredentialStore
	durable domain.CredentialStore
	redis   *redis.Client
}

// setupCredentialStores uses Redis for session tokens when configured and an
// in-process store otherwise.
func setupCredentialStores(ctx context.Context, env environment, natsConn *nats.Conn) (*credentialStores, error) {
	stores := &credentialStores{}

	kv, err := getKVBucket(ctx, natsConn, jetstream.KeyValueConfig{
		Bucket:      constants.KVBucketNameCredentials,
		Description: "durable bearer tokens of consultation users",
		History:     1,
	})
	if err != nil {
		return nil, err
	}
	stores.durable = store.NewNatsCredentialStore(kv, store.NewKeyBuilder("", env.EncodeKVKeys), nil)

	if env.RedisURL == "" {
		slog.Info("REDIS_URL not set, keeping session tokens in memory")
		stores.session = credentials.NewMemoryStore(env.SessionTokenTTL, clockwork.NewRealClock())
		return stores, nil
	}

	client, err := store.NewRedisClient(env.RedisURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("connected to Redis")
	stores.redis = client
	stores.session = store.NewRedisCredentialStore(client, "consultation:", env.SessionTokenTTL)
	return stores, nil
}

// setupTokenChain orders the providers fresh, session, durable, legacy.
func setupTokenChain(ctx context.Context, env environment, stores *credentialStores) (*credentials.Chain, error) {
	var fresh credentials.Provider
	if env.Auth0.Enabled() {
		source, err := credentials.NewAuth0TokenSource(ctx, env.Auth0)
		if err != nil {
			return nil, fmt.Errorf("setup auth0 token source: %w", err)
		}
		fresh = credentials.NewTokenSourceProvider(source)
	} else {
		slog.Info("auth0 not configured, fresh tokens disabled")
	}

	chain := credentials.NewChain(
		fresh,
		credentials.NewEphemeralProvider(stores.session),
		credentials.NewDurableProvider(stores.durable),
		credentials.NewLegacyProvider(stores.durable),
	)
	slog.With("providers", chain.Providers()).Info("token chain configured")
	return chain, nil
}

// setupJournal connects Postgres when POSTGRES_DSN is set. Without it
// transitions are only logged.
func setupJournal(ctx context.Context, env environment) (domain.SessionJournal, *journal.PgJournal, *pgxpool.Pool, error) {
	if env.PostgresDSN == "" {
		slog.Info("POSTGRES_DSN not set, session journal disabled")
		return journal.NoopJournal{}, nil, nil, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := journal.ConnectPostgres(pgCtx, env.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := journal.EnsureSchema(pgCtx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	slog.Info("connected to Postgres")
	pgJournal := journal.NewPgJournal(pool, 0)
	return pgJournal, pgJournal, pool, nil
}
