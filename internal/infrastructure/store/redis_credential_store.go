// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

// RedisClient is the part of redis.UniversalClient the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisCredentialStore is session storage for tokens: every entry expires
// after the configured TTL.
type RedisCredentialStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// Ensure RedisCredentialStore implements domain.CredentialStore
var _ domain.CredentialStore = (*RedisCredentialStore)(nil)

// NewRedisCredentialStore creates a store; keys are written as <prefix><key>.
func NewRedisCredentialStore(client RedisClient, prefix string, ttl time.Duration) *RedisCredentialStore {
	return &RedisCredentialStore{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL, or treats addr as host:port when it
// is not a URL.
func NewRedisClient(addr string) (*redis.Client, error) {
	if opts, err := redis.ParseURL(addr); err == nil {
		return redis.NewClient(opts), nil
	}
	if addr == "" {
		return nil, domain.NewValidationError("redis address is required")
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func (s *RedisCredentialStore) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "redis."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", operation),
			attribute.String("db.redis.key", key),
		),
	)
}

func (s *RedisCredentialStore) Get(ctx context.Context, key string) (string, error) {
	key = s.prefix + key
	ctx, span := s.startSpan(ctx, "get", key)
	defer span.End()

	token, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = domain.NewNotFoundError("credential not found: " + key)
			span.SetStatus(codes.Error, "not found")
			return "", err
		}
		slog.ErrorContext(ctx, "error getting credential from redis", logging.ErrKey, err, "key", key)
		err = domain.NewUnavailableError("session storage unavailable", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if token == "" {
		span.SetStatus(codes.Error, "empty")
		return "", domain.NewNotFoundError("credential is empty: " + key)
	}

	span.SetStatus(codes.Ok, "")
	return token, nil
}

func (s *RedisCredentialStore) Put(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return domain.NewValidationError("credential key and token are required")
	}
	key = s.prefix + key
	ctx, span := s.startSpan(ctx, "set", key)
	defer span.End()

	if err := s.client.Set(ctx, key, token, s.ttl).Err(); err != nil {
		slog.ErrorContext(ctx, "error setting credential in redis", logging.ErrKey, err, "key", key)
		err = domain.NewUnavailableError("session storage unavailable", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes the token stored under key.
func (s *RedisCredentialStore) Delete(ctx context.Context, key string) error {
	key = s.prefix + key
	ctx, span := s.startSpan(ctx, "del", key)
	defer span.End()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		err = domain.NewUnavailableError("session storage unavailable", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Ping checks the connection, for readiness checks.
func (s *RedisCredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
