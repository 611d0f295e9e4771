// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/store"

// INatsKeyValue is the part of jetstream.KeyValue the stores use.
type INatsKeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// NatsKV wraps a KV bucket with tracing and domain error mapping.
type NatsKV struct {
	kvStore    INatsKeyValue
	entityName string // used in error messages, e.g. "credential"
}

// NewNatsKV creates a traced KV accessor. A nil kvStore yields a store that
// reports itself unavailable.
func NewNatsKV(kvStore INatsKeyValue, entityName string) *NatsKV {
	return &NatsKV{kvStore: kvStore, entityName: entityName}
}

// IsReady checks if the bucket is bound.
func (r *NatsKV) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsKV) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", operation),
			attribute.String("db.nats.key", key),
			attribute.String("db.nats.entity", r.entityName),
		),
	)
}

func (r *NatsKV) unavailable(span trace.Span) error {
	err := domain.NewUnavailableError(fmt.Sprintf("%s store is not available", r.entityName))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get returns the raw value stored under key.
func (r *NatsKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := r.GetRevision(ctx, key)
	return value, err
}

// GetRevision returns the raw value stored under key with its revision.
func (r *NatsKV) GetRevision(ctx context.Context, key string) ([]byte, uint64, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, 0, r.unavailable(span)
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			err = domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "not found")
			return nil, 0, err
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	span.SetAttributes(attribute.Int64("db.nats.revision", int64(entry.Revision())))
	span.SetStatus(codes.Ok, "")
	return entry.Value(), entry.Revision(), nil
}

// Update writes value under key only if revision is the key's latest.
// Revision 0 expects the key to be absent. A revision mismatch is a Conflict.
func (r *NatsKV) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	ctx, span := r.startSpan(ctx, "update", key)
	defer span.End()

	if !r.IsReady() {
		return 0, r.unavailable(span)
	}

	next, err := r.kvStore.Update(ctx, key, value, revision)
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			err = domain.NewConflictError(
				fmt.Sprintf("%s with key '%s' changed concurrently", r.entityName, key), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "conflict")
			return 0, err
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error updating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		err = domain.NewInternalError(fmt.Sprintf("failed to update %s", r.entityName), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("db.nats.revision", int64(next)))
	span.SetStatus(codes.Ok, "")
	return next, nil
}

// Put stores value under key, overwriting any previous revision.
func (r *NatsKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		return r.unavailable(span)
	}

	if _, err := r.kvStore.Put(ctx, key, value); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error putting %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(fmt.Sprintf("failed to store %s", r.entityName), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes key. A missing key is not an error.
func (r *NatsKV) Delete(ctx context.Context, key string) error {
	ctx, span := r.startSpan(ctx, "delete", key)
	defer span.End()

	if !r.IsReady() {
		return r.unavailable(span)
	}

	if err := r.kvStore.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.ErrorContext(ctx, fmt.Sprintf("error deleting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(fmt.Sprintf("failed to delete %s from store", r.entityName), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
