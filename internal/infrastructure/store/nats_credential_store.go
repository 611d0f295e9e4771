// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

// credentialRecord is the JSON value written to the bucket. Values written by
// older clients are bare token strings; Get accepts both.
type credentialRecord struct {
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NatsCredentialStore keeps bearer tokens in a NATS KV bucket.
type NatsCredentialStore struct {
	kv    *NatsKV
	keys  *KeyBuilder
	clock clockwork.Clock
}

// Ensure NatsCredentialStore implements domain.CredentialStore
var _ domain.CredentialStore = (*NatsCredentialStore)(nil)

// NewNatsCredentialStore creates a credential store over kvStore.
func NewNatsCredentialStore(kvStore INatsKeyValue, keys *KeyBuilder, clock clockwork.Clock) *NatsCredentialStore {
	if keys == nil {
		keys = NewKeyBuilder("", false)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NatsCredentialStore{
		kv:    NewNatsKV(kvStore, "credential"),
		keys:  keys,
		clock: clock,
	}
}

// IsReady reports whether a bucket is bound.
func (s *NatsCredentialStore) IsReady() bool {
	return s.kv.IsReady()
}

func (s *NatsCredentialStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.kv.Get(ctx, s.keys.Key(key))
	if err != nil {
		return "", err
	}

	token := decodeCredential(ctx, value)
	if token == "" {
		return "", domain.NewNotFoundError("credential is empty: " + key)
	}
	return token, nil
}

func (s *NatsCredentialStore) Put(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return domain.NewValidationError("credential key and token are required")
	}

	data, err := json.Marshal(credentialRecord{Token: token, UpdatedAt: s.clock.Now().UTC()})
	if err != nil {
		return domain.NewInternalError("failed to marshal credential", err)
	}
	return s.kv.Put(ctx, s.keys.Key(key), data)
}

// Delete removes the token stored under key.
func (s *NatsCredentialStore) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.keys.Key(key))
}

func decodeCredential(ctx context.Context, value []byte) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] != '{' {
		return string(trimmed)
	}

	var record credentialRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		slog.WarnContext(ctx, "credential value is not a valid record", logging.ErrKey, err)
		return ""
	}
	return record.Token
}
