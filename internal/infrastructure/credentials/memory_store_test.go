// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
)

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, nil)

	_, err := store.Get(ctx, "pat-1/token")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	require.NoError(t, store.Put(ctx, "pat-1/token", "tok-1"))
	token, err := store.Get(ctx, "pat-1/token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, store.Put(ctx, "pat-1/token", "tok-2"))
	token, err = store.Get(ctx, "pat-1/token")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(time.Hour, clock)

	require.NoError(t, store.Put(ctx, "doc-1/token", "tok"))

	clock.Advance(59 * time.Minute)
	token, err := store.Get(ctx, "doc-1/token")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	clock.Advance(time.Minute)
	_, err = store.Get(ctx, "doc-1/token")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	// refreshed entries live again
	require.NoError(t, store.Put(ctx, "doc-1/token", "tok-2"))
	token, err = store.Get(ctx, "doc-1/token")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
}

func TestMemoryStore_Validation(t *testing.T) {
	store := NewMemoryStore(0, nil)
	err := store.Put(context.Background(), "", "tok")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	err = store.Put(context.Background(), "pat-1/token", "")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}
