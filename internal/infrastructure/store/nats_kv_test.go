// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
)

func TestNatsKV_IsReady(t *testing.T) {
	assert.True(t, NewNatsKV(newMockNatsKeyValue(), "test").IsReady())
	assert.False(t, NewNatsKV(nil, "test").IsReady())
}

func TestNatsKV_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	store := NewNatsKV(kv, "test")

	_, err := store.Get(ctx, "k")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	require.NoError(t, store.Put(ctx, "k", []byte("v1")))
	require.NoError(t, store.Put(ctx, "k", []byte("v2")))
	assert.Equal(t, uint64(2), kv.revisions["k"])

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"), "deleting a missing key is not an error")
}

func TestNatsKV_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("nats: timeout")

	t.Run("not ready", func(t *testing.T) {
		store := NewNatsKV(nil, "test")
		_, err := store.Get(ctx, "k")
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(store.Put(ctx, "k", nil)))
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(store.Delete(ctx, "k")))
	})

	t.Run("backend failures are internal", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		kv.getError, kv.putError, kv.deleteError = boom, boom, boom
		store := NewNatsKV(kv, "test")

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))

		err = store.Put(ctx, "k", []byte("v"))
		assert.ErrorIs(t, err, boom)

		err = store.Delete(ctx, "k")
		assert.ErrorIs(t, err, boom)
	})
}
