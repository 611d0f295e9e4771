// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package credentials

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

// Provider names, in the order the agent wires them.
const (
	ProviderFresh     = "fresh"
	ProviderEphemeral = "ephemeral"
	ProviderDurable   = "durable"
	ProviderLegacy    = "durable_legacy"
)

// TokenSourceProvider asks an oauth2.TokenSource for a fresh token. The token
// is the same for every user.
type TokenSourceProvider struct {
	source oauth2.TokenSource
}

// NewTokenSourceProvider returns nil when source is nil, which NewChain skips.
func NewTokenSourceProvider(source oauth2.TokenSource) Provider {
	if source == nil {
		return nil
	}
	return &TokenSourceProvider{source: source}
}

func (p *TokenSourceProvider) Name() string { return ProviderFresh }

func (p *TokenSourceProvider) Token(context.Context, string) (string, error) {
	token, err := p.source.Token()
	if err != nil {
		return "", err
	}
	if !token.Valid() {
		return "", errors.New("token source returned an expired token")
	}
	return token.AccessToken, nil
}

// StoreProvider reads a token from a credential store under a per-user key.
type StoreProvider struct {
	name  string
	store domain.CredentialStore
	key   func(userID string) string
}

func newStoreProvider(name string, store domain.CredentialStore, key func(string) string) Provider {
	if store == nil {
		return nil
	}
	return &StoreProvider{name: name, store: store, key: key}
}

// NewEphemeralProvider reads <user>/token from session storage.
func NewEphemeralProvider(store domain.CredentialStore) Provider {
	return newStoreProvider(ProviderEphemeral, store, constants.TokenKey)
}

// NewDurableProvider reads <user>/token from durable storage.
func NewDurableProvider(store domain.CredentialStore) Provider {
	return newStoreProvider(ProviderDurable, store, constants.TokenKey)
}

// NewLegacyProvider reads <user>/authToken from durable storage.
func NewLegacyProvider(store domain.CredentialStore) Provider {
	return newStoreProvider(ProviderLegacy, store, constants.LegacyTokenKey)
}

func (p *StoreProvider) Name() string { return p.name }

func (p *StoreProvider) Token(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.NewValidationError("user id is required")
	}
	return p.store.Get(ctx, p.key(userID))
}
