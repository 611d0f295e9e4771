// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package credentials resolves the bearer token used against the appointment
// backend from an ordered list of providers.
package credentials

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

// Provider yields a token for a user, or an error when it has none.
type Provider interface {
	Name() string
	Token(ctx context.Context, userID string) (string, error)
}

// Chain tries its providers in order and returns the first usable token.
type Chain struct {
	providers []Provider
}

// Ensure Chain implements domain.TokenResolver
var _ domain.TokenResolver = (*Chain)(nil)

// NewChain creates a chain over providers. Nil providers are skipped.
func NewChain(providers ...Provider) *Chain {
	chain := &Chain{}
	for _, p := range providers {
		if p != nil {
			chain.providers = append(chain.providers, p)
		}
	}
	return chain
}

// Resolve returns the first non-empty token. A provider failure is logged at
// debug level and the next provider is tried; when every provider fails the
// result is domain.ErrUnauthenticated.
func (c *Chain) Resolve(ctx context.Context, userID string) (string, error) {
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		token, err := p.Token(ctx, userID)
		if err != nil {
			slog.DebugContext(ctx, "token provider failed",
				"provider", p.Name(),
				"user_id", userID,
				logging.ErrKey, err,
			)
			continue
		}
		if token == "" {
			slog.DebugContext(ctx, "token provider returned no token",
				"provider", p.Name(),
				"user_id", userID,
			)
			continue
		}
		return token, nil
	}
	return "", domain.ErrUnauthenticated
}

// Providers returns the provider names in resolution order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}
