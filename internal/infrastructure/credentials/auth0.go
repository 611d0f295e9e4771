// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/oauth"
	"golang.org/x/oauth2"
)

const tokenExpiryLeeway = 60 * time.Second

// Auth0Config configures the client-credentials token source.
type Auth0Config struct {
	Domain     string
	ClientID   string
	PrivateKey string // RSA private key in PEM format
	Audience   string
}

// Enabled reports whether enough is configured to request tokens.
func (c Auth0Config) Enabled() bool {
	return c.Domain != "" && c.ClientID != "" && c.PrivateKey != ""
}

// auth0TokenSource implements oauth2.TokenSource using Auth0 SDK with private key
type auth0TokenSource struct {
	ctx        context.Context
	authConfig *authentication.Authentication
	audience   string
}

// Token implements the oauth2.TokenSource interface
func (a *auth0TokenSource) Token() (*oauth2.Token, error) {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.TODO()
	}

	body := oauth.LoginWithClientCredentialsRequest{
		Audience: a.audience,
	}

	tokenSet, err := a.authConfig.OAuth.LoginWithClientCredentials(ctx, body, oauth.IDTokenValidationOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get token from Auth0: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  tokenSet.AccessToken,
		TokenType:    tokenSet.TokenType,
		RefreshToken: tokenSet.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tokenSet.ExpiresIn)*time.Second - tokenExpiryLeeway),
	}

	return token.WithExtra(map[string]any{
		"scope": tokenSet.Scope,
	}), nil
}

// NewAuth0TokenSource creates a cached client-credentials token source. The
// Auth0 client authenticates with a private key assertion (RS256).
func NewAuth0TokenSource(ctx context.Context, cfg Auth0Config) (oauth2.TokenSource, error) {
	authConfig, err := authentication.New(
		ctx,
		cfg.Domain,
		authentication.WithClientID(cfg.ClientID),
		authentication.WithClientAssertion(cfg.PrivateKey, "RS256"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Auth0 client (ensure the private key is a PEM encoded RSA key): %w", err)
	}

	source := &auth0TokenSource{
		ctx:        ctx,
		authConfig: authConfig,
		audience:   cfg.Audience,
	}

	// ReuseTokenSource caches the token until it expires
	return oauth2.ReuseTokenSource(nil, source), nil
}
