// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Admission timing
const (
	// CountdownWindow is how far ahead of the scheduled start a live countdown is shown.
	// Further out, the session waits without one.
	CountdownWindow = 15 * time.Minute

	// GateTickInterval is how often a pending gate is re-evaluated.
	GateTickInterval = time.Second

	// DefaultLobbyAdmitDelay is the wait before the first lobby admission attempt.
	DefaultLobbyAdmitDelay = 2 * time.Second

	// DefaultLobbyAdmitInterval is the period of later lobby admission attempts.
	DefaultLobbyAdmitInterval = 5 * time.Second
)

// Completion
const (
	// MaxCompletionAttempts caps backend completion calls per session.
	MaxCompletionAttempts = 2

	// CompletionTimeout bounds one completion call, which outlives teardown.
	CompletionTimeout = 10 * time.Second
)

// Video engine
const (
	// DefaultEngineHost is the host whose path segment names the room.
	DefaultEngineHost = "meet.jit.si"

	// DefaultEngineRequestTimeout bounds a request to the engine bridge.
	DefaultEngineRequestTimeout = 5 * time.Second
)

// Credential storage
const (
	// KVBucketNameCredentials is the NATS KV bucket holding durable tokens.
	KVBucketNameCredentials = "consultation-credentials"

	// TokenKeySuffix is appended to the user id for the current token key.
	TokenKeySuffix = "/token"

	// LegacyTokenKeySuffix is appended to the user id for the legacy token key.
	LegacyTokenKeySuffix = "/authToken"

	// DefaultSessionTokenTTL is how long a token lives in ephemeral storage.
	DefaultSessionTokenTTL = time.Hour
)

// Session ownership
const (
	// KVBucketNameSessions is the NATS KV bucket holding session claims.
	KVBucketNameSessions = "consultation-sessions"

	// SessionClaimTTL is the bucket TTL. Claims of a crashed instance expire
	// after it.
	SessionClaimTTL = 2 * time.Minute

	// SessionClaimRefreshInterval is how often live claims are rewritten.
	SessionClaimRefreshInterval = 30 * time.Second

	// SessionClaimTimeout bounds one claim store call.
	SessionClaimTimeout = 5 * time.Second
)

// TokenKey returns the storage key of a user's token.
func TokenKey(userID string) string {
	return userID + TokenKeySuffix
}

// LegacyTokenKey returns the storage key of a user's legacy token.
func LegacyTokenKey(userID string) string {
	return userID + LegacyTokenKeySuffix
}
