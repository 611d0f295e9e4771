// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPHeaderConstants(t *testing.T) {
	assert.Equal(t, "Authorization", AuthorizationHeader)
	assert.Equal(t, "X-REQUEST-ID", RequestIDHeader)
	assert.Equal(t, "Bearer ", BearerPrefix)
}

func TestContextMappingConsistency(t *testing.T) {
	assert.Equal(t, RequestIDHeader, string(RequestIDContextID))
}

func TestTokenKeys(t *testing.T) {
	assert.Equal(t, "doc-1/token", TokenKey("doc-1"))
	assert.Equal(t, "doc-1/authToken", LegacyTokenKey("doc-1"))
	assert.NotEqual(t, TokenKey("doc-1"), LegacyTokenKey("doc-1"))
}

func TestTimingDefaults(t *testing.T) {
	assert.Equal(t, 15*time.Minute, CountdownWindow)
	assert.Equal(t, time.Second, GateTickInterval)
	assert.Less(t, DefaultLobbyAdmitDelay, DefaultLobbyAdmitInterval)
	assert.Equal(t, 2, MaxCompletionAttempts)
}
