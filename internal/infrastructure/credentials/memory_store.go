// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is a process-local credential store with a per-entry TTL. The
// agent uses it for session storage when no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

// Ensure MemoryStore implements domain.CredentialStore
var _ domain.CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store; ttl <= 0 keeps entries until overwritten.
func NewMemoryStore(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", domain.NewNotFoundError("credential not found: " + key)
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		s.mu.Lock()
		// the entry may have been refreshed meanwhile
		if current, ok := s.entries[key]; ok && current == entry {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", domain.NewNotFoundError("credential expired: " + key)
	}
	return entry.token, nil
}

func (s *MemoryStore) Put(_ context.Context, key, token string) error {
	if key == "" || token == "" {
		return domain.NewValidationError("credential key and token are required")
	}
	entry := memoryEntry{token: token}
	if s.ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}
