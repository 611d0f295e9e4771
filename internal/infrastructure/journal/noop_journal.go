// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package journal

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// NoopJournal logs entries at debug level instead of storing them. It is used
// when no database is configured.
type NoopJournal struct{}

// Ensure NoopJournal implements domain.SessionJournal
var _ domain.SessionJournal = NoopJournal{}

func (NoopJournal) Record(ctx context.Context, entry models.JournalEntry) error {
	slog.DebugContext(ctx, "session journal entry",
		"session_id", entry.SessionID,
		"event", entry.Event,
		"from", entry.FromPhase,
		"to", entry.ToPhase,
	)
	return nil
}
