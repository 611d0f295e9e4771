// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// SessionJournal records session transitions for auditing.
type SessionJournal interface {
	Record(ctx context.Context, entry models.JournalEntry) error
}
