// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

const insertEntry = `
INSERT INTO consultation_session_journal
	(id, session_id, appointment_id, user_id, role, event, from_phase, to_phase, error_kind, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PgJournal writes entries to Postgres from a single background writer, so a
// slow database never blocks a session's event loop. Entries that do not fit
// the queue are dropped with a warning.
type PgJournal struct {
	db           Execer
	queue        chan models.JournalEntry
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Ensure PgJournal implements domain.SessionJournal
var _ domain.SessionJournal = (*PgJournal)(nil)

// NewPgJournal starts the writer. Call Close to flush and stop it.
func NewPgJournal(db Execer, queueSize int) *PgJournal {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	j := &PgJournal{
		db:           db,
		queue:        make(chan models.JournalEntry, queueSize),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	go j.run()
	return j
}

// Record queues entry for writing.
func (j *PgJournal) Record(ctx context.Context, entry models.JournalEntry) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return domain.NewUnavailableError("session journal is closed")
	}

	select {
	case j.queue <- entry:
		return nil
	default:
		slog.WarnContext(ctx, "session journal queue full, dropping entry",
			"session_id", entry.SessionID,
			"event", entry.Event,
		)
		return domain.NewUnavailableError("session journal queue is full")
	}
}

// Close stops accepting entries and waits until queued entries are written
// or ctx expires.
func (j *PgJournal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *PgJournal) run() {
	defer close(j.done)
	for entry := range j.queue {
		j.write(entry)
	}
}

func (j *PgJournal) write(entry models.JournalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), j.writeTimeout)
	defer cancel()

	var errorKind *string
	if entry.ErrorKind != "" {
		kind := string(entry.ErrorKind)
		errorKind = &kind
	}

	_, err := j.db.Exec(ctx, insertEntry,
		entry.ID,
		entry.SessionID,
		entry.AppointmentID,
		entry.UserID,
		string(entry.Role),
		entry.Event,
		string(entry.FromPhase),
		string(entry.ToPhase),
		errorKind,
		entry.RecordedAt,
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write session journal entry",
			"session_id", entry.SessionID,
			"event", entry.Event,
			logging.ErrKey, err,
		)
	}
}
