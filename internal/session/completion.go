// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

const meterName = "github.com/linuxfoundation/lfx-v2-consultation-service/internal/session"

// CompletionManager marks an appointment completed at most once per session.
//
// The guard is set before the backend call starts and cleared only when the
// call fails, leaving room for a single retry on the next trigger. No more
// than MaxCompletionAttempts calls are ever made.
type CompletionManager struct {
	appointmentID string
	userID        string
	sessionID     string

	backend   domain.AppointmentBackend
	tokens    domain.TokenResolver
	publisher domain.SessionPublisher
	clock     clockwork.Clock
	attempts  metric.Int64Counter

	mu       sync.Mutex
	marked   bool
	calls    int
	inFlight sync.WaitGroup
}

// CompletionConfig wires a CompletionManager.
type CompletionConfig struct {
	AppointmentID string
	UserID        string
	SessionID     string
	Backend       domain.AppointmentBackend
	Tokens        domain.TokenResolver
	// Publisher is optional.
	Publisher domain.SessionPublisher
	Clock     clockwork.Clock
}

// NewCompletionManager creates a manager with the guard cleared.
func NewCompletionManager(cfg CompletionConfig) *CompletionManager {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	counter, err := otel.Meter(meterName).Int64Counter(
		"consultation.completion.attempts",
		metric.WithDescription("Backend calls marking an appointment completed"),
	)
	if err != nil {
		slog.Warn("failed to create completion counter", logging.ErrKey, err)
	}

	return &CompletionManager{
		appointmentID: cfg.AppointmentID,
		userID:        cfg.UserID,
		sessionID:     cfg.SessionID,
		backend:       cfg.Backend,
		tokens:        cfg.Tokens,
		publisher:     cfg.Publisher,
		clock:         clock,
		attempts:      counter,
	}
}

// MarkSettled sets the guard without a call, for appointments the backend
// already reports as completed.
func (m *CompletionManager) MarkSettled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = true
}

// Marked reports whether completion succeeded or is in flight.
func (m *CompletionManager) Marked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked
}

// Attempts returns the number of backend calls started so far.
func (m *CompletionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Trigger starts a completion call unless one succeeded, one is in flight,
// or the attempt cap is reached. It never blocks on the call; the call runs
// detached from ctx cancellation so teardown does not abort it.
// It reports whether a call was started.
func (m *CompletionManager) Trigger(ctx context.Context, trigger string) bool {
	m.mu.Lock()
	if m.marked || m.calls >= constants.MaxCompletionAttempts {
		marked, calls := m.marked, m.calls
		m.mu.Unlock()
		slog.DebugContext(ctx, "completion not triggered",
			"trigger", trigger,
			"marked", marked,
			"attempts", calls,
		)
		return false
	}
	m.marked = true
	m.calls++
	attempt := m.calls
	m.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	m.inFlight.Add(1)
	go func() {
		defer m.inFlight.Done()
		m.complete(callCtx, trigger, attempt)
	}()
	return true
}

// Wait blocks until every started call returned.
func (m *CompletionManager) Wait() {
	m.inFlight.Wait()
}

func (m *CompletionManager) complete(ctx context.Context, trigger string, attempt int) {
	ctx, cancel := context.WithTimeout(ctx, constants.CompletionTimeout)
	defer cancel()

	ctx = logging.AppendCtx(ctx, slog.String("trigger", trigger))
	ctx = logging.AppendCtx(ctx, slog.Int("attempt", attempt))

	err := m.call(ctx)
	m.record(ctx, trigger, err)

	if err != nil {
		m.mu.Lock()
		m.marked = false
		m.mu.Unlock()

		if attempt >= constants.MaxCompletionAttempts {
			slog.ErrorContext(ctx, "appointment completion failed, no attempts left",
				logging.ErrKey, err,
				logging.PriorityCritical(),
			)
			return
		}
		slog.WarnContext(ctx, "appointment completion failed, will retry on next trigger", logging.ErrKey, err)
		return
	}

	slog.InfoContext(ctx, "appointment marked completed")

	if m.publisher == nil {
		return
	}
	notice := models.AppointmentCompletedMessage{
		AppointmentID: m.appointmentID,
		CompletedBy:   m.userID,
		SessionID:     m.sessionID,
		Attempt:       attempt,
		CompletedAt:   m.clock.Now().UTC(),
	}
	if err := m.publisher.PublishAppointmentCompleted(ctx, notice); err != nil {
		slog.WarnContext(ctx, "failed to publish completion notice", logging.ErrKey, err)
	}
}

func (m *CompletionManager) call(ctx context.Context) error {
	token, err := m.tokens.Resolve(ctx, m.userID)
	if err != nil {
		return err
	}
	return m.backend.MarkCompleted(ctx, token, m.appointmentID)
}

func (m *CompletionManager) record(ctx context.Context, trigger string, err error) {
	if m.attempts == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("result", result),
	))
}
