// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// EngineEventSink receives engine events in emission order.
type EngineEventSink func(models.EngineEvent)

// EngineFactory instantiates video engine sessions.
type EngineFactory interface {
	// NewEngine creates an engine session. An error is a synchronous
	// construction failure; no events are delivered to sink in that case.
	NewEngine(ctx context.Context, opts models.EngineOptions, sink EngineEventSink) (Engine, error)
}

// Engine is a handle to one live engine session.
type Engine interface {
	ListParticipants(ctx context.Context) ([]models.EngineParticipant, error)
	AdmitParticipant(ctx context.Context, participantID string) error
	// Dispose releases the engine session. Calls after the first return ErrEngineDisposed.
	Dispose(ctx context.Context) error
}
