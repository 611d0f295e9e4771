// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package engine drives video engine sessions through a NATS bridge: one
// create request per session, a per-session event subject and a per-session
// command subject.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

// Factory implements domain.EngineFactory over a Transport.
type Factory struct {
	transport      Transport
	requestTimeout time.Duration
}

// Ensure Factory implements domain.EngineFactory
var _ domain.EngineFactory = (*Factory)(nil)

// NewFactory creates an engine factory. requestTimeout bounds every bridge request.
func NewFactory(transport Transport, requestTimeout time.Duration) *Factory {
	if requestTimeout <= 0 {
		requestTimeout = constants.DefaultEngineRequestTimeout
	}
	return &Factory{transport: transport, requestTimeout: requestTimeout}
}

// NewEngine subscribes to the session's events, then asks the bridge to create
// the engine session. Subscribing first means no event can be missed.
func (f *Factory) NewEngine(ctx context.Context, opts models.EngineOptions, sink domain.EngineEventSink) (domain.Engine, error) {
	if opts.SessionID == "" || opts.Room == "" {
		return nil, domain.NewValidationError("engine session id and room are required")
	}
	if sink == nil {
		return nil, domain.NewValidationError("engine event sink is required")
	}

	e := &Engine{
		sessionID:      opts.SessionID,
		transport:      f.transport,
		requestTimeout: f.requestTimeout,
		sink:           sink,
	}

	sub, err := f.transport.Subscribe(models.EngineEventsSubject(opts.SessionID), e.onEvent)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to subscribe to engine events", err)
	}
	e.sub = sub

	payload, err := json.Marshal(opts)
	if err != nil {
		e.unsubscribe(ctx)
		return nil, domain.NewInternalError("failed to marshal engine options", err)
	}

	reply, err := e.request(ctx, models.EngineCreateSubject, payload)
	if err != nil {
		e.closeLocal(ctx)
		return nil, err
	}
	if !reply.OK {
		e.closeLocal(ctx)
		return nil, domain.NewUnavailableError(fmt.Sprintf("engine bridge refused session: %s", reply.Error))
	}

	slog.DebugContext(ctx, "engine session created", "session_id", opts.SessionID, "room", opts.Room)
	return e, nil
}

// Engine is a handle to one bridge session.
type Engine struct {
	sessionID      string
	transport      Transport
	requestTimeout time.Duration

	mu       sync.Mutex
	sink     domain.EngineEventSink
	sub      Subscription
	disposed bool
}

// Ensure Engine implements domain.Engine
var _ domain.Engine = (*Engine)(nil)

func (e *Engine) onEvent(data []byte) {
	var ev models.EngineEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("dropping malformed engine event", "session_id", e.sessionID, logging.ErrKey, err)
		return
	}
	if ev.Type == "" {
		slog.Warn("dropping engine event without type", "session_id", e.sessionID)
		return
	}

	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

// ListParticipants asks the bridge for the current participant list.
func (e *Engine) ListParticipants(ctx context.Context) ([]models.EngineParticipant, error) {
	reply, err := e.command(ctx, models.EngineCommand{Command: models.EngineCommandListParticipants})
	if err != nil {
		return nil, err
	}
	return reply.Participants, nil
}

// AdmitParticipant lets a lobby participant into the conference.
func (e *Engine) AdmitParticipant(ctx context.Context, participantID string) error {
	if participantID == "" {
		return domain.NewValidationError("participant id is required")
	}
	_, err := e.command(ctx, models.EngineCommand{Command: models.EngineCommandAdmit, ParticipantID: participantID})
	return err
}

// Dispose stops event delivery and tells the bridge to end the session.
func (e *Engine) Dispose(ctx context.Context) error {
	if !e.closeLocal(ctx) {
		return domain.ErrEngineDisposed
	}

	payload, err := json.Marshal(models.EngineCommand{Command: models.EngineCommandDispose})
	if err != nil {
		return domain.NewInternalError("failed to marshal engine command", err)
	}
	if _, err := e.request(ctx, models.EngineCommandSubject(e.sessionID), payload); err != nil {
		return fmt.Errorf("dispose engine session %s: %w", e.sessionID, err)
	}
	return nil
}

// closeLocal detaches the sink and the subscription. It reports false when
// the engine was already disposed.
func (e *Engine) closeLocal(ctx context.Context) bool {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return false
	}
	e.disposed = true
	e.sink = nil
	e.mu.Unlock()

	e.unsubscribe(ctx)
	return true
}

func (e *Engine) unsubscribe(ctx context.Context) {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		slog.WarnContext(ctx, "failed to unsubscribe from engine events", "session_id", e.sessionID, logging.ErrKey, err)
	}
}

func (e *Engine) command(ctx context.Context, cmd models.EngineCommand) (*models.EngineReply, error) {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed {
		return nil, domain.ErrEngineDisposed
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal engine command", err)
	}
	reply, err := e.request(ctx, models.EngineCommandSubject(e.sessionID), payload)
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, domain.NewUnavailableError(fmt.Sprintf("engine command %s failed: %s", cmd.Command, reply.Error))
	}
	return reply, nil
}

func (e *Engine) request(ctx context.Context, subject string, payload []byte) (*models.EngineReply, error) {
	ctx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	data, err := e.transport.Request(ctx, subject, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewUnavailableError("engine bridge request failed", err)
	}

	var reply models.EngineReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, domain.NewInternalError("failed to parse engine bridge reply", err)
	}
	return &reply, nil
}
