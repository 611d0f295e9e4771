// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/service"
)

// SessionHandler handles the session control subjects.
type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) HandlerReady() bool {
	return h.sessionService != nil && h.sessionService.ServiceReady()
}

// HandleMessage implements domain.MessageHandler interface
func (h *SessionHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) (*models.SessionView, error){
		models.SessionOpenSubject:  h.HandleSessionOpen,
		models.SessionCloseSubject: h.HandleSessionClose,
		models.SessionGetSubject:   h.HandleSessionGet,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		if msg.HasReply() {
			if err := msg.Respond(nil); err != nil {
				slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
			}
		}
		return
	}

	reply := models.SessionReply{}
	view, err := handler(ctx, msg)
	if errors.Is(err, domain.ErrSessionRemote) {
		// close and get reach every instance; the owner answers
		slog.DebugContext(ctx, "session owned by another instance", logging.ErrKey, err)
		return
	}
	if err != nil {
		switch domain.GetErrorType(err) {
		case domain.ErrorTypeValidation, domain.ErrorTypeNotFound, domain.ErrorTypeConflict:
			slog.WarnContext(ctx, "session request rejected", logging.ErrKey, err)
		default:
			slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		}
		reply.Error = err.Error()
	} else {
		reply.View = view
	}

	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}

	response, err := json.Marshal(reply)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling session reply", logging.ErrKey, err)
		response = nil
	}
	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message", "response", string(response))
}

// HandleSessionOpen opens a session from an OpenSessionRequest payload.
func (h *SessionHandler) HandleSessionOpen(ctx context.Context, msg domain.Message) (*models.SessionView, error) {
	var req models.OpenSessionRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return nil, domain.NewValidationError("malformed open session request", err)
	}
	return h.sessionService.OpenSession(ctx, req)
}

// HandleSessionClose tears down the session named by a SessionKeyRequest payload.
func (h *SessionHandler) HandleSessionClose(ctx context.Context, msg domain.Message) (*models.SessionView, error) {
	req, err := decodeKeyRequest(msg)
	if err != nil {
		return nil, err
	}
	return h.sessionService.CloseSession(ctx, req.AppointmentID, req.UserID)
}

// HandleSessionGet returns the latest view of the session named by a SessionKeyRequest payload.
func (h *SessionHandler) HandleSessionGet(ctx context.Context, msg domain.Message) (*models.SessionView, error) {
	req, err := decodeKeyRequest(msg)
	if err != nil {
		return nil, err
	}
	return h.sessionService.GetSession(ctx, req.AppointmentID, req.UserID)
}

func decodeKeyRequest(msg domain.Message) (models.SessionKeyRequest, error) {
	var req models.SessionKeyRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return req, domain.NewValidationError("malformed session request", err)
	}
	return req, nil
}
