// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

// INatsConn is the NATS connection surface the publisher needs.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder builds session messages and sends them to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// Ensure MessageBuilder implements domain.SessionPublisher
var _ domain.SessionPublisher = (*MessageBuilder)(nil)

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// sendMessage sends the message to the NATS server. While the connection is
// reconnecting the client buffers the message.
func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, data []byte) error {
	if !m.NatsConn.IsConnected() {
		slog.DebugContext(ctx, "NATS disconnected, message will be buffered", "subject", subject)
	}
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

func (m *MessageBuilder) sendJSON(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message into JSON", logging.ErrKey, err, "subject", subject)
		return err
	}
	return m.sendMessage(ctx, subject, data)
}

// PublishSessionView sends a session snapshot on the session updated subject.
func (m *MessageBuilder) PublishSessionView(ctx context.Context, view models.SessionView) error {
	return m.sendJSON(ctx, models.SessionUpdatedSubject, view)
}

// PublishAppointmentCompleted notifies downstream services that an
// appointment was marked completed.
func (m *MessageBuilder) PublishAppointmentCompleted(ctx context.Context, msg models.AppointmentCompletedMessage) error {
	return m.sendJSON(ctx, models.AppointmentCompletedSubject, msg)
}
