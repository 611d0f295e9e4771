// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// SessionPublisher publishes session snapshots and completion notices.
type SessionPublisher interface {
	PublishSessionView(ctx context.Context, view models.SessionView) error
	PublishAppointmentCompleted(ctx context.Context, msg models.AppointmentCompletedMessage) error
}
