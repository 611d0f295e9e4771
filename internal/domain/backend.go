// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// AppointmentBackend is the REST collaborator owning appointments.
type AppointmentBackend interface {
	// ListAppointments returns every appointment visible to the token.
	ListAppointments(ctx context.Context, token string) ([]models.Appointment, error)
	// GetAppointment returns one appointment or ErrAppointmentMissing.
	GetAppointment(ctx context.Context, token, appointmentID string) (*models.Appointment, error)
	// MarkCompleted sets the appointment status to completed. It is a single attempt.
	MarkCompleted(ctx context.Context, token, appointmentID string) error
}

// TokenResolver resolves a bearer token for a user.
type TokenResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// CredentialStore keeps tokens under string keys.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, token string) error
}
