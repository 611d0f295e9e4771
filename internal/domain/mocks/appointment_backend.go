// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// MockAppointmentBackend implements AppointmentBackend for testing
type MockAppointmentBackend struct {
	mock.Mock
}

func (m *MockAppointmentBackend) ListAppointments(ctx context.Context, token string) ([]models.Appointment, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *MockAppointmentBackend) GetAppointment(ctx context.Context, token, appointmentID string) (*models.Appointment, error) {
	args := m.Called(ctx, token, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *MockAppointmentBackend) MarkCompleted(ctx context.Context, token, appointmentID string) error {
	args := m.Called(ctx, token, appointmentID)
	return args.Error(0)
}

// MockTokenResolver implements TokenResolver for testing
type MockTokenResolver struct {
	mock.Mock
}

func (m *MockTokenResolver) Resolve(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockCredentialStore implements CredentialStore for testing
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialStore) Put(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}
