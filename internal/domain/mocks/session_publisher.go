// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// MockSessionPublisher implements SessionPublisher for testing
type MockSessionPublisher struct {
	mock.Mock
}

func (m *MockSessionPublisher) PublishSessionView(ctx context.Context, view models.SessionView) error {
	args := m.Called(ctx, view)
	return args.Error(0)
}

func (m *MockSessionPublisher) PublishAppointmentCompleted(ctx context.Context, msg models.AppointmentCompletedMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockSessionJournal implements SessionJournal for testing
type MockSessionJournal struct {
	mock.Mock
}

func (m *MockSessionJournal) Record(ctx context.Context, entry models.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
