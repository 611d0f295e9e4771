// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// MockEngineFactory implements EngineFactory for testing
type MockEngineFactory struct {
	mock.Mock
}

func (m *MockEngineFactory) NewEngine(ctx context.Context, opts models.EngineOptions, sink domain.EngineEventSink) (domain.Engine, error) {
	args := m.Called(ctx, opts, sink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Engine), args.Error(1)
}

// MockEngine implements Engine for testing
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) ListParticipants(ctx context.Context) ([]models.EngineParticipant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EngineParticipant), args.Error(1)
}

func (m *MockEngine) AdmitParticipant(ctx context.Context, participantID string) error {
	args := m.Called(ctx, participantID)
	return args.Error(0)
}

func (m *MockEngine) Dispose(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
