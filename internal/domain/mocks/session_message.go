// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// MockMessage is a session control request as delivered by NATS. HasReply and
// Respond are mocked; ExpectReply and ExpectNoReply set up the usual cases.
type MockMessage struct {
	mock.Mock
	subject string
	payload []byte
}

// NewMockMessage creates a message with a raw payload.
func NewMockMessage(payload []byte, subject string) *MockMessage {
	return &MockMessage{subject: subject, payload: payload}
}

// NewMockRequest creates a message whose payload is req encoded as JSON.
func NewMockRequest(subject string, req any) *MockMessage {
	payload, err := json.Marshal(req)
	if err != nil {
		panic(err)
	}
	return NewMockMessage(payload, subject)
}

func (m *MockMessage) Subject() string {
	return m.subject
}

func (m *MockMessage) Data() []byte {
	return m.payload
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

// ExpectReply expects exactly one reply and returns the SessionReply it is
// decoded into once sent.
func (m *MockMessage) ExpectReply() *models.SessionReply {
	reply := &models.SessionReply{}
	m.On("HasReply").Return(true)
	m.On("Respond", mock.Anything).Run(func(args mock.Arguments) {
		if data, ok := args.Get(0).([]byte); ok {
			_ = json.Unmarshal(data, reply)
		}
	}).Return(nil).Once()
	return reply
}

// ExpectNoReply marks the request as expecting a reply the handler must
// withhold. Respond is not set up, so a reply fails the test.
func (m *MockMessage) ExpectNoReply() {
	m.On("HasReply").Return(true).Maybe()
}

// MockSessionClaims implements SessionClaims for testing
type MockSessionClaims struct {
	mock.Mock
}

func (m *MockSessionClaims) Claim(ctx context.Context, claim models.SessionClaim) (uint64, error) {
	args := m.Called(ctx, claim)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockSessionClaims) Refresh(ctx context.Context, claim models.SessionClaim, revision uint64) (uint64, error) {
	args := m.Called(ctx, claim, revision)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockSessionClaims) Owner(ctx context.Context, appointmentID, userID string) (models.SessionClaim, error) {
	args := m.Called(ctx, appointmentID, userID)
	return args.Get(0).(models.SessionClaim), args.Error(1)
}

func (m *MockSessionClaims) Release(ctx context.Context, claim models.SessionClaim, revision uint64) error {
	args := m.Called(ctx, claim, revision)
	return args.Error(0)
}
