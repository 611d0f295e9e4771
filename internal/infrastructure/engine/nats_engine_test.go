// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

type fakeSubscription struct {
	transport *fakeTransport
	subject   string
}

func (s *fakeSubscription) Unsubscribe() error {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	delete(s.transport.handlers, s.subject)
	return nil
}

type sentRequest struct {
	subject string
	data    []byte
}

// fakeTransport answers requests with reply and delivers published events
// to subscribers synchronously.
type fakeTransport struct {
	mu           sync.Mutex
	handlers     map[string]func([]byte)
	requests     []sentRequest
	reply        func(subject string, data []byte) ([]byte, error)
	subscribeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]func([]byte)),
		reply: func(string, []byte) ([]byte, error) {
			return []byte(`{"ok":true}`), nil
		},
	}
}

func (t *fakeTransport) Request(_ context.Context, subject string, data []byte) ([]byte, error) {
	t.mu.Lock()
	t.requests = append(t.requests, sentRequest{subject: subject, data: data})
	reply := t.reply
	t.mu.Unlock()
	return reply(subject, data)
}

func (t *fakeTransport) Subscribe(subject string, handler func([]byte)) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subscribeErr != nil {
		return nil, t.subscribeErr
	}
	t.handlers[subject] = handler
	return &fakeSubscription{transport: t, subject: subject}, nil
}

func (t *fakeTransport) publish(subject string, data string) {
	t.mu.Lock()
	handler := t.handlers[subject]
	t.mu.Unlock()
	if handler != nil {
		handler([]byte(data))
	}
}

func (t *fakeTransport) subscribed(subject string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handlers[subject]
	return ok
}

func (t *fakeTransport) sent() []sentRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentRequest(nil), t.requests...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.EngineEvent
}

func (r *eventRecorder) sink(ev models.EngineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []models.EngineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.EngineEvent(nil), r.events...)
}

func testOptions() models.EngineOptions {
	return models.EngineOptions{
		SessionID:   "s-1",
		Room:        "Consult-appt-1",
		DisplayName: "Dr. Doc",
		Moderator:   true,
		Config:      models.DefaultEngineConfig(),
	}
}

func TestFactory_NewEngine(t *testing.T) {
	transport := newFakeTransport()
	recorder := &eventRecorder{}

	engine, err := NewFactory(transport, time.Second).NewEngine(context.Background(), testOptions(), recorder.sink)
	require.NoError(t, err)
	require.NotNil(t, engine)

	assert.True(t, transport.subscribed("lfx.consultation.engine.events.s-1"))

	sent := transport.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.EngineCreateSubject, sent[0].subject)

	var opts models.EngineOptions
	require.NoError(t, json.Unmarshal(sent[0].data, &opts))
	assert.Equal(t, testOptions(), opts)
	assert.True(t, opts.Config.LobbyEnabled)
	assert.False(t, opts.Config.MembersOnly)
}

func TestFactory_NewEngineFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeTransport)
		opts   models.EngineOptions
		expect domain.ErrorType
	}{
		{
			name:   "missing room",
			opts:   models.EngineOptions{SessionID: "s-1"},
			expect: domain.ErrorTypeValidation,
		},
		{
			name:   "subscribe fails",
			setup:  func(tr *fakeTransport) { tr.subscribeErr = errors.New("nats: connection closed") },
			opts:   testOptions(),
			expect: domain.ErrorTypeUnavailable,
		},
		{
			name: "no responders",
			setup: func(tr *fakeTransport) {
				tr.reply = func(string, []byte) ([]byte, error) { return nil, errors.New("nats: no responders available for request") }
			},
			opts:   testOptions(),
			expect: domain.ErrorTypeUnavailable,
		},
		{
			name: "bridge refuses",
			setup: func(tr *fakeTransport) {
				tr.reply = func(string, []byte) ([]byte, error) { return []byte(`{"ok":false,"error":"room locked"}`), nil }
			},
			opts:   testOptions(),
			expect: domain.ErrorTypeUnavailable,
		},
		{
			name: "garbage reply",
			setup: func(tr *fakeTransport) {
				tr.reply = func(string, []byte) ([]byte, error) { return []byte(`<html>`), nil }
			},
			opts:   testOptions(),
			expect: domain.ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			if tt.setup != nil {
				tt.setup(transport)
			}

			engine, err := NewFactory(transport, time.Second).NewEngine(context.Background(), tt.opts, (&eventRecorder{}).sink)
			assert.Nil(t, engine)
			assert.Equal(t, tt.expect, domain.GetErrorType(err))
			assert.False(t, transport.subscribed("lfx.consultation.engine.events.s-1"), "subscription released on failure")
		})
	}
}

func TestEngine_DeliversEventsInOrder(t *testing.T) {
	transport := newFakeTransport()
	recorder := &eventRecorder{}
	_, err := NewFactory(transport, time.Second).NewEngine(context.Background(), testOptions(), recorder.sink)
	require.NoError(t, err)

	subject := models.EngineEventsSubject("s-1")
	transport.publish(subject, `{"type":"lobby_joined"}`)
	transport.publish(subject, `not json`)
	transport.publish(subject, `{"type":"error","error_name":"conference.connectionError.membersOnly"}`)
	transport.publish(subject, `{}`)
	transport.publish(subject, `{"type":"conference_joined","local_id":"abc"}`)

	events := recorder.all()
	require.Len(t, events, 3)
	assert.Equal(t, models.EngineEventLobbyJoined, events[0].Type)
	assert.Equal(t, models.MembersOnlyErrorName, events[1].ErrorName)
	assert.Equal(t, "abc", events[2].LocalID)
}

func TestEngine_Commands(t *testing.T) {
	transport := newFakeTransport()
	transport.reply = func(subject string, data []byte) ([]byte, error) {
		if !strings.HasPrefix(subject, models.EngineCommandSubjectPrefix) {
			return []byte(`{"ok":true}`), nil
		}
		var cmd models.EngineCommand
		_ = json.Unmarshal(data, &cmd)
		switch cmd.Command {
		case models.EngineCommandListParticipants:
			return []byte(`{"ok":true,"participants":[{"id":"doc"},{"id":"pat","in_lobby":true}]}`), nil
		case models.EngineCommandAdmit:
			if cmd.ParticipantID == "ghost" {
				return []byte(`{"ok":false,"error":"not in lobby"}`), nil
			}
		}
		return []byte(`{"ok":true}`), nil
	}

	engine, err := NewFactory(transport, time.Second).NewEngine(context.Background(), testOptions(), (&eventRecorder{}).sink)
	require.NoError(t, err)

	participants, err := engine.ListParticipants(context.Background())
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.True(t, participants[1].InLobby)

	require.NoError(t, engine.AdmitParticipant(context.Background(), "pat"))
	err = engine.AdmitParticipant(context.Background(), "ghost")
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(engine.AdmitParticipant(context.Background(), "")))

	sent := transport.sent()
	require.Len(t, sent, 4)
	assert.Equal(t, "lfx.consultation.engine.command.s-1", sent[2].subject)
	assert.JSONEq(t, `{"command":"admit","participant_id":"pat"}`, string(sent[2].data))
}

func TestEngine_DisposeOnce(t *testing.T) {
	transport := newFakeTransport()
	recorder := &eventRecorder{}
	engine, err := NewFactory(transport, time.Second).NewEngine(context.Background(), testOptions(), recorder.sink)
	require.NoError(t, err)

	require.NoError(t, engine.Dispose(context.Background()))
	assert.False(t, transport.subscribed(models.EngineEventsSubject("s-1")))

	sent := transport.sent()
	require.Len(t, sent, 2)
	assert.JSONEq(t, `{"command":"dispose"}`, string(sent[1].data))

	assert.ErrorIs(t, engine.Dispose(context.Background()), domain.ErrEngineDisposed)
	_, err = engine.ListParticipants(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineDisposed)
	assert.Len(t, transport.sent(), 2, "nothing is sent after dispose")
}

func TestEngine_NoEventsAfterDispose(t *testing.T) {
	transport := newFakeTransport()
	recorder := &eventRecorder{}
	engine, err := NewFactory(transport, time.Second).NewEngine(context.Background(), testOptions(), recorder.sink)
	require.NoError(t, err)

	// keep a handle on the handler to simulate a message already in flight
	transport.mu.Lock()
	inFlight := transport.handlers[models.EngineEventsSubject("s-1")]
	transport.mu.Unlock()

	require.NoError(t, engine.Dispose(context.Background()))
	inFlight([]byte(`{"type":"conference_left"}`))

	assert.Empty(t, recorder.all())
}

func TestEngine_DisposeReportsBridgeFailure(t *testing.T) {
	transport := newFakeTransport()
	engine, err := NewFactory(transport, time.Second).NewEngine(context.Background(), testOptions(), (&eventRecorder{}).sink)
	require.NoError(t, err)

	transport.reply = func(string, []byte) ([]byte, error) { return nil, context.DeadlineExceeded }
	err = engine.Dispose(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, engine.Dispose(context.Background()), domain.ErrEngineDisposed)
}
