// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

const appointmentsJSON = `[
	{"id":"appt-1","date":"2025-06-02","time":"09:00","meeting_link":"https://meet.jit.si/Consult-appt-1","doctor_id":"doc-1","patient_id":"pat-1","status":"scheduled"},
	{"id":"appt-2","date":"2025-06-03T00:00:00Z","time":"14:30:00","doctor_id":"doc-2"}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:        server.URL + "/",
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://backend.example.com/api/"})

	assert.Equal(t, "https://backend.example.com/api", client.config.BaseURL)
	assert.Equal(t, DefaultClientTimeout, client.httpClient.Timeout)
	assert.Equal(t, DefaultMaxRetries, client.config.MaxRetries)
	assert.Equal(t, DefaultInitialBackoff, client.config.InitialBackoff)
	assert.NotNil(t, client.httpClient.Transport)

	assert.Zero(t, NewClient(Config{MaxRetries: -1}).config.MaxRetries)
}

func TestClient_ListAppointments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appointments", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get(constants.AuthorizationHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, appointmentsJSON)
	})

	appointments, err := client.ListAppointments(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, appointments, 2)
	assert.Equal(t, "appt-1", appointments[0].ID)
	assert.Equal(t, "https://meet.jit.si/Consult-appt-1", appointments[0].MeetingLink)
	assert.Equal(t, "doc-2", appointments[1].DoctorID)
}

func TestClient_ListAppointments_Envelope(t *testing.T) {
	for name, body := range map[string]string{
		"appointments": `{"appointments":` + appointmentsJSON + `}`,
		"data":         `{"data":` + appointmentsJSON + `}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			appointments, err := client.ListAppointments(context.Background(), "tok")
			require.NoError(t, err)
			assert.Len(t, appointments, 2)
		})
	}
}

func TestClient_GetAppointment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, appointmentsJSON)
	})

	appt, err := client.GetAppointment(context.Background(), "tok", "appt-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", appt.DoctorID)

	_, err = client.GetAppointment(context.Background(), "tok", "appt-9")
	assert.ErrorIs(t, err, domain.ErrAppointmentMissing)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, appointmentsJSON)
	})

	appointments, err := client.ListAppointments(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, appointments, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListAppointments(context.Background(), "tok")
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	assert.Equal(t, int32(DefaultMaxRetries+1), calls.Load())
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   domain.ErrorType
	}{
		{http.StatusBadRequest, `{"message":"bad date"}`, domain.ErrorTypeValidation},
		{http.StatusUnauthorized, ``, domain.ErrorTypeUnauthorized},
		{http.StatusForbidden, `{"error":"forbidden"}`, domain.ErrorTypeUnauthorized},
		{http.StatusNotFound, ``, domain.ErrorTypeNotFound},
		{http.StatusConflict, ``, domain.ErrorTypeConflict},
		{http.StatusTeapot, ``, domain.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.ListAppointments(context.Background(), "tok")
			assert.Equal(t, tt.want, domain.GetErrorType(err))
			assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
		})
	}
}

func TestClient_MarkCompleted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/appointments/appt-1", r.URL.Path)
		assert.Equal(t, "Bearer tok-doc", r.Header.Get(constants.AuthorizationHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"status": "completed"}, body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.MarkCompleted(context.Background(), "tok-doc", "appt-1"))
}

func TestClient_MarkCompletedIsSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.MarkCompleted(context.Background(), "tok", "appt-1")
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RequiresToken(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected without a token")
	})

	_, err := client.ListAppointments(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(client.MarkCompleted(context.Background(), "tok", "")))
}

func TestClient_PropagatesRequestID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", r.Header.Get(constants.RequestIDHeader))
		_, _ = io.WriteString(w, `[]`)
	})

	ctx := context.WithValue(context.Background(), constants.RequestIDContextID, "req-1")
	appointments, err := client.ListAppointments(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, appointments)
}

func TestClient_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListAppointments(ctx, "tok")
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   bool
	}{
		{"500 server error", 500, nil, true},
		{"503 service unavailable", 503, nil, true},
		{"429 rate limit", 429, nil, true},
		{"400 bad request", 400, nil, false},
		{"404 not found", 404, nil, false},
		{"200 success", 200, nil, false},
		{"network error", 0, errors.New("connection refused"), true},
		{"cancelled", 0, context.Canceled, false},
		{"deadline", 0, context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldRetry(tt.statusCode, tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	client := NewClient(Config{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, 100*time.Millisecond, client.calculateBackoff(0))
	for attempt := 1; attempt < 8; attempt++ {
		backoff := client.calculateBackoff(attempt)
		assert.GreaterOrEqual(t, backoff, 100*time.Millisecond)
		assert.LessOrEqual(t, backoff, 1250*time.Millisecond)
	}
}
