// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package backend is the REST client of the appointment backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

const (
	// DefaultClientTimeout is the default HTTP client timeout for backend requests
	DefaultClientTimeout = 15 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 2
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Config holds the configuration for the backend client
type Config struct {
	BaseURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration for reads
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Optional: base transport, wrapped with otelhttp
	Transport http.RoundTripper
}

// Client implements domain.AppointmentBackend over REST.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Ensure that Client implements domain.AppointmentBackend
var _ domain.AppointmentBackend = (*Client)(nil)

// NewClient creates a backend client. Negative MaxRetries disables retries.
func NewClient(config Config) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}
	base := config.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		config: config,
	}
}

// ListAppointments returns the appointments visible to the token holder.
func (c *Client) ListAppointments(ctx context.Context, token string) ([]models.Appointment, error) {
	resp, err := c.doRequest(ctx, token, http.MethodGet, "/appointments", nil, c.config.MaxRetries)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapHTTPError(resp.StatusCode, body)
	}

	appointments, err := decodeAppointments(body)
	if err != nil {
		return nil, domain.NewInternalError("failed to parse appointments", err)
	}
	return appointments, nil
}

// GetAppointment finds one appointment in the list, as the backend exposes no
// single-appointment read.
func (c *Client) GetAppointment(ctx context.Context, token, appointmentID string) (*models.Appointment, error) {
	appointments, err := c.ListAppointments(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range appointments {
		if appointments[i].ID == appointmentID {
			return &appointments[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrAppointmentMissing, appointmentID)
}

type statusUpdate struct {
	Status string `json:"status"`
}

// MarkCompleted sets the appointment status to completed. It is a single
// attempt; the caller owns retries.
func (c *Client) MarkCompleted(ctx context.Context, token, appointmentID string) error {
	if appointmentID == "" {
		return domain.NewValidationError("appointment id is required")
	}
	path := "/appointments/" + url.PathEscape(appointmentID)

	resp, err := c.doRequest(ctx, token, http.MethodPut, path, statusUpdate{Status: models.AppointmentStatusCompleted}, 0)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapHTTPError(resp.StatusCode, body)
	}
	return nil
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	return statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.config.InitialBackoff
	}

	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoffWithJitter := time.Duration(backoff + jitter)
	if backoffWithJitter < c.config.InitialBackoff {
		backoffWithJitter = c.config.InitialBackoff
	}
	return backoffWithJitter
}

// doRequest performs an authenticated request, retrying up to maxRetries
// times on network errors, 5xx and 429. The returned response body is open.
func (c *Client) doRequest(ctx context.Context, token, method, path string, body any, maxRetries int) (*http.Response, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, domain.NewInternalError("failed to marshal request body", err)
		}
	}

	endpoint := c.config.BaseURL + path
	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := c.createRequest(ctx, token, method, endpoint, payload)
		if err != nil {
			return nil, err
		}

		if attempt == 0 {
			slog.DebugContext(ctx, "making backend request", "method", method, "path", path)
		} else {
			slog.DebugContext(ctx, "retrying backend request", "method", method, "path", path, "attempt", attempt)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		if err == nil && !shouldRetry(statusCode, nil) {
			slog.DebugContext(ctx, "backend request completed",
				"method", method,
				"path", path,
				"status", statusCode,
				"duration", duration.String(),
				"attempt", attempt+1,
			)
			return resp, nil
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		lastErr, lastStatus = err, statusCode

		if !shouldRetry(statusCode, err) || attempt == maxRetries {
			break
		}

		backoff := c.calculateBackoff(attempt)
		slog.WarnContext(ctx, "backend request failed, retrying",
			"method", method,
			"path", path,
			"status", statusCode,
			"duration", duration.String(),
			"attempt", attempt+1,
			"backoff", backoff.String(),
			logging.ErrKey, err,
		)
		select {
		case <-ctx.Done():
			return nil, domain.NewUnavailableError("backend request cancelled", ctx.Err())
		case <-time.After(backoff):
		}
	}

	if lastErr != nil {
		slog.ErrorContext(ctx, "backend request failed",
			"method", method,
			"path", path,
			logging.ErrKey, lastErr,
		)
		return nil, domain.NewUnavailableError("backend request failed", lastErr)
	}
	slog.ErrorContext(ctx, "backend request failed",
		"method", method,
		"path", path,
		"status", lastStatus,
	)
	return nil, mapHTTPError(lastStatus, nil)
}

func (c *Client) createRequest(ctx context.Context, token, method, endpoint string, payload []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, domain.NewInternalError("failed to create request", err)
	}
	req.Header.Set(constants.AuthorizationHeader, constants.BearerPrefix+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID, ok := ctx.Value(constants.RequestIDContextID).(string); ok && requestID != "" {
		req.Header.Set(constants.RequestIDHeader, requestID)
	}
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to read backend response", err)
	}
	return body, nil
}

// decodeAppointments accepts a bare array or an envelope with an
// "appointments" or "data" array.
func decodeAppointments(body []byte) ([]models.Appointment, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []models.Appointment{}, nil
	}

	if trimmed[0] == '[' {
		var appointments []models.Appointment
		if err := json.Unmarshal(trimmed, &appointments); err != nil {
			return nil, err
		}
		return appointments, nil
	}

	var envelope struct {
		Appointments []models.Appointment `json:"appointments"`
		Data         []models.Appointment `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Appointments != nil {
		return envelope.Appointments, nil
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return []models.Appointment{}, nil
}

// mapHTTPError maps a non-2xx response to a domain error.
func mapHTTPError(statusCode int, body []byte) error {
	var errMsg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &errMsg)

	message := errMsg.Message
	if message == "" {
		message = errMsg.Error
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d error", statusCode)
	}

	switch {
	case statusCode == http.StatusBadRequest:
		return domain.NewValidationError(message)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return domain.NewUnauthorizedError(fmt.Sprintf("authentication/authorization failed: %s", message))
	case statusCode == http.StatusNotFound:
		return domain.NewNotFoundError(message)
	case statusCode == http.StatusConflict:
		return domain.NewConflictError(message)
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return domain.NewUnavailableError(message)
	default:
		return domain.NewInternalError(message)
	}
}
