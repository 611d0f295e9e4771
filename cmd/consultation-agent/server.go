// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/service"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency readiness depends on.
type Pinger func(ctx context.Context) error

// statusAPI serves the health checks and the read-only session view.
type statusAPI struct {
	sessions *service.SessionService
	// checks are keyed by dependency name; every one must pass for readiness
	checks map[string]Pinger
}

type readinessResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRouter(api *statusAPI) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLoggerMiddleware())

	r.Get("/livez", api.Livez)
	r.Get("/readyz", api.Readyz)
	r.Get("/sessions/{appointment_id}/{user_id}", api.GetSession)

	return otelhttp.NewHandler(r, "consultation-agent")
}

// Livez reports that the process is up.
func (a *statusAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// Readyz checks the session service and every external dependency.
func (a *statusAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := readinessResponse{Status: "ok", Dependencies: make(map[string]string, len(a.checks)+1)}

	if a.sessions == nil || !a.sessions.ServiceReady() {
		resp.Status = "error"
		resp.Dependencies["sessions"] = "down"
	} else {
		resp.Dependencies["sessions"] = "ok"
	}

	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", "dependency", name, logging.ErrKey, err)
			resp.Status = "error"
			resp.Dependencies[name] = "down"
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetSession returns the latest view of an open session.
func (a *statusAPI) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := a.sessions.GetSession(ctx, chi.URLParam(r, "appointment_id"), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.With(logging.ErrKey, err).Error("error encoding response")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int
	var code string
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		status, code = http.StatusBadRequest, "bad_request"
	case domain.ErrorTypeNotFound:
		status, code = http.StatusNotFound, "not_found"
	case domain.ErrorTypeConflict:
		status, code = http.StatusConflict, "conflict"
	case domain.ErrorTypeUnauthorized:
		status, code = http.StatusUnauthorized, "unauthorized"
	case domain.ErrorTypeUnavailable:
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		slog.ErrorContext(ctx, "internal error", logging.ErrKey, err)
		status, code = http.StatusInternalServerError, "internal"
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, api *statusAPI, gracefulCloseWG *sync.WaitGroup) *http.Server {
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newRouter(api),
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}
