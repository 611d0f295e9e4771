// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/session"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

// SessionService keeps one session controller per (appointment, user) pair.
// With Claims set the pair is also claimed for InstanceID, so that replicas
// sharing the claim bucket never run the same session twice.
type SessionService struct {
	Backend   domain.AppointmentBackend
	Tokens    domain.TokenResolver
	Engines   domain.EngineFactory
	Publisher domain.SessionPublisher
	Journal   domain.SessionJournal
	// SessionTokens receives caller-supplied tokens. Optional.
	SessionTokens domain.CredentialStore
	// Claims records session ownership across replicas. Optional for a
	// single instance.
	Claims     domain.SessionClaims
	InstanceID string
	Clock      clockwork.Clock
	Pool       *concurrent.WorkerPool
	Config     ServiceConfig

	mu       sync.Mutex
	sessions map[string]*registration
	closed   bool
}

// registration is a live controller and the claim revision it holds.
type registration struct {
	controller *session.Controller
	claim      models.SessionClaim
	revision   uint64
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	backend domain.AppointmentBackend,
	tokens domain.TokenResolver,
	engines domain.EngineFactory,
	publisher domain.SessionPublisher,
	journal domain.SessionJournal,
	sessionTokens domain.CredentialStore,
	pool *concurrent.WorkerPool,
	config ServiceConfig,
) *SessionService {
	return &SessionService{
		Backend:       backend,
		Tokens:        tokens,
		Engines:       engines,
		Publisher:     publisher,
		Journal:       journal,
		SessionTokens: sessionTokens,
		InstanceID:    uuid.NewString(),
		Clock:         clockwork.NewRealClock(),
		Pool:          pool,
		Config:        config.withDefaults(),
		sessions:      make(map[string]*registration),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SessionService) ServiceReady() bool {
	return s.Backend != nil &&
		s.Tokens != nil &&
		s.Engines != nil
}

func sessionKey(appointmentID, userID string) string {
	return appointmentID + "/" + userID
}

func validateKey(appointmentID, userID string) error {
	if strings.TrimSpace(appointmentID) == "" {
		return domain.NewValidationError("appointment_id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("user_id is required")
	}
	return nil
}

// OpenSession starts a controller for the request's appointment and user and
// returns its first snapshot. A second open for the same pair is a conflict.
func (s *SessionService) OpenSession(ctx context.Context, req models.OpenSessionRequest) (*models.SessionView, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	if err := validateKey(req.AppointmentID, req.UserID); err != nil {
		return nil, err
	}

	ctx = logging.AppendCtx(ctx, slog.String("appointment_id", req.AppointmentID))
	ctx = logging.AppendCtx(ctx, slog.String("user_id", req.UserID))

	if req.Token != "" {
		if s.SessionTokens == nil {
			slog.WarnContext(ctx, "caller supplied a token but no session token store is configured")
		} else if err := s.SessionTokens.Put(ctx, constants.TokenKey(req.UserID), req.Token); err != nil {
			slog.WarnContext(ctx, "failed to store session token", logging.ErrKey, err)
		}
	}

	key := sessionKey(req.AppointmentID, req.UserID)

	s.mu.Lock()
	err := s.admissible(key)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	reg := &registration{claim: models.SessionClaim{
		AppointmentID: req.AppointmentID,
		UserID:        req.UserID,
		Owner:         s.InstanceID,
		SessionID:     uuid.NewString(),
	}}
	if s.Claims != nil {
		claimCtx, cancel := context.WithTimeout(ctx, constants.SessionClaimTimeout)
		reg.revision, err = s.Claims.Claim(claimCtx, reg.claim)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "session claim refused", logging.ErrKey, err)
			return nil, err
		}
	}

	s.mu.Lock()
	if err := s.admissible(key); err != nil {
		s.mu.Unlock()
		s.release(ctx, reg)
		return nil, err
	}

	reg.controller = session.NewController(session.Config{
		SessionID:          reg.claim.SessionID,
		AppointmentID:      req.AppointmentID,
		UserID:             req.UserID,
		DisplayName:        req.DisplayName,
		MeetingLink:        req.MeetingLink,
		EngineHost:         s.Config.EngineHost,
		Location:           s.Config.Location,
		LobbyAdmitDelay:    s.Config.LobbyAdmitDelay,
		LobbyAdmitInterval: s.Config.LobbyAdmitInterval,
	}, session.Dependencies{
		Backend:   s.Backend,
		Tokens:    s.Tokens,
		Engines:   s.Engines,
		Publisher: s.Publisher,
		Journal:   s.Journal,
		Clock:     s.Clock,
		Pool:      s.Pool,
	})
	s.sessions[key] = reg
	s.mu.Unlock()

	// the session outlives the request that opened it
	controller := reg.controller
	controller.Start(context.WithoutCancel(ctx))
	go s.forget(key, reg)

	slog.InfoContext(ctx, "session opened", "session_id", controller.SessionID())

	view := controller.View()
	return &view, nil
}

// admissible checks that key may be opened locally. Callers hold s.mu.
func (s *SessionService) admissible(key string) error {
	if s.closed {
		return domain.ErrServiceUnavailable
	}
	if _, exists := s.sessions[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrSessionExists, key)
	}
	return nil
}

// drop removes reg from the registry and gives its claim up. Dropping twice
// is a no-op.
func (s *SessionService) drop(ctx context.Context, key string, reg *registration) {
	s.mu.Lock()
	if s.sessions[key] != reg {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, key)
	s.mu.Unlock()

	s.release(ctx, reg)
}

func (s *SessionService) release(ctx context.Context, reg *registration) {
	if s.Claims == nil {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.SessionClaimTimeout)
	defer cancel()

	s.mu.Lock()
	revision := reg.revision
	s.mu.Unlock()

	if err := s.Claims.Release(releaseCtx, reg.claim, revision); err != nil {
		// the claim lapses with the bucket TTL
		slog.WarnContext(ctx, "failed to release session claim", logging.ErrKey, err,
			"appointment_id", reg.claim.AppointmentID, "user_id", reg.claim.UserID)
	}
}

// forget drops the controller from the registry once its event loop exited.
func (s *SessionService) forget(key string, reg *registration) {
	<-reg.controller.Done()
	s.drop(context.Background(), key, reg)
}

// lookup returns the local registration of a pair. A pair that is only open on
// another instance yields ErrSessionRemote.
func (s *SessionService) lookup(ctx context.Context, appointmentID, userID string) (*registration, error) {
	if err := validateKey(appointmentID, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	reg, ok := s.sessions[sessionKey(appointmentID, userID)]
	s.mu.Unlock()
	if ok {
		return reg, nil
	}

	if s.Claims == nil {
		return nil, domain.ErrSessionNotFound
	}
	claimCtx, cancel := context.WithTimeout(ctx, constants.SessionClaimTimeout)
	defer cancel()
	claim, err := s.Claims.Owner(claimCtx, appointmentID, userID)
	if err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			slog.WarnContext(ctx, "session claim lookup failed", logging.ErrKey, err)
		}
		return nil, domain.ErrSessionNotFound
	}
	if claim.Owner != s.InstanceID {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionRemote, claim.Owner)
	}
	return nil, domain.ErrSessionNotFound
}

// GetSession returns the latest snapshot of an open session.
func (s *SessionService) GetSession(ctx context.Context, appointmentID, userID string) (*models.SessionView, error) {
	reg, err := s.lookup(ctx, appointmentID, userID)
	if err != nil {
		slog.DebugContext(ctx, "session lookup failed", logging.ErrKey, err)
		return nil, err
	}

	view := reg.controller.View()
	return &view, nil
}

// CloseSession tears a session down and returns its final snapshot.
func (s *SessionService) CloseSession(ctx context.Context, appointmentID, userID string) (*models.SessionView, error) {
	reg, err := s.lookup(ctx, appointmentID, userID)
	if err != nil {
		return nil, err
	}

	reg.controller.Close()
	s.drop(ctx, sessionKey(appointmentID, userID), reg)

	view := reg.controller.View()
	slog.InfoContext(ctx, "session closed by request",
		"appointment_id", appointmentID,
		"user_id", userID,
		"phase", view.Phase,
	)
	return &view, nil
}

// OpenSessions returns the number of live sessions.
func (s *SessionService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown refuses new sessions, closes every open one and waits for pending
// completion calls until ctx is done. Claims are released as sessions close.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	keys := make([]string, 0, len(s.sessions))
	regs := make(map[string]*registration, len(s.sessions))
	for key, reg := range s.sessions {
		keys = append(keys, key)
		regs[key] = reg
	}
	s.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	slog.InfoContext(ctx, "closing open sessions", "count", len(keys))

	pool := s.Pool
	if pool == nil {
		pool = concurrent.NewWorkerPool(len(keys))
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		// shutdown ctx only bounds the wait below
		concurrent.ForEach(context.WithoutCancel(ctx), pool, keys, func(ctx context.Context, key string) error {
			reg := regs[key]
			reg.controller.Close()
			s.drop(ctx, key, reg)
			reg.controller.WaitCompletion()
			return nil
		})
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "shutdown deadline reached with completion calls in flight", logging.ErrKey, ctx.Err())
		return ctx.Err()
	}
}

// KeepClaims rewrites the claims of live sessions every interval so they
// outlive the claim bucket TTL. It returns when ctx is done.
func (s *SessionService) KeepClaims(ctx context.Context, interval time.Duration) {
	if s.Claims == nil {
		return
	}
	if interval <= 0 {
		interval = constants.SessionClaimRefreshInterval
	}

	ticker := s.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.RefreshClaims(ctx)
		}
	}
}

// RefreshClaims rewrites the claim of every live session once.
func (s *SessionService) RefreshClaims(ctx context.Context) {
	if s.Claims == nil {
		return
	}

	s.mu.Lock()
	regs := make([]*registration, 0, len(s.sessions))
	for _, reg := range s.sessions {
		regs = append(regs, reg)
	}
	s.mu.Unlock()

	for _, reg := range regs {
		s.mu.Lock()
		revision := reg.revision
		s.mu.Unlock()

		claimCtx, cancel := context.WithTimeout(ctx, constants.SessionClaimTimeout)
		next, err := s.Claims.Refresh(claimCtx, reg.claim, revision)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "failed to refresh session claim", logging.ErrKey, err,
				"appointment_id", reg.claim.AppointmentID, "user_id", reg.claim.UserID)
			continue
		}

		s.mu.Lock()
		reg.revision = next
		s.mu.Unlock()
	}
}
