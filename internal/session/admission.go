// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

// AdmissionScheduler admits lobby participants on behalf of the moderator:
// once after a delay, then on a fixed interval, until stopped.
// At most one admission task runs at a time.
type AdmissionScheduler struct {
	clock    clockwork.Clock
	pool     *concurrent.WorkerPool
	delay    time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdmissionScheduler creates a stopped scheduler. Non-positive durations use the defaults.
func NewAdmissionScheduler(clock clockwork.Clock, pool *concurrent.WorkerPool, delay, interval time.Duration) *AdmissionScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pool == nil {
		pool = concurrent.NewWorkerPool(4)
	}
	if delay <= 0 {
		delay = constants.DefaultLobbyAdmitDelay
	}
	if interval <= 0 {
		interval = constants.DefaultLobbyAdmitInterval
	}
	return &AdmissionScheduler{clock: clock, pool: pool, delay: delay, interval: interval}
}

// Start launches the admission task for engine. It is a no-op while a task runs.
func (s *AdmissionScheduler) Start(ctx context.Context, engine domain.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil || engine == nil {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.run(taskCtx, engine)
	}()
}

// Stop cancels the task and waits for it to exit. It is a no-op when nothing runs.
func (s *AdmissionScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a task is active.
func (s *AdmissionScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *AdmissionScheduler) run(ctx context.Context, engine domain.Engine) {
	select {
	case <-ctx.Done():
		return
	case <-s.clock.After(s.delay):
	}
	s.admitWaiting(ctx, engine)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.admitWaiting(ctx, engine)
		}
	}
}

// admitWaiting admits every participant the engine reports in the lobby.
func (s *AdmissionScheduler) admitWaiting(ctx context.Context, engine domain.Engine) {
	participants, err := engine.ListParticipants(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "failed to list engine participants", logging.ErrKey, err)
		}
		return
	}

	var waiting []models.EngineParticipant
	for _, p := range participants {
		if p.InLobby {
			waiting = append(waiting, p)
		}
	}
	if len(waiting) == 0 {
		return
	}

	errs := concurrent.ForEach(ctx, s.pool, waiting, func(ctx context.Context, p models.EngineParticipant) error {
		if err := engine.AdmitParticipant(ctx, p.ID); err != nil {
			return err
		}
		slog.InfoContext(ctx, "admitted lobby participant", "participant_id", p.ID)
		return nil
	})
	for _, err := range errs {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "failed to admit lobby participant", logging.ErrKey, err)
		}
	}
}
