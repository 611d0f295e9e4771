// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// testClock is the part of the fake clock the tests drive.
type testClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(waiters int)
}

// fakeEngine records commands and lets a test emit engine events.
type fakeEngine struct {
	sink domain.EngineEventSink
	opts models.EngineOptions

	mu           sync.Mutex
	participants []models.EngineParticipant
	admitted     []string
	disposals    int
}

func (f *fakeEngine) ListParticipants(context.Context) ([]models.EngineParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.EngineParticipant, len(f.participants))
	copy(out, f.participants)
	return out, nil
}

func (f *fakeEngine) AdmitParticipant(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admitted = append(f.admitted, id)
	for i := range f.participants {
		if f.participants[i].ID == id {
			f.participants[i].InLobby = false
		}
	}
	return nil
}

func (f *fakeEngine) Dispose(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposals++
	if f.disposals > 1 {
		return domain.ErrEngineDisposed
	}
	return nil
}

func (f *fakeEngine) setParticipants(p ...models.EngineParticipant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants = p
}

func (f *fakeEngine) admittedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.admitted...)
}

func (f *fakeEngine) disposeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposals
}

func (f *fakeEngine) emit(ev models.EngineEvent) {
	f.sink(ev)
}

func (f *fakeEngine) emitType(t models.EngineEventType) {
	f.sink(models.EngineEvent{Type: t})
}

// fakeFactory hands out fakeEngines, or fails with err.
type fakeFactory struct {
	mu      sync.Mutex
	err     error
	engines []*fakeEngine
}

func (f *fakeFactory) NewEngine(_ context.Context, opts models.EngineOptions, sink domain.EngineEventSink) (domain.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	engine := &fakeEngine{sink: sink, opts: opts}
	f.engines = append(f.engines, engine)
	return engine, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *fakeFactory) last() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}
