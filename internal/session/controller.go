// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package session implements the consultation session controller: the time
// gate, the admission state machine, lobby auto-admission and the completion
// side effect around one video engine session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/utils"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

const inboxSize = 128

// Config identifies a session and tunes its timing.
type Config struct {
	SessionID     string
	AppointmentID string
	UserID        string
	DisplayName   string
	// MeetingLink overrides the appointment's meeting link.
	MeetingLink string
	EngineHost  string
	// Location is where appointment dates and times are interpreted.
	Location *time.Location

	LobbyAdmitDelay    time.Duration
	LobbyAdmitInterval time.Duration
}

// Dependencies are the collaborators of a controller. Publisher and Journal are optional.
type Dependencies struct {
	Backend   domain.AppointmentBackend
	Tokens    domain.TokenResolver
	Engines   domain.EngineFactory
	Publisher domain.SessionPublisher
	Journal   domain.SessionJournal
	Clock     clockwork.Clock
	Pool      *concurrent.WorkerPool
}

// Controller runs one consultation session. A single event-loop goroutine
// owns the session state, the engine handle and the countdown ticker; every
// input is queued on the inbox and applied in arrival order.
type Controller struct {
	cfg  Config
	deps Dependencies

	inbox     chan Event
	closing   chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc

	// owned by the event loop
	state       State
	appointment *models.Appointment
	engine      domain.Engine
	ticker      clockwork.Ticker

	completion *CompletionManager
	admission  *AdmissionScheduler

	viewMu sync.RWMutex
	view   models.SessionView
}

// NewController creates a controller in GATING. Call Start to run it.
func NewController(cfg Config, deps Dependencies) *Controller {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.EngineHost == "" {
		cfg.EngineHost = constants.DefaultEngineHost
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	c := &Controller{
		cfg:     cfg,
		deps:    deps,
		inbox:   make(chan Event, inboxSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		state:   NewState(cfg.UserID),
		completion: NewCompletionManager(CompletionConfig{
			AppointmentID: cfg.AppointmentID,
			UserID:        cfg.UserID,
			SessionID:     cfg.SessionID,
			Backend:       deps.Backend,
			Tokens:        deps.Tokens,
			Publisher:     deps.Publisher,
			Clock:         deps.Clock,
		}),
		admission: NewAdmissionScheduler(deps.Clock, deps.Pool, cfg.LobbyAdmitDelay, cfg.LobbyAdmitInterval),
	}
	c.view = c.buildView()
	return c
}

// SessionID returns the generated or configured session id.
func (c *Controller) SessionID() string {
	return c.cfg.SessionID
}

// Start launches the event loop and the appointment lookup. Later calls are no-ops.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx = c.logContext(ctx)
		ctx, c.cancel = context.WithCancel(ctx)

		slog.InfoContext(ctx, "session started")
		go c.fetchAppointment(ctx)
		go c.run(ctx)
	})
}

// Close tears the session down and waits for the event loop to exit. Timers
// are stopped and the engine disposed; a completion call is not awaited.
// No event is processed after Close returns.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
	// a controller that never started has no loop to wait for
	c.startOnce.Do(func() { close(c.done) })
	<-c.done
}

// Done is closed when the event loop exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// View returns the latest snapshot.
func (c *Controller) View() models.SessionView {
	c.viewMu.RLock()
	view := c.view
	c.viewMu.RUnlock()

	view.CompletionMarked = c.completion.Marked()
	return view
}

// WaitCompletion blocks until in-flight completion calls returned.
func (c *Controller) WaitCompletion() {
	c.completion.Wait()
}

// post queues ev unless the session is closing. It blocks while the inbox is
// full so that events are never dropped or reordered.
func (c *Controller) post(ev Event) {
	select {
	case <-c.closing:
	case c.inbox <- ev:
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	defer c.cancel()

	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.Chan()
		}

		select {
		case <-c.closing:
			c.apply(ctx, Teardown{})
			slog.InfoContext(ctx, "session closed", "phase", c.state.Phase)
			return
		case ev := <-c.inbox:
			c.apply(ctx, c.stamp(ev))
		case <-tick:
			c.apply(ctx, Tick{Now: c.deps.Clock.Now()})
		}
	}
}

// stamp fills in loop-side data before an event is applied.
func (c *Controller) stamp(ev Event) Event {
	loaded, ok := ev.(AppointmentLoaded)
	if !ok {
		return ev
	}
	loaded.Now = c.deps.Clock.Now()
	if loaded.Appointment != nil {
		c.appointment = loaded.Appointment
		if loaded.Appointment.IsCompleted() {
			c.completion.MarkSettled()
		}
	}
	return loaded
}

// apply runs ev through the state machine and executes the resulting effects.
// Effects may produce follow-up events, which are applied before returning.
func (c *Controller) apply(ctx context.Context, ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		prev := c.state
		next, effects := Transition(prev, current)
		c.state = next

		for _, eff := range effects {
			if follow := c.execute(ctx, eff); follow != nil {
				queue = append(queue, follow)
			}
		}

		if prev.Phase != next.Phase {
			c.recordTransition(ctx, current, prev, next)
		}
	}
	c.publishView(ctx)
}

func (c *Controller) execute(ctx context.Context, eff Effect) Event {
	switch e := eff.(type) {
	case StartCountdown:
		if c.ticker == nil {
			c.ticker = c.deps.Clock.NewTicker(constants.GateTickInterval)
		}
	case StopCountdown:
		if c.ticker != nil {
			c.ticker.Stop()
			c.ticker = nil
		}
	case InitEngine:
		return c.initEngine(ctx)
	case StartAdmission:
		c.admission.Start(ctx, c.engine)
	case StopAdmission:
		c.admission.Stop()
	case DisposeEngine:
		c.disposeEngine(ctx)
	case RequestCompletion:
		c.completion.Trigger(ctx, e.Trigger)
	}
	return nil
}

func (c *Controller) initEngine(ctx context.Context) Event {
	if c.engine != nil {
		return nil
	}

	link := c.cfg.MeetingLink
	if link == "" && c.appointment != nil {
		link = c.appointment.MeetingLink
	}
	if link == "" {
		return RoomUnavailable{}
	}

	room, err := utils.ExtractRoomIdentifier(link, c.cfg.EngineHost)
	if err != nil {
		slog.WarnContext(ctx, "no room in meeting link, falling back to external link", logging.ErrKey, err)
		return RoomUnavailable{Link: link}
	}

	opts := models.EngineOptions{
		SessionID:   c.cfg.SessionID,
		Room:        room,
		DisplayName: c.cfg.DisplayName,
		Moderator:   c.state.Role == models.RoleModerator,
		Config:      models.DefaultEngineConfig(),
	}
	engine, err := c.deps.Engines.NewEngine(ctx, opts, func(ev models.EngineEvent) {
		c.post(EngineEventReceived{Event: ev})
	})
	if err != nil {
		slog.ErrorContext(ctx, "engine initialization failed", logging.ErrKey, err)
		return EngineInitFailed{Err: err}
	}

	c.engine = engine
	slog.InfoContext(ctx, "engine initialized", "room", room)
	return EngineInitialized{Room: room}
}

func (c *Controller) disposeEngine(ctx context.Context) {
	if c.engine == nil {
		return
	}
	engine := c.engine
	c.engine = nil

	if err := engine.Dispose(ctx); err != nil && !errors.Is(err, domain.ErrEngineDisposed) {
		slog.WarnContext(ctx, "failed to dispose engine", logging.ErrKey, err)
	}
}

func (c *Controller) fetchAppointment(ctx context.Context) {
	ev := AppointmentLoaded{}

	token, err := c.deps.Tokens.Resolve(ctx, c.cfg.UserID)
	if err == nil {
		ev.Appointment, err = c.deps.Backend.GetAppointment(ctx, token, c.cfg.AppointmentID)
	}
	if err == nil && ev.Appointment == nil {
		err = domain.ErrAppointmentMissing
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.WarnContext(ctx, "appointment lookup failed, admitting without schedule", logging.ErrKey, err)
		c.post(AppointmentLoaded{Err: err})
		return
	}

	// an unparseable schedule only costs the gate; role and room still apply
	ev.ScheduledAt, ev.Err = ev.Appointment.ScheduledAt(c.cfg.Location)
	if ev.Err != nil {
		slog.WarnContext(ctx, "appointment schedule unreadable, admitting without schedule",
			logging.ErrKey, ev.Err, "date", ev.Appointment.Date, "time", ev.Appointment.Time)
	}

	c.post(ev)
}

func (c *Controller) recordTransition(ctx context.Context, ev Event, prev, next State) {
	attrs := []any{"event", ev.Name(), "from", prev.Phase, "to", next.Phase}
	if next.Err != nil {
		attrs = append(attrs, "error_kind", next.Err.Kind, logging.ErrKey, next.Err.Message)
	}
	slog.InfoContext(ctx, "session phase changed", attrs...)

	if c.deps.Journal == nil {
		return
	}
	entry := models.JournalEntry{
		ID:            uuid.NewString(),
		SessionID:     c.cfg.SessionID,
		AppointmentID: c.cfg.AppointmentID,
		UserID:        c.cfg.UserID,
		Role:          next.Role,
		Event:         ev.Name(),
		FromPhase:     prev.Phase,
		ToPhase:       next.Phase,
		RecordedAt:    c.deps.Clock.Now().UTC(),
	}
	if next.Err != nil {
		entry.ErrorKind = next.Err.Kind
	}
	if err := c.deps.Journal.Record(ctx, entry); err != nil {
		slog.WarnContext(ctx, "failed to journal session transition", logging.ErrKey, err)
	}
}

func (c *Controller) publishView(ctx context.Context) {
	view := c.buildView()

	c.viewMu.Lock()
	c.view = view
	c.viewMu.Unlock()

	if c.deps.Publisher == nil {
		return
	}
	view.CompletionMarked = c.completion.Marked()
	if err := c.deps.Publisher.PublishSessionView(ctx, view); err != nil {
		slog.DebugContext(ctx, "failed to publish session view", logging.ErrKey, err)
	}
}

func (c *Controller) buildView() models.SessionView {
	s := c.state
	view := models.SessionView{
		SessionID:     c.cfg.SessionID,
		AppointmentID: c.cfg.AppointmentID,
		UserID:        c.cfg.UserID,
		Role:          s.Role,
		Phase:         s.Phase,
		Presentation:  Present(s),
		InLobby:       s.InLobby,
		Roster:        s.Roster.IDs(),
		ExternalURL:   s.ExternalURL,
		UpdatedAt:     c.deps.Clock.Now().UTC(),
	}
	if !s.ScheduledAt.IsZero() {
		scheduled := s.ScheduledAt
		view.ScheduledAt = &scheduled
	}
	if s.Phase == models.PhaseWaitingForStart && s.Gate.Kind == GateCountdown {
		view.Countdown = s.Gate.Countdown
	}
	if s.Err != nil {
		view.ErrorKind = s.Err.Kind
		view.ErrorMessage = s.Err.UserMessage()
	}
	return view
}

func (c *Controller) logContext(ctx context.Context) context.Context {
	ctx = logging.AppendCtx(ctx, slog.String("session_id", c.cfg.SessionID))
	ctx = logging.AppendCtx(ctx, slog.String("appointment_id", c.cfg.AppointmentID))
	return logging.AppendCtx(ctx, slog.String("user_id", c.cfg.UserID))
}
