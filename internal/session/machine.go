// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// State is the session state owned by the controller event loop.
type State struct {
	Phase  models.Phase
	UserID string
	Role   models.Role

	ScheduledAt time.Time
	Gate        GateDecision
	CanJoin     bool

	// EngineActive is true while an engine handle exists.
	EngineActive bool
	Room         string
	LocalID      string
	InLobby      bool

	Roster      Roster
	Err         *SessionError
	ExternalURL string
	Closed      bool
}

// NewState returns the initial state of a session. Moderator rights are only
// granted by a fetched appointment.
func NewState(userID string) State {
	return State{Phase: models.PhaseGating, UserID: userID, Role: models.RoleParticipant}
}

// Event is an input of the state machine.
type Event interface {
	Name() string
}

// AppointmentLoaded carries the appointment lookup result. Err set means the
// gate admits; Appointment is still set when only the schedule was unreadable.
// Now is sampled when the event is applied.
type AppointmentLoaded struct {
	Appointment *models.Appointment
	ScheduledAt time.Time
	Err         error
	Now         time.Time
}

// Tick re-evaluates a pending gate.
type Tick struct {
	Now time.Time
}

// EngineInitialized reports a created engine handle.
type EngineInitialized struct {
	Room string
}

// EngineInitFailed reports a synchronous engine construction failure.
type EngineInitFailed struct {
	Err error
}

// RoomUnavailable reports that no room could be derived from the meeting link.
type RoomUnavailable struct {
	Link string
}

// EngineEventReceived wraps one engine event.
type EngineEventReceived struct {
	Event models.EngineEvent
}

// Teardown closes the session.
type Teardown struct{}

func (AppointmentLoaded) Name() string     { return "appointment_loaded" }
func (Tick) Name() string                  { return "tick" }
func (EngineInitialized) Name() string     { return "engine_initialized" }
func (EngineInitFailed) Name() string      { return "engine_init_failed" }
func (RoomUnavailable) Name() string       { return "room_unavailable" }
func (e EngineEventReceived) Name() string { return "engine." + string(e.Event.Type) }
func (Teardown) Name() string              { return "teardown" }

// Effect is a side effect requested by a transition.
type Effect interface {
	effect()
}

type (
	// StartCountdown starts the one-second gate ticker.
	StartCountdown struct{}
	// StopCountdown stops the gate ticker.
	StopCountdown struct{}
	// InitEngine creates the engine handle unless one exists.
	InitEngine struct{}
	// DisposeEngine disposes the engine handle if one exists.
	DisposeEngine struct{}
	// StartAdmission starts lobby auto-admission.
	StartAdmission struct{}
	// StopAdmission cancels lobby auto-admission and waits for it.
	StopAdmission struct{}
	// RequestCompletion asks the completion manager to mark the appointment completed.
	RequestCompletion struct{ Trigger string }
)

func (StartCountdown) effect()    {}
func (StopCountdown) effect()     {}
func (InitEngine) effect()        {}
func (DisposeEngine) effect()     {}
func (StartAdmission) effect()    {}
func (StopAdmission) effect()     {}
func (RequestCompletion) effect() {}

// Completion triggers.
const (
	TriggerCounterpartLeft = "counterpart_left"
	TriggerConferenceLeft  = "conference_left"
	TriggerReadyToClose    = "ready_to_close"
	TriggerKicked          = "kicked"
	TriggerTeardown        = "teardown"
)

// Transition applies ev to s and returns the next state with the effects the
// controller must run, in order. It performs no I/O.
func Transition(s State, ev Event) (State, []Effect) {
	if s.Closed {
		return s, nil
	}
	if _, ok := ev.(Teardown); ok {
		return teardown(s)
	}
	if s.Phase.Terminal() {
		// engine events after a terminal transition are ignored
		return s, nil
	}

	switch e := ev.(type) {
	case AppointmentLoaded:
		return onAppointmentLoaded(s, e)
	case Tick:
		return onTick(s, e)
	case EngineInitialized:
		s.EngineActive = true
		s.Room = e.Room
		if s.Phase == models.PhaseGating || s.Phase == models.PhaseWaitingForStart {
			s.Phase = models.PhaseJoining
		}
		return s, nil
	case EngineInitFailed:
		msg := "engine construction failed"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		s.Phase = models.PhaseError
		s.Err = &SessionError{Kind: models.ErrorKindInit, Message: msg}
		return s, []Effect{StopCountdown{}}
	case RoomUnavailable:
		if e.Link == "" {
			s.Phase = models.PhaseError
			s.Err = &SessionError{Kind: models.ErrorKindInit, Message: "appointment has no meeting link"}
			return s, []Effect{StopCountdown{}}
		}
		s.Phase = models.PhaseEnded
		s.ExternalURL = e.Link
		return s, []Effect{StopCountdown{}}
	case EngineEventReceived:
		if !s.EngineActive {
			return s, nil
		}
		return onEngineEvent(s, e.Event)
	}

	return s, nil
}

func onAppointmentLoaded(s State, e AppointmentLoaded) (State, []Effect) {
	if s.Phase != models.PhaseGating {
		return s, nil
	}

	if e.Appointment != nil {
		s.Role = e.Appointment.RoleFor(s.UserID)
	}
	if e.Err != nil || e.Appointment == nil {
		s.Gate = AdmitOnLookupFailure()
		return admit(s, nil)
	}

	s.ScheduledAt = e.ScheduledAt
	s.Gate = EvaluateGate(e.ScheduledAt, e.Now)
	if s.Gate.Kind == GateAdmit {
		return admit(s, nil)
	}

	s.Phase = models.PhaseWaitingForStart
	return s, []Effect{StartCountdown{}}
}

func onTick(s State, e Tick) (State, []Effect) {
	if s.Phase != models.PhaseWaitingForStart {
		return s, nil
	}
	s.Gate = EvaluateGate(s.ScheduledAt, e.Now)
	if s.Gate.Kind != GateAdmit {
		return s, nil
	}
	return admit(s, []Effect{StopCountdown{}})
}

// admit opens the gate. The engine is only ever initialized from here, so
// CanJoin always precedes InitEngine.
func admit(s State, effects []Effect) (State, []Effect) {
	if s.CanJoin {
		return s, effects
	}
	s.CanJoin = true
	s.Phase = models.PhaseJoining
	if s.EngineActive {
		return s, effects
	}
	return s, append(effects, InitEngine{})
}

func onEngineEvent(s State, ev models.EngineEvent) (State, []Effect) {
	wasInConference := s.Phase == models.PhaseInConference

	switch ev.Type {
	case models.EngineEventLobbyJoined:
		return enterLobby(s, wasInConference)

	case models.EngineEventLobbyLeft:
		if s.Phase != models.PhaseLobby && !s.InLobby {
			return s, nil
		}
		s.InLobby = false
		s.Phase = models.PhaseJoining
		return s, nil

	case models.EngineEventConferenceJoined:
		s.Phase = models.PhaseInConference
		s.InLobby = false
		s.Err = nil
		if ev.LocalID != "" {
			s.LocalID = ev.LocalID
		}
		s.Roster = s.Roster.With(s.LocalID)
		if s.Role == models.RoleModerator && !wasInConference {
			return s, []Effect{StartAdmission{}}
		}
		return s, nil

	case models.EngineEventParticipantJoined:
		s.Roster = s.Roster.With(ev.ParticipantID)
		return s, nil

	case models.EngineEventParticipantLeft:
		s.Roster = s.Roster.Without(ev.ParticipantID)
		if wasInConference && ev.ParticipantID != s.LocalID && s.completes() {
			return s, []Effect{RequestCompletion{Trigger: TriggerCounterpartLeft}}
		}
		return s, nil

	case models.EngineEventConferenceLeft:
		return end(s, nil, TriggerConferenceLeft)

	case models.EngineEventReadyToClose:
		return end(s, nil, TriggerReadyToClose)

	case models.EngineEventKicked:
		msg := ev.Message
		if msg == "" {
			msg = "removed from the meeting"
		}
		return end(s, &SessionError{Kind: models.ErrorKindRemoved, Message: msg}, TriggerKicked)

	case models.EngineEventError:
		if ev.ErrorName == models.MembersOnlyErrorName &&
			(s.Phase == models.PhaseJoining || s.Phase == models.PhaseLobby) {
			return enterLobby(s, wasInConference)
		}
		return fail(s, ev)
	}

	return s, nil
}

func enterLobby(s State, wasInConference bool) (State, []Effect) {
	s.Phase = models.PhaseLobby
	s.InLobby = true
	s.Err = nil
	if wasInConference {
		return s, []Effect{StopAdmission{}}
	}
	return s, nil
}

func end(s State, err *SessionError, trigger string) (State, []Effect) {
	s.Phase = models.PhaseEnded
	s.InLobby = false
	s.Err = err
	effects := []Effect{StopCountdown{}, StopAdmission{}, DisposeEngine{}}
	s.EngineActive = false
	if s.completes() {
		effects = append(effects, RequestCompletion{Trigger: trigger})
	}
	return s, effects
}

// fail moves to ERROR. InLobby is left as is so a lobby wait keeps
// precedence over the error in the view.
func fail(s State, ev models.EngineEvent) (State, []Effect) {
	msg := ev.Message
	if msg == "" {
		msg = ev.ErrorName
	}
	s.Phase = models.PhaseError
	s.Err = &SessionError{Kind: classifyEngineError(ev.ErrorName), Name: ev.ErrorName, Message: msg}
	s.EngineActive = false
	return s, []Effect{StopCountdown{}, StopAdmission{}, DisposeEngine{}}
}

func teardown(s State) (State, []Effect) {
	effects := []Effect{StopCountdown{}, StopAdmission{}, DisposeEngine{}}
	if s.completes() {
		effects = append(effects, RequestCompletion{Trigger: TriggerTeardown})
	}
	if !s.Phase.Terminal() {
		s.Phase = models.PhaseEnded
		s.InLobby = false
	}
	s.EngineActive = false
	s.Closed = true
	return s, effects
}

// completes reports whether this session marks its appointment completed.
func (s State) completes() bool {
	return s.Role == models.RoleModerator
}
