// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// Phase is the lifecycle phase of a consultation session.
type Phase string

// Session phases.
const (
	PhaseGating          Phase = "GATING"
	PhaseWaitingForStart Phase = "WAITING_FOR_START"
	PhaseJoining         Phase = "JOINING"
	PhaseLobby           Phase = "LOBBY"
	PhaseInConference    Phase = "IN_CONFERENCE"
	PhaseEnded           Phase = "ENDED"
	PhaseError           Phase = "ERROR"
)

// Terminal reports whether no further transitions leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseError
}

// ErrorKind classifies a session error for user messaging.
type ErrorKind string

// Session error kinds.
const (
	ErrorKindInit         ErrorKind = "init"
	ErrorKindConnection   ErrorKind = "connection"
	ErrorKindPermission   ErrorKind = "permission"
	ErrorKindUnclassified ErrorKind = "unclassified"
	ErrorKindRemoved      ErrorKind = "removed"
)

// Presentation is what the calling page should render for a session.
type Presentation string

// Presentations.
const (
	PresentationLoading    Presentation = "loading"
	PresentationCountdown  Presentation = "countdown"
	PresentationWaiting    Presentation = "waiting"
	PresentationConnecting Presentation = "connecting"
	PresentationLobby      Presentation = "lobby"
	PresentationConference Presentation = "conference"
	PresentationEnded      Presentation = "ended"
	PresentationError      Presentation = "error"
	PresentationExternal   Presentation = "external_link"
)

// SessionView is a read-only snapshot of a session, published after every transition.
type SessionView struct {
	SessionID        string       `json:"session_id"`
	AppointmentID    string       `json:"appointment_id"`
	UserID           string       `json:"user_id"`
	Role             Role         `json:"role"`
	Phase            Phase        `json:"phase"`
	Presentation     Presentation `json:"presentation"`
	ScheduledAt      *time.Time   `json:"scheduled_at,omitempty"`
	Countdown        string       `json:"countdown,omitempty"`
	InLobby          bool         `json:"in_lobby"`
	ErrorKind        ErrorKind    `json:"error_kind,omitempty"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	Roster           []string     `json:"roster"`
	CompletionMarked bool         `json:"completion_marked"`
	ExternalURL      string       `json:"external_url,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
