// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the consultation agent publishes to.
const (
	// SessionUpdatedSubject carries a SessionView after every session transition.
	// The subject is of the form: lfx.consultation.session.updated
	SessionUpdatedSubject = "lfx.consultation.session.updated"

	// AppointmentCompletedSubject announces that an appointment was marked completed.
	// The subject is of the form: lfx.consultation.appointment.completed
	AppointmentCompletedSubject = "lfx.consultation.appointment.completed"
)

// NATS subjects that the consultation agent handles requests on.
const (
	// ConsultationAgentQueue is the queue group agent replicas share for opens.
	// The subject is of the form: lfx.consultation-agent.queue
	ConsultationAgentQueue = "lfx.consultation-agent.queue"

	// SessionOpenSubject opens a session for an (appointment, user) pair.
	// The subject is of the form: lfx.consultation.session.open
	SessionOpenSubject = "lfx.consultation.session.open"

	// SessionCloseSubject tears a session down. Every replica receives it and
	// the one owning the session replies.
	// The subject is of the form: lfx.consultation.session.close
	SessionCloseSubject = "lfx.consultation.session.close"

	// SessionGetSubject returns the latest SessionView.
	// The subject is of the form: lfx.consultation.session.get
	SessionGetSubject = "lfx.consultation.session.get"
)

// Video engine bridge subjects.
const (
	// EngineCreateSubject asks the bridge to instantiate an engine session.
	// The subject is of the form: lfx.consultation.engine.create
	EngineCreateSubject = "lfx.consultation.engine.create"

	// EngineEventsSubjectPrefix prefixes the per-session event stream.
	// The subject is of the form: lfx.consultation.engine.events.<session_id>
	EngineEventsSubjectPrefix = "lfx.consultation.engine.events."

	// EngineCommandSubjectPrefix prefixes the per-session command subject.
	// The subject is of the form: lfx.consultation.engine.command.<session_id>
	EngineCommandSubjectPrefix = "lfx.consultation.engine.command."
)

// EngineEventsSubject returns the event subject of one engine session.
func EngineEventsSubject(sessionID string) string {
	return EngineEventsSubjectPrefix + sessionID
}

// EngineCommandSubject returns the command subject of one engine session.
func EngineCommandSubject(sessionID string) string {
	return EngineCommandSubjectPrefix + sessionID
}

// OpenSessionRequest is the payload of SessionOpenSubject.
type OpenSessionRequest struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name,omitempty"`
	// MeetingLink overrides the appointment's meeting link when set.
	MeetingLink string `json:"meeting_link,omitempty"`
	// Token is an optional caller-supplied bearer token, stored as the
	// session token of the user.
	Token string `json:"token,omitempty"`
}

// SessionKeyRequest is the payload of SessionCloseSubject and SessionGetSubject.
type SessionKeyRequest struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
}

// SessionReply is the reply of every session control subject.
type SessionReply struct {
	View  *SessionView `json:"view,omitempty"`
	Error string       `json:"error,omitempty"`
}

// AppointmentCompletedMessage is published after the backend accepted a completion.
type AppointmentCompletedMessage struct {
	AppointmentID string    `json:"appointment_id"`
	CompletedBy   string    `json:"completed_by"`
	SessionID     string    `json:"session_id"`
	Attempt       int       `json:"attempt"`
	CompletedAt   time.Time `json:"completed_at"`
}
