// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// EngineEventType names a lifecycle event reported by the video engine.
type EngineEventType string

// Engine event types.
const (
	EngineEventConferenceJoined  EngineEventType = "conference_joined"
	EngineEventConferenceLeft    EngineEventType = "conference_left"
	EngineEventReadyToClose      EngineEventType = "ready_to_close"
	EngineEventParticipantJoined EngineEventType = "participant_joined"
	EngineEventParticipantLeft   EngineEventType = "participant_left"
	EngineEventLobbyJoined       EngineEventType = "lobby_joined"
	EngineEventLobbyLeft         EngineEventType = "lobby_left"
	EngineEventError             EngineEventType = "error"
	EngineEventKicked            EngineEventType = "kicked"
)

// MembersOnlyErrorName is the error the engine raises when an unauthenticated
// user knocks on a lobby-enabled room. It signals the lobby, not a failure.
const MembersOnlyErrorName = "conference.connectionError.membersOnly"

// EngineEvent is one event from the engine's event stream.
type EngineEvent struct {
	Type EngineEventType `json:"type"`
	// ParticipantID is set for participant_joined and participant_left.
	ParticipantID string `json:"participant_id,omitempty"`
	// LocalID is the local user's engine identifier, set on conference_joined.
	LocalID string `json:"local_id,omitempty"`
	// ErrorName is the engine error code, set for error events.
	ErrorName string `json:"error_name,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EngineConfig is the configuration bundle handed to the engine.
type EngineConfig struct {
	LobbyEnabled    bool `json:"lobby_enabled"`
	KnockingEnabled bool `json:"knocking_enabled"`
	P2PEnabled      bool `json:"p2p_enabled"`
	// MembersOnly stays off at the config layer; the engine enables it
	// implicitly for lobby rooms.
	MembersOnly bool `json:"members_only"`
}

// DefaultEngineConfig returns the configuration every consultation uses.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LobbyEnabled:    true,
		KnockingEnabled: true,
		P2PEnabled:      true,
		MembersOnly:     false,
	}
}

// EngineOptions describe one engine session to create.
type EngineOptions struct {
	SessionID   string       `json:"session_id"`
	Room        string       `json:"room"`
	DisplayName string       `json:"display_name"`
	Moderator   bool         `json:"moderator"`
	Config      EngineConfig `json:"config"`
}

// EngineParticipant is one entry of the engine's participant list.
type EngineParticipant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	InLobby     bool   `json:"in_lobby"`
}

// Engine bridge commands.
const (
	EngineCommandDispose          = "dispose"
	EngineCommandListParticipants = "list_participants"
	EngineCommandAdmit            = "admit"
)

// EngineCommand is sent on the per-session command subject.
type EngineCommand struct {
	Command       string `json:"command"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// EngineReply is the bridge's reply to create and command requests.
type EngineReply struct {
	OK           bool                `json:"ok"`
	Error        string              `json:"error,omitempty"`
	Participants []EngineParticipant `json:"participants,omitempty"`
}
