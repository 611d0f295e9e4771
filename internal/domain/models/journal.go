// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// JournalEntry is one recorded session transition.
type JournalEntry struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	AppointmentID string    `json:"appointment_id"`
	UserID        string    `json:"user_id"`
	Role          Role      `json:"role"`
	Event         string    `json:"event"`
	FromPhase     Phase     `json:"from_phase"`
	ToPhase       Phase     `json:"to_phase"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
