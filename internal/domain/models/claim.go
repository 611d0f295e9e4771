// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// SessionClaim records which agent instance runs the session of an
// (appointment, user) pair. An empty Owner marks a released claim.
type SessionClaim struct {
	AppointmentID string    `json:"appointment_id"`
	UserID        string    `json:"user_id"`
	Owner         string    `json:"owner"`
	SessionID     string    `json:"session_id,omitempty"`
	ClaimedAt     time.Time `json:"claimed_at"`
}

// Released reports whether no instance holds the claim.
func (c SessionClaim) Released() bool {
	return c.Owner == ""
}
