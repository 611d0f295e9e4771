// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the local user's part in a consultation.
type Role string

const (
	// RoleModerator is held by the doctor of the appointment.
	RoleModerator Role = "moderator"
	// RoleParticipant is held by everyone else, usually the patient.
	RoleParticipant Role = "participant"
)

// AppointmentStatusCompleted is the status written back when a consultation ends.
const AppointmentStatusCompleted = "completed"

const dateLayout = "2006-01-02"

var timeLayouts = []string{"15:04", "15:04:05", "03:04 PM"}

// Appointment is a scheduled consultation as returned by the backend.
//
// Date and Time are kept as the backend sends them; ScheduledAt combines
// them into an instant in the configured location.
type Appointment struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	MeetingLink string `json:"meeting_link,omitempty"`
	DoctorID    string `json:"doctor_id"`
	PatientID   string `json:"patient_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// RoleFor derives the role of userID for this appointment.
func (a *Appointment) RoleFor(userID string) Role {
	if a != nil && userID != "" && userID == a.DoctorID {
		return RoleModerator
	}
	return RoleParticipant
}

// IsCompleted reports whether the backend already marked the appointment completed.
func (a *Appointment) IsCompleted() bool {
	return a != nil && strings.EqualFold(a.Status, AppointmentStatusCompleted)
}

// ScheduledAt combines Date and Time into a single instant in loc.
func (a *Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	if a == nil {
		return time.Time{}, fmt.Errorf("nil appointment")
	}
	if loc == nil {
		loc = time.UTC
	}

	year, month, day, err := parseAppointmentDate(strings.TrimSpace(a.Date))
	if err != nil {
		return time.Time{}, err
	}

	clock, err := parseAppointmentTime(strings.TrimSpace(a.Time))
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
}

func parseAppointmentDate(value string) (int, time.Month, int, error) {
	if d, err := time.Parse(dateLayout, value); err == nil {
		y, m, day := d.Date()
		return y, m, day, nil
	}
	// some backends send the date as a full timestamp; only its date part counts
	if d, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, day := d.Date()
		return y, m, day, nil
	}
	return 0, 0, 0, fmt.Errorf("invalid appointment date %q", value)
}

func parseAppointmentTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid appointment time %q", value)
}
