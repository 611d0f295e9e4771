// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointment_RoleFor(t *testing.T) {
	appt := &Appointment{ID: "appt-1", DoctorID: "doc-1", PatientID: "pat-1"}

	tests := []struct {
		name   string
		userID string
		want   Role
	}{
		{"doctor is moderator", "doc-1", RoleModerator},
		{"patient is participant", "pat-1", RoleParticipant},
		{"stranger is participant", "someone", RoleParticipant},
		{"empty user is participant", "", RoleParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, appt.RoleFor(tt.userID))
		})
	}

	var missing *Appointment
	assert.Equal(t, RoleParticipant, missing.RoleFor("doc-1"))
}

func TestAppointment_ScheduledAt(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name    string
		date    string
		clock   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{
			name:  "date and minutes",
			date:  "2025-03-14",
			clock: "09:30",
			loc:   time.UTC,
			want:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "seconds precision",
			date:  "2025-03-14",
			clock: "09:30:15",
			loc:   time.UTC,
			want:  time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC),
		},
		{
			name:  "timestamp date uses only its date part",
			date:  "2025-03-14T00:00:00Z",
			clock: "17:00",
			loc:   loc,
			want:  time.Date(2025, 3, 14, 17, 0, 0, 0, loc),
		},
		{
			name:  "twelve hour clock",
			date:  "2025-03-14",
			clock: "02:15 PM",
			loc:   time.UTC,
			want:  time.Date(2025, 3, 14, 14, 15, 0, 0, time.UTC),
		},
		{
			name:  "nil location defaults to UTC",
			date:  "2025-03-14",
			clock: "09:30",
			want:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		{name: "bad date", date: "14/03/2025", clock: "09:30", loc: time.UTC, wantErr: true},
		{name: "bad time", date: "2025-03-14", clock: "half past nine", loc: time.UTC, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt := &Appointment{Date: tt.date, Time: tt.clock}
			got, err := appt.ScheduledAt(tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestAppointment_IsCompleted(t *testing.T) {
	assert.True(t, (&Appointment{Status: "completed"}).IsCompleted())
	assert.True(t, (&Appointment{Status: "Completed"}).IsCompleted())
	assert.False(t, (&Appointment{Status: "scheduled"}).IsCompleted())

	var missing *Appointment
	assert.False(t, missing.IsCompleted())
}
