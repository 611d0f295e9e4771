// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import (
	"fmt"
	"time"

	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

// GateKind is the admission decision of the time gate.
type GateKind string

// Gate decisions.
const (
	// GateAdmit lets the user join now.
	GateAdmit GateKind = "admit"
	// GateCountdown holds the user with a live mm:ss countdown.
	GateCountdown GateKind = "countdown"
	// GateWait holds the user without a countdown, showing only the scheduled time.
	GateWait GateKind = "wait"
)

// GateDecision is the outcome of one gate evaluation.
type GateDecision struct {
	Kind GateKind
	// Remaining is the time left until the scheduled start, zero once admitted.
	Remaining time.Duration
	// Countdown is Remaining as mm:ss with seconds rounded up. Set only for GateCountdown.
	Countdown string
}

// EvaluateGate decides whether now permits entry to a consultation scheduled at scheduledAt.
//
// Late arrivals are always admitted. Within CountdownWindow of the start a
// countdown is produced; the window boundary itself counts as inside.
func EvaluateGate(scheduledAt, now time.Time) GateDecision {
	diff := scheduledAt.Sub(now)
	switch {
	case diff <= 0:
		return GateDecision{Kind: GateAdmit}
	case diff <= constants.CountdownWindow:
		return GateDecision{Kind: GateCountdown, Remaining: diff, Countdown: FormatCountdown(diff)}
	default:
		return GateDecision{Kind: GateWait, Remaining: diff}
	}
}

// AdmitOnLookupFailure is the decision used when the appointment cannot be fetched.
// Lookup failures never block a session.
func AdmitOnLookupFailure() GateDecision {
	return GateDecision{Kind: GateAdmit}
}

// FormatCountdown renders d as mm:ss, rounding partial seconds up.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
