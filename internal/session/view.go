// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import "github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"

// Present decides what the calling page renders for s.
//
// A lobby wait wins over an error: entering the lobby can raise a transient
// members-only error that must not replace the waiting-room message.
func Present(s State) models.Presentation {
	switch {
	case s.InLobby:
		return models.PresentationLobby
	case s.ExternalURL != "":
		return models.PresentationExternal
	case s.Err != nil:
		return models.PresentationError
	}

	switch s.Phase {
	case models.PhaseWaitingForStart:
		if s.Gate.Kind == GateCountdown {
			return models.PresentationCountdown
		}
		return models.PresentationWaiting
	case models.PhaseJoining:
		return models.PresentationConnecting
	case models.PhaseLobby:
		return models.PresentationLobby
	case models.PhaseInConference:
		return models.PresentationConference
	case models.PhaseEnded:
		return models.PresentationEnded
	case models.PhaseError:
		return models.PresentationError
	default:
		return models.PresentationLoading
	}
}
