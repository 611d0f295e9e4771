// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import (
	"strings"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// SessionError is a terminal error shown to the user.
type SessionError struct {
	Kind models.ErrorKind
	// Name is the engine error code, when the error came from the engine.
	Name    string
	Message string
}

func (e *SessionError) Error() string {
	if e.Name != "" {
		return string(e.Kind) + " (" + e.Name + "): " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

// UserMessage is the category specific text for the user.
func (e *SessionError) UserMessage() string {
	switch e.Kind {
	case models.ErrorKindInit:
		return "The video consultation could not be started. Please return to your appointments and try again."
	case models.ErrorKindConnection:
		return "The connection to the video service failed. Please check your network and rejoin."
	case models.ErrorKindPermission:
		return "Camera or microphone access was denied. Allow access in your browser and rejoin."
	case models.ErrorKindRemoved:
		return "You have been removed from the meeting."
	default:
		return "Something went wrong with the video consultation."
	}
}

var permissionMarkers = []string{"permission", "notallowed", "authenticationrequired", "gum."}

// classifyEngineError maps an engine error code to an error kind.
func classifyEngineError(name string) models.ErrorKind {
	lower := strings.ToLower(name)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return models.ErrorKindPermission
		}
	}
	if strings.HasPrefix(lower, "connection.") || strings.Contains(lower, ".connectionerror.") {
		return models.ErrorKindConnection
	}
	return models.ErrorKindUnclassified
}
