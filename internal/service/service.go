// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// EngineHost is the host whose first path segment names the video room.
	EngineHost string
	// Location is where appointment dates and times are interpreted.
	Location *time.Location
	// LobbyAdmitDelay and LobbyAdmitInterval tune lobby auto-admission of moderator sessions.
	LobbyAdmitDelay    time.Duration
	LobbyAdmitInterval time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.EngineHost == "" {
		c.EngineHost = constants.DefaultEngineHost
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.LobbyAdmitDelay <= 0 {
		c.LobbyAdmitDelay = constants.DefaultLobbyAdmitDelay
	}
	if c.LobbyAdmitInterval <= 0 {
		c.LobbyAdmitInterval = constants.DefaultLobbyAdmitInterval
	}
	return c
}
