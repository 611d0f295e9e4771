// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/infrastructure/credentials"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-consultation-service/pkg/constants"
)

// flags are the command line flags for the consultation agent.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the consultation agent.
type environment struct {
	Port    string
	NatsURL string

	BackendBaseURL string
	BackendTimeout time.Duration

	Location   *time.Location
	EngineHost string

	LobbyAdmitDelay    time.Duration
	LobbyAdmitInterval time.Duration

	Auth0 credentials.Auth0Config

	RedisURL        string
	SessionTokenTTL time.Duration
	EncodeKVKeys    bool

	PostgresDSN string
}

// parseFlags parses command line flags for the consultation agent
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// loadDotEnv loads a .env file when one is present. Variables already set in
// the environment win.
func loadDotEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.With(logging.ErrKey, err, "path", path).Warn("error loading env file")
	}
}

// parseEnv parses environment variables for the consultation agent
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	backendBaseURL := os.Getenv("BACKEND_BASE_URL")
	if backendBaseURL == "" {
		slog.Error("BACKEND_BASE_URL environment variable is required but not set")
		os.Exit(1)
	}

	location := time.UTC
	if tz := os.Getenv("APPOINTMENT_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			slog.With(logging.ErrKey, err, "timezone", tz).Error("invalid APPOINTMENT_TIMEZONE, using UTC")
		} else {
			location = loc
		}
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_ADDR")
	}

	return environment{
		Port:               port,
		NatsURL:            natsURL,
		BackendBaseURL:     backendBaseURL,
		BackendTimeout:     durationEnv("BACKEND_TIMEOUT", 0),
		Location:           location,
		EngineHost:         os.Getenv("ENGINE_HOST"),
		LobbyAdmitDelay:    durationEnv("LOBBY_ADMIT_DELAY", constants.DefaultLobbyAdmitDelay),
		LobbyAdmitInterval: durationEnv("LOBBY_ADMIT_INTERVAL", constants.DefaultLobbyAdmitInterval),
		Auth0: credentials.Auth0Config{
			Domain:     os.Getenv("AUTH0_DOMAIN"),
			ClientID:   os.Getenv("AUTH0_CLIENT_ID"),
			PrivateKey: os.Getenv("AUTH0_CLIENT_PRIVATE_KEY"),
			Audience:   os.Getenv("AUTH0_AUDIENCE"),
		},
		RedisURL:        redisURL,
		SessionTokenTTL: durationEnv("SESSION_TOKEN_TTL", constants.DefaultSessionTokenTTL),
		EncodeKVKeys:    boolEnv("CREDENTIALS_KV_ENCODE_KEYS"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
	}
}

// durationEnv reads a Go duration; invalid or non-positive values fall back to def.
func durationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.With("name", name, "value", raw).Warn("invalid duration, using default", "default", def.String())
		return def
	}
	return d
}

func boolEnv(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}
