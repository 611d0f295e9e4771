// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

var otelEnvVars = []string{
	"OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_EXPORTER",
	"OTEL_TRACES_SAMPLE_RATIO",
	"OTEL_METRICS_EXPORTER",
	"OTEL_LOGS_EXPORTER",
}

// clearOTelEnv blanks every OTEL_* variable for the duration of the test.
func clearOTelEnv(t *testing.T) {
	t.Helper()
	for _, env := range otelEnvVars {
		t.Setenv(env, "")
	}
}

func TestOTelConfigFromEnv_Defaults(t *testing.T) {
	clearOTelEnv(t)

	cfg := OTelConfigFromEnv()

	assert.Equal(t, "lfx-v2-consultation-service", cfg.ServiceName)
	assert.Empty(t, cfg.ServiceVersion)
	assert.Equal(t, OTelProtocolGRPC, cfg.Protocol)
	assert.Empty(t, cfg.Endpoint)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, OTelExporterNone, cfg.TracesExporter)
	assert.Equal(t, 1.0, cfg.TracesSampleRatio)
	assert.Equal(t, OTelExporterNone, cfg.MetricsExporter)
	assert.Equal(t, OTelExporterNone, cfg.LogsExporter)
}

func TestOTelConfigFromEnv_CustomValues(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "consultation-agent-test")
	t.Setenv("OTEL_SERVICE_VERSION", "1.2.3")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.5")
	t.Setenv("OTEL_METRICS_EXPORTER", "otlp")
	t.Setenv("OTEL_LOGS_EXPORTER", "otlp")

	cfg := OTelConfigFromEnv()

	assert.Equal(t, "consultation-agent-test", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, OTelProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, OTelExporterOTLP, cfg.TracesExporter)
	assert.Equal(t, 0.5, cfg.TracesSampleRatio)
	assert.Equal(t, OTelExporterOTLP, cfg.MetricsExporter)
	assert.Equal(t, OTelExporterOTLP, cfg.LogsExporter)
}

func TestOTelConfigFromEnv_TracesSampleRatio(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		expectedRatio float64
	}{
		{"valid zero", "0.0", 0.0},
		{"valid half", "0.5", 0.5},
		{"valid one", "1.0", 1.0},
		{"invalid negative", "-0.5", 1.0},
		{"invalid above one", "1.5", 1.0},
		{"invalid non-number", "invalid", 1.0},
		{"empty string", "", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLE_RATIO", tt.envValue)
			assert.Equal(t, tt.expectedRatio, OTelConfigFromEnv().TracesSampleRatio)
		})
	}
}

func TestOTelConfigFromEnv_InsecureFlag(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"true", "true", true},
		{"false", "false", false},
		{"empty", "", false},
		{"uppercase is not recognized", "TRUE", false},
		{"numeric is not recognized", "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", tt.envValue)
			assert.Equal(t, tt.expected, OTelConfigFromEnv().Insecure)
		})
	}
}

func disabledConfig() OTelConfig {
	return OTelConfig{
		ServiceName:       "consultation-agent-test",
		ServiceVersion:    "1.0.0",
		Protocol:          OTelProtocolGRPC,
		TracesExporter:    OTelExporterNone,
		TracesSampleRatio: 1.0,
		MetricsExporter:   OTelExporterNone,
		LogsExporter:      OTelExporterNone,
	}
}

func TestSetupOTelSDKWithConfig_AllDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := SetupOTelSDKWithConfig(ctx, disabledConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupOTelSDKWithConfig_ShutdownIdempotent(t *testing.T) {
	ctx := context.Background()

	shutdown, err := SetupOTelSDKWithConfig(ctx, disabledConfig())
	require.NoError(t, err)

	assert.NoError(t, shutdown(ctx))
	assert.NoError(t, shutdown(ctx))
}

func TestSetupOTelSDK_FromEnv(t *testing.T) {
	clearOTelEnv(t)
	ctx := context.Background()

	shutdown, err := SetupOTelSDK(ctx)
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
}

func TestNewResource(t *testing.T) {
	tests := []struct {
		name           string
		serviceName    string
		serviceVersion string
	}{
		{"basic", "consultation-agent", "1.0.0"},
		{"empty version", "consultation-agent", ""},
		{"pre-release version", "consultation-agent-2", "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newResource(OTelConfig{ServiceName: tt.serviceName, ServiceVersion: tt.serviceVersion})
			require.NoError(t, err)
			require.NotNil(t, res)

			values := map[string]string{}
			for _, attr := range res.Attributes() {
				values[string(attr.Key)] = attr.Value.AsString()
			}
			assert.Equal(t, tt.serviceName, values["service.name"])
			if tt.serviceVersion != "" {
				assert.Equal(t, tt.serviceVersion, values["service.version"])
			}
		})
	}
}

func TestNewPropagator(t *testing.T) {
	var prop propagation.TextMapPropagator = newPropagator()

	fields := prop.Fields()
	for _, want := range []string{"traceparent", "tracestate", "baggage", "uber-trace-id"} {
		assert.Contains(t, fields, want)
	}
}

func TestOTelConstants(t *testing.T) {
	assert.Equal(t, "grpc", OTelProtocolGRPC)
	assert.Equal(t, "http", OTelProtocolHTTP)
	assert.Equal(t, "otlp", OTelExporterOTLP)
	assert.Equal(t, "none", OTelExporterNone)
}

func TestOTelConfig_ZeroValueEnablesExporters(t *testing.T) {
	cfg := OTelConfig{}
	assert.NotEqual(t, OTelExporterNone, cfg.TracesExporter)
	assert.NotEqual(t, OTelExporterNone, cfg.MetricsExporter)
	assert.NotEqual(t, OTelExporterNone, cfg.LogsExporter)
}
