package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/voicematch/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
	assert.Contains(t, err.Error(), "service name is required")
	assert.Contains(t, err.Error(), "exporter endpoint is required")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Degraded: true}, tel.Health())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	tel.SetLoggerProvider(nil)
}

func TestTelemetry_Degrade(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig(), status: HealthStatus{Healthy: true}}
	tel.degrade(errors.New("span exporter: dial refused"))
	tel.degrade(errors.New("metric exporter: dial refused"))

	h := tel.Health()
	assert.True(t, h.Healthy)
	assert.True(t, h.Degraded)
	assert.Equal(t, "span exporter: dial refused; metric exporter: dial refused", h.Reason)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Exporter.Endpoint = "" }, ""},
		{"local plaintext", func(c *Config) { c.Enabled = true }, ""},
		{"loopback ipv4", func(c *Config) {
			c.Enabled = true
			c.Exporter.Endpoint = "127.0.0.2:4317"
		}, ""},
		{"loopback ipv6", func(c *Config) {
			c.Enabled = true
			c.Exporter.Endpoint = "[::1]:4317"
		}, ""},
		{"http scheme", func(c *Config) {
			c.Enabled = true
			c.Exporter.Endpoint = "http://localhost:4318"
			c.Exporter.Protocol = ProtocolHTTP
		}, ""},
		{"remote plaintext", func(c *Config) {
			c.Enabled = true
			c.Exporter.Endpoint = "otel.example.com:4317"
		}, "plaintext export"},
		{"remote tls", func(c *Config) {
			c.Enabled = true
			c.Exporter.Endpoint = "otel.example.com:4317"
			c.Exporter.Insecure = false
		}, ""},
		{"bad protocol", func(c *Config) {
			c.Enabled = true
			c.Exporter.Protocol = "udp"
		}, "exporter protocol"},
		{"bad sample rate", func(c *Config) {
			c.Enabled = true
			c.SampleRate = 1.5
		}, "sample rate"},
		{"negative interval", func(c *Config) {
			c.Enabled = true
			c.MetricInterval = -time.Second
		}, "metric interval"},
		{"zero shutdown", func(c *Config) {
			c.Enabled = true
			c.ShutdownTimeout = 0
		}, "shutdown timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLoopback(t *testing.T) {
	for addr, want := range map[string]bool{
		"localhost":        true,
		"LOCALHOST:4317":   true,
		"127.0.0.1:4317":   true,
		"::1":              true,
		"[::1]:4317":       true,
		"10.0.0.5:4317":    false,
		"collector:4317":   false,
		"otel.example.com": false,
	} {
		assert.Equal(t, want, isLoopback(addr), addr)
	}
}

func TestExporterConfig_Address(t *testing.T) {
	assert.Equal(t, "otel:4318", ExporterConfig{Endpoint: "https://otel:4318"}.address())
	assert.Equal(t, "otel:4318", ExporterConfig{Endpoint: "http://otel:4318"}.address())
	assert.Equal(t, "otel:4318", ExporterConfig{Endpoint: "otel:4318"}.address())
	assert.Equal(t, ProtocolGRPC, ExporterConfig{}.protocol())
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "vm-worker",
		Endpoint:        "127.0.0.1:4318",
		Protocol:        ProtocolHTTP,
		Insecure:        true,
		SamplingRate:    0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "vm-worker", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, ProtocolHTTP, cfg.Exporter.Protocol)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.Equal(t, 15*time.Second, cfg.MetricInterval)
	assert.NoError(t, cfg.Validate())

	kept := FromObservability(config.ObservabilityConfig{}, "")
	assert.Equal(t, "voicematch", kept.ServiceName)
	assert.Equal(t, "dev", kept.ServiceVersion)
	assert.Equal(t, "localhost:4317", kept.Exporter.Endpoint)
}

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	a := newResource(cfg)
	b := newResource(cfg)

	get := func(attrs []attribute.KeyValue, key string) string {
		for _, kv := range attrs {
			if string(kv.Key) == key {
				return kv.Value.Emit()
			}
		}
		return ""
	}
	assert.Equal(t, "voicematch", get(a.Attributes(), "service.name"))
	assert.Equal(t, "dev", get(a.Attributes(), "service.version"))
	assert.NotEmpty(t, get(a.Attributes(), "process.pid"))
	assert.NotEqual(t, get(a.Attributes(), "service.instance.id"), get(b.Attributes(), "service.instance.id"))
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "stage.generate")
	span.SetAttributes(attribute.String("run.id", "r1"), attribute.Int("clips", 12))
	span.End()

	tt.AssertSpanExists(t, "stage.generate")
	tt.AssertSpanAttribute(t, "stage.generate", "run.id", "r1")
	tt.AssertSpanAttribute(t, "stage.generate", "clips", int64(12))
	assert.Nil(t, tt.SpanByName("stage.reconcile"))
	assert.True(t, tt.IsEnabled())
}

func TestTestTelemetry_RunDurationBuckets(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	h, err := tt.Meter("test").Float64Histogram("voicematch.workflows.variations.duration")
	require.NoError(t, err)
	h.Record(ctx, 240)

	m, ok, err := tt.Metric(ctx, "voicematch.workflows.variations.duration")
	require.NoError(t, err)
	require.True(t, ok)

	hist, isHist := m.Data.(metricdata.Histogram[float64])
	require.True(t, isHist)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, runBuckets, hist.DataPoints[0].Bounds)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	_, ok, err = tt.Metric(ctx, "voicematch.missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
