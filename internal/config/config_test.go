package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"negative rounds", func(c *Config) { c.Pipeline.MaxRounds = -1 }, "pipeline.max_rounds"},
		{"zero rounds allowed", func(c *Config) { c.Pipeline.MaxRounds = 0 }, ""},
		{"no timeout", func(c *Config) { c.Pipeline.Timeout = 0 }, "pipeline.timeout"},
		{"no voices", func(c *Config) { c.Voices.Names = nil }, "voices"},
		{"openai without key", func(c *Config) { c.Speech.Provider = SpeechOpenAI }, "speech.api_key"},
		{"openai with key", func(c *Config) {
			c.Speech.Provider = SpeechOpenAI
			c.Speech.APIKey = "sk-test"
		}, ""},
		{"unknown speech", func(c *Config) { c.Speech.Provider = "polly" }, "speech.provider"},
		{"minio without endpoint", func(c *Config) { c.Storage.Provider = StorageMinio }, "storage.endpoint"},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "gcs" }, "storage.provider"},
		{"nats without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
		}, "nats.url"},
		{"telemetry without name", func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.ServiceName = ""
		}, "service name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
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

func TestSecret(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())

	data, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key":"[REDACTED]"}`, string(data))

	var back struct{ Key Secret }
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.Key.IsSet())

	require.NoError(t, json.Unmarshal([]byte(`{"Key":"raw"}`), &back))
	assert.Equal(t, "raw", back.Key.Value())
}
