package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temporary directory and creates the
// voicematch config directory in it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "voicematch")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return configDir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Pipeline.ChunkSize != 10 {
		t.Errorf("Pipeline.ChunkSize = %d, want 10", cfg.Pipeline.ChunkSize)
	}
	if cfg.Pipeline.Concurrency != 25 {
		t.Errorf("Pipeline.Concurrency = %d, want 25", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.RetryBackoff != 30*time.Second {
		t.Errorf("Pipeline.RetryBackoff = %v, want 30s", cfg.Pipeline.RetryBackoff)
	}
	if cfg.Pipeline.Timeout != time.Hour {
		t.Errorf("Pipeline.Timeout = %v, want 1h", cfg.Pipeline.Timeout)
	}
	if len(cfg.Voices.Locales) != 6 || len(cfg.Voices.Names) != 2 {
		t.Errorf("Voices = %v x %v, want 6 locales x 2 voices", cfg.Voices.Locales, cfg.Voices.Names)
	}
	if cfg.Speech.Provider != SpeechLoopback {
		t.Errorf("Speech.Provider = %q, want %q", cfg.Speech.Provider, SpeechLoopback)
	}
	if cfg.Storage.Provider != StorageMemory {
		t.Errorf("Storage.Provider = %q, want %q", cfg.Storage.Provider, StorageMemory)
	}
	if cfg.Temporal.TaskQueue != "voicematch" {
		t.Errorf("Temporal.TaskQueue = %q, want voicematch", cfg.Temporal.TaskQueue)
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `pipeline:
  chunk_size: 5
  max_rounds: 3
  timeout: 2m
voices:
  locales: [en-GB]
  names: [nova]
observability:
  enable_telemetry: true
  service_name: voicematch-test
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Pipeline.ChunkSize != 5 {
		t.Errorf("Pipeline.ChunkSize = %d, want 5", cfg.Pipeline.ChunkSize)
	}
	if cfg.Pipeline.MaxRounds != 3 {
		t.Errorf("Pipeline.MaxRounds = %d, want 3", cfg.Pipeline.MaxRounds)
	}
	if cfg.Pipeline.Timeout != 2*time.Minute {
		t.Errorf("Pipeline.Timeout = %v, want 2m", cfg.Pipeline.Timeout)
	}
	if cfg.Pipeline.Concurrency != 25 {
		t.Errorf("Pipeline.Concurrency = %d, want default 25", cfg.Pipeline.Concurrency)
	}
	if len(cfg.Voices.Locales) != 1 || cfg.Voices.Locales[0] != "en-GB" {
		t.Errorf("Voices.Locales = %v, want [en-GB]", cfg.Voices.Locales)
	}
	if cfg.Observability.ServiceName != "voicematch-test" {
		t.Errorf("Observability.ServiceName = %q, want voicematch-test", cfg.Observability.ServiceName)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9090
speech:
  provider: loopback
`, 0600)

	t.Setenv("VOICEMATCH_SERVER_HTTP_PORT", "7777")
	t.Setenv("VOICEMATCH_PIPELINE_RETRY_BACKOFF", "5s")
	t.Setenv("VOICEMATCH_VOICES_LOCALES", "en-US,en-AU")
	t.Setenv("VOICEMATCH_SPEECH_PROVIDER", "openai")
	t.Setenv("VOICEMATCH_SPEECH_API_KEY", "sk-test")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (from env override)", cfg.Server.Port)
	}
	if cfg.Pipeline.RetryBackoff != 5*time.Second {
		t.Errorf("Pipeline.RetryBackoff = %v, want 5s", cfg.Pipeline.RetryBackoff)
	}
	if got := strings.Join(cfg.Voices.Locales, ","); got != "en-US,en-AU" {
		t.Errorf("Voices.Locales = %q, want en-US,en-AU", got)
	}
	if cfg.Speech.Provider != SpeechOpenAI {
		t.Errorf("Speech.Provider = %q, want openai", cfg.Speech.Provider)
	}
	if cfg.Speech.APIKey.Value() != "sk-test" {
		t.Error("Speech.APIKey not loaded from environment")
	}
}

func TestLoadWithFile_MissingFile(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFile() should not error on missing file, got: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want default 9090", cfg.Server.Port)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: not-a-number
  invalid syntax here
`, 0600)

	if _, err := LoadWithFile(path); err == nil {
		t.Error("LoadWithFile() should error on invalid YAML, got nil")
	}
}

func TestLoadWithFile_Validation(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `pipeline:
  chunk_size: 0
server:
  http_port: 99999
`, 0600)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() should fail validation, got nil")
	}
	for _, want := range []string{"chunk_size", "server port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadWithFile_PathTraversal(t *testing.T) {
	setupTestHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := LoadWithFile(outside); err == nil {
		t.Error("LoadWithFile() should reject paths outside allowed directories")
	}
	if _, err := LoadWithFile("../../etc/passwd"); err == nil {
		t.Error("LoadWithFile() should reject relative traversal")
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9090\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Errorf("LoadWithFile() error = %v, want insecure permissions error", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VOICEMATCH_SERVER_HTTP_PORT":       "server.http_port",
		"VOICEMATCH_PIPELINE_DRAIN_TIMEOUT": "pipeline.drain_timeout",
		"VOICEMATCH_NATS_URL":               "nats.url",
		"VOICEMATCH_DEBUG":                  "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
