// Package config provides configuration loading for voicematch.
//
// Configuration is assembled from built-in defaults, an optional YAML file and
// VOICEMATCH_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete voicematch configuration.
type Config struct {
	Pipeline      PipelineConfig      `koanf:"pipeline"`
	Voices        VoicesConfig        `koanf:"voices"`
	Speech        SpeechConfig        `koanf:"speech"`
	Storage       StorageConfig       `koanf:"storage"`
	Temporal      TemporalConfig      `koanf:"temporal"`
	NATS          NATSConfig          `koanf:"nats"`
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// PipelineConfig bounds the stage graph.
type PipelineConfig struct {
	ChunkSize           int           `koanf:"chunk_size"`
	Concurrency         int           `koanf:"concurrency"`
	MaxRounds           int           `koanf:"max_rounds"`
	RetryBackoff        time.Duration `koanf:"retry_backoff"`
	Timeout             time.Duration `koanf:"timeout"`
	DrainTimeout        time.Duration `koanf:"drain_timeout"`
	GenerateConcurrency int           `koanf:"generate_concurrency"`
	WordsKey            string        `koanf:"words_key"`
	DictionaryKey       string        `koanf:"dictionary_key"`
}

// VoicesConfig lists the locales and voice names clips are generated in.
// Every locale is combined with every voice.
type VoicesConfig struct {
	Locales []string `koanf:"locales"`
	Names   []string `koanf:"names"`
}

// SpeechConfig selects and configures the speech backend.
type SpeechConfig struct {
	Provider  string  `koanf:"provider"`
	APIKey    Secret  `koanf:"api_key"`
	BaseURL   string  `koanf:"base_url"`
	TTSModel  string  `koanf:"tts_model"`
	STTModel  string  `koanf:"stt_model"`
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// StorageConfig selects the artifact store.
type StorageConfig struct {
	Provider     string `koanf:"provider"`
	Endpoint     string `koanf:"endpoint"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    Secret `koanf:"secret_key"`
	Bucket       string `koanf:"bucket"`
	Region       string `koanf:"region"`
	UseSSL       bool   `koanf:"use_ssl"`
	CreateBucket bool   `koanf:"create_bucket"`
}

// TemporalConfig locates the Temporal frontend.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// NATSConfig controls lifecycle event publishing.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	Host            string        `koanf:"http_host"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Speech providers.
const (
	SpeechOpenAI   = "openai"
	SpeechLoopback = "loopback"
)

// Storage providers.
const (
	StorageMemory = "memory"
	StorageMinio  = "minio"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	p := c.Pipeline
	if p.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.chunk_size must be >= 1, got %d", p.ChunkSize))
	}
	if p.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must be >= 1, got %d", p.Concurrency))
	}
	if p.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_rounds must be >= 0, got %d", p.MaxRounds))
	}
	if p.RetryBackoff < 0 {
		errs = append(errs, errors.New("pipeline.retry_backoff cannot be negative"))
	}
	if p.Timeout <= 0 {
		errs = append(errs, errors.New("pipeline.timeout must be positive"))
	}
	if p.DrainTimeout < 0 {
		errs = append(errs, errors.New("pipeline.drain_timeout cannot be negative"))
	}

	if len(c.Voices.Locales) == 0 || len(c.Voices.Names) == 0 {
		errs = append(errs, errors.New("voices.locales and voices.names must not be empty"))
	}

	switch c.Speech.Provider {
	case SpeechLoopback:
	case SpeechOpenAI:
		if !c.Speech.APIKey.IsSet() {
			errs = append(errs, errors.New("speech.api_key is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown speech.provider %q", c.Speech.Provider))
	}

	switch c.Storage.Provider {
	case StorageMemory:
	case StorageMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.endpoint and storage.bucket are required for the minio provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.provider %q", c.Storage.Provider))
	}

	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		errs = append(errs, errors.New("nats.url and nats.subject are required when nats is enabled"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		errs = append(errs, errors.New("service name required when telemetry is enabled"))
	}

	return errors.Join(errs...)
}
