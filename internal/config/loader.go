package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1 << 20

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "VOICEMATCH_"
)

// configDirs are the only places a config file may live. The user
// directory is relative to $HOME.
var configDirs = []string{
	filepath.Join(".config", "voicematch"),
	"/etc/voicematch",
}

// defaultsYAML is the lowest layer of the configuration.
const defaultsYAML = `
pipeline:
  chunk_size: 10
  concurrency: 25
  max_rounds: 1
  retry_backoff: 30s
  timeout: 1h
  drain_timeout: 30s
  generate_concurrency: 8
  words_key: input/words.json
  dictionary_key: input/dictionary.json
voices:
  locales: [en-US, en-GB, en-IN, en-NZ, en-ZA, en-AU]
  names: [alloy, nova]
speech:
  provider: loopback
  base_url: ""
  tts_model: tts-1
  stt_model: whisper-1
  rate_limit: 0
  burst: 1
storage:
  provider: memory
  bucket: voicematch
  region: us-east-1
  use_ssl: false
  create_bucket: true
temporal:
  host_port: localhost:7233
  namespace: default
  task_queue: voicematch
nats:
  enabled: false
  url: nats://127.0.0.1:4222
  subject: voicematch.events
server:
  http_port: 9090
  http_host: 127.0.0.1
  shutdown_timeout: 10s
logging:
  level: info
  format: json
observability:
  enable_telemetry: false
  service_name: voicematch
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  sampling_rate: 1.0
`

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(nil, false)
	if err != nil {
		// defaultsYAML is a constant; failing to parse it is a programming error.
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// LoadWithFile layers built-in defaults, the YAML file at configPath and
// VOICEMATCH_* environment variables, later layers winning, and validates
// the result. An empty configPath means ~/.config/voicematch/config.yaml; a
// missing file is not an error.
//
// The file must sit under ~/.config/voicematch/ or /etc/voicematch/, be
// mode 0600 or 0400 and be at most 1MiB, since it may hold speech and
// storage credentials.
//
// Environment keys split on the first underscore after the prefix:
//
//	VOICEMATCH_SERVER_HTTP_PORT          -> server.http_port
//	VOICEMATCH_SPEECH_API_KEY            -> speech.api_key
//	VOICEMATCH_VOICES_LOCALES=en-US,en-GB -> voices.locales
func LoadWithFile(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(home, configDirs[0], "config.yaml")
	}

	content, err := readConfigFile(home, configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := load(content, true)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns the file's content, or nil when it does not
// exist. Mode and size are checked on the open descriptor so the file
// cannot be swapped between check and read.
func readConfigFile(home, path string) ([]byte, error) {
	if err := checkConfigPath(home, path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if perm := info.Mode().Perm(); runtime.GOOS != "windows" && perm != 0o600 && perm != 0o400 {
		return nil, fmt.Errorf("insecure config file permissions %v on %s: want 0600 or 0400", perm, path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is %d bytes, limit %d", path, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// checkConfigPath rejects paths outside configDirs, after resolving
// symlinks when the file exists.
func checkConfigPath(home, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	for _, dir := range configDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(home, dir)
		}
		if rel, err := filepath.Rel(dir, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			return nil
		}
	}
	return fmt.Errorf("config path %s is outside ~/.config/voicematch/ and /etc/voicematch/", path)
}

// load layers defaults, file content and, when withEnv is set, the
// environment.
func load(content []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("load environment: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// envKey maps VOICEMATCH_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}
