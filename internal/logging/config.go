package logging

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config describes a Logger. Commands start from NewDefaultConfig and
// override level and format via FromSettings.
type Config struct {
	Level  zapcore.Level
	Format string // json or console

	// Stdout and OTEL select the outputs. OTEL only takes effect when a
	// LoggerProvider is passed to NewLogger.
	Stdout bool
	OTEL   bool

	Caller          bool
	CallerSkip      int
	StacktraceLevel zapcore.Level

	Sampling  SamplingConfig
	Fields    map[string]string // attached to every entry
	Redaction RedactionConfig
}

// SamplingConfig samples each level in Levels on its own. Unlisted levels
// and Error and above always pass.
type SamplingConfig struct {
	Enabled bool
	Tick    time.Duration
	Levels  map[zapcore.Level]LevelSamplingConfig
}

// LevelSamplingConfig keeps the first Initial entries with the same message
// per tick, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSamplingConfig struct {
	Initial    int
	Thereafter int
}

// RedactionConfig names the field keys whose values are masked and the
// patterns masked anywhere in messages and string values.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns the configuration used by every voicematch
// command.
func NewDefaultConfig() *Config {
	return &Config{
		Level:           zapcore.InfoLevel,
		Format:          "json",
		Stdout:          true,
		OTEL:            true,
		Caller:          true,
		CallerSkip:      1,
		StacktraceLevel: zapcore.ErrorLevel,
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    time.Second,
			Levels:  DefaultLevelSamplingConfig(),
		},
		Fields: map[string]string{"service": "voicematch"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  []string{"api_key", "secret_key", "access_key", "password", "token", "authorization"},
			Patterns: []string{
				// OpenAI API keys
				`sk-[A-Za-z0-9_-]{16,}`,
				`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`,
				// S3 presigned URL query parameters
				`X-Amz-(?:Signature|Credential|Security-Token)=[^&\s"]+`,
			},
		},
	}
}

// DefaultLevelSamplingConfig samples the chatty levels. Transcription rounds
// can emit one debug entry per item, so debug is cut hardest.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 20, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 50, Thereafter: 50},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
	}
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be json or console, got %q", c.Format))
	}
	if !c.Stdout && !c.OTEL {
		errs = append(errs, errors.New("no output enabled"))
	}
	if c.Caller && c.CallerSkip < 0 {
		errs = append(errs, fmt.Errorf("caller skip is negative: %d", c.CallerSkip))
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			errs = append(errs, fmt.Errorf("sampling tick must be positive, got %s", c.Sampling.Tick))
		}
		for lvl, s := range c.Sampling.Levels {
			if s.Initial < 1 || s.Thereafter < 0 {
				errs = append(errs, fmt.Errorf("sampling %s: need initial >= 1 and thereafter >= 0", lvl))
			}
		}
	}
	if _, err := newRedactor(c.Redaction); err != nil {
		errs = append(errs, err)
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q=%q: key and value are required", k, v))
		}
	}
	return errors.Join(errs...)
}

// FromSettings applies the user-facing level and format to the defaults.
func FromSettings(level, format string) (*Config, error) {
	cfg := NewDefaultConfig()
	if level != "" {
		l, err := LevelFromString(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = l
	}
	if format != "" {
		cfg.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
