package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/voicematch/internal/config"
)

const (
	redacted = "[REDACTED]"

	// maxPatternLen bounds user-supplied redaction patterns.
	maxPatternLen = 256
)

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as its length only.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// redactor decides what to hide. A nil redactor hides nothing.
type redactor struct {
	fields   []string
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	r := &redactor{}
	for _, f := range cfg.Fields {
		r.fields = append(r.fields, strings.ToLower(f))
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// sensitiveKey matches a configured name exactly or as the last segment of
// a dotted or underscored key, so "speech.api_key" matches "api_key".
func (r *redactor) sensitiveKey(key string) bool {
	if r == nil {
		return false
	}
	key = strings.ToLower(key)
	for _, f := range r.fields {
		if key == f || strings.HasSuffix(key, "."+f) || strings.HasSuffix(key, "_"+f) {
			return true
		}
	}
	return false
}

// scrub masks every pattern match in s and reports whether anything changed.
func (r *redactor) scrub(s string) (string, bool) {
	if r == nil {
		return s, false
	}
	changed := false
	for _, re := range r.patterns {
		if re.MatchString(s) {
			s = re.ReplaceAllString(s, redacted)
			changed = true
		}
	}
	return s, changed
}

// field returns f with its value hidden or scrubbed. Errors and stringers
// are rendered to strings when their text needs masking.
func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if r == nil {
		return f
	}
	if r.sensitiveKey(f.Key) {
		return zap.String(f.Key, redacted)
	}
	switch f.Type {
	case zapcore.StringType:
		if s, ok := r.scrub(f.String); ok {
			return zap.String(f.Key, s)
		}
	case zapcore.ErrorType:
		if err, isErr := f.Interface.(error); isErr && err != nil {
			if s, ok := r.scrub(err.Error()); ok {
				return zap.String(f.Key, s)
			}
		}
	case zapcore.StringerType:
		if st, isStringer := f.Interface.(fmt.Stringer); isStringer && st != nil {
			if s, ok := r.scrub(st.String()); ok {
				return zap.String(f.Key, s)
			}
		}
	}
	return f
}

func (r *redactor) fieldList(fields []zapcore.Field) []zapcore.Field {
	if r == nil || len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = r.field(f)
	}
	return out
}

// RedactingEncoder wraps a zapcore.Encoder. Entry messages and fields are
// masked in EncodeEntry; fields bound with Logger.With go through the Add*
// methods.
type RedactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// NewRedactingEncoder wraps an encoder with redaction rules.
// Returns error if any redaction pattern is invalid.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, r: r}, nil
}

// EncodeEntry masks the message and per-entry fields, then encodes.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	ent.Message, _ = e.r.scrub(ent.Message)
	return e.Encoder.EncodeEntry(ent, e.r.fieldList(fields))
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	val, _ = e.r.scrub(val)
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddByteString(key, []byte(redacted))
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddBinary(key, []byte(redacted))
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected hides the whole value when the key is sensitive. Nested
// values are not inspected.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone creates a copy of the encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}

// redactingCore masks entries bound for cores without an encoder, such as
// the OpenTelemetry bridge.
type redactingCore struct {
	zapcore.Core
	r *redactor
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.r.fieldList(fields)), r: c.r}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message, _ = c.r.scrub(ent.Message)
	return c.Core.Write(ent, c.r.fieldList(fields))
}
