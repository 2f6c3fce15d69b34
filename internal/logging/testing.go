package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, at trace and above, in memory.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger. Entries bypass the encoder, so
// redaction does not apply; use AssertNoSecrets to catch leaks.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns the recorded entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message is exactly msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	matches := t.observed.Filter(func(e observer.LoggedEntry) bool {
		return e.Level == level && strings.Contains(e.Message, substr)
	})
	if matches.Len() > 0 {
		return
	}
	msgs := make([]string, 0, t.observed.Len())
	for _, e := range t.observed.All() {
		msgs = append(msgs, e.Level.String()+": "+e.Message)
	}
	tb.Errorf("no %s entry containing %q; have %q", level, substr, msgs)
}

// AssertField fails tb unless an entry with message msg carries key with
// a value that formats like want. Numbers, durations and errors compare by
// their %v form.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && fmt.Sprint(got) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, want)
}

// AssertNoSecrets fails tb if a message or string field holds something
// the default redaction rules would have hidden.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	r, err := newRedactor(NewDefaultConfig().Redaction)
	if err != nil {
		tb.Fatalf("default redaction rules: %v", err)
	}

	for _, e := range t.observed.All() {
		if _, leaked := r.scrub(e.Message); leaked {
			tb.Errorf("secret in message %q", e.Message)
		}
		for _, f := range e.Context {
			if f.Type != zapcore.StringType || f.String == "" {
				continue
			}
			if r.sensitiveKey(f.Key) && !strings.HasPrefix(f.String, redacted[:len(redacted)-1]) {
				tb.Errorf("field %q holds an unredacted value", f.Key)
			}
			if _, leaked := r.scrub(f.String); leaked {
				tb.Errorf("secret in field %q", f.Key)
			}
		}
	}
}
