package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestTemporalLogger(t *testing.T) {
	tl := NewTestLogger()
	tlog := NewTemporalLogger(tl.Logger)

	tlog.Info("Started Worker", "Namespace", "default", "TaskQueue", "voicematch")
	tlog.Debug("poll")
	tlog.Warn("slow poll", "attempt", 3)
	tlog.Error("activity failed", "ActivityType", "TranscribeChunk")

	tl.AssertLogged(t, zapcore.InfoLevel, "Started Worker")
	tl.AssertLogged(t, zapcore.DebugLevel, "poll")
	tl.AssertLogged(t, zapcore.WarnLevel, "slow poll")
	tl.AssertLogged(t, zapcore.ErrorLevel, "activity failed")
	tl.AssertField(t, "Started Worker", "TaskQueue", "voicematch")

	entries := tl.FilterMessage("Started Worker").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "temporal", entries[0].LoggerName)

	child := tlog.With("WorkflowID", "vm-1")
	child.Info("child")
	tl.AssertField(t, "child", "WorkflowID", "vm-1")
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings("debug", "console")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	cfg, err = FromSettings("trace", "")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	_, err = FromSettings("loud", "json")
	assert.Error(t, err)

	_, err = FromSettings("info", "xml")
	assert.Error(t, err)
}
