package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples every level listed in cfg.Levels with its own
// sampler. Entries at Error and above, and levels without an entry, are
// never sampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	sampled := func(l zapcore.Level) bool {
		_, ok := cfg.Levels[l]
		return ok && l < zapcore.ErrorLevel
	}
	cores := []zapcore.Core{
		&levelFilterCore{Core: core, allow: func(l zapcore.Level) bool { return !sampled(l) }},
	}
	for lvl, s := range cfg.Levels {
		if !sampled(lvl) {
			continue
		}
		only := lvl
		filtered := &levelFilterCore{Core: core, allow: func(l zapcore.Level) bool { return l == only }}
		cores = append(cores, zapcore.NewSamplerWithOptions(filtered, cfg.Tick, s.Initial, s.Thereafter))
	}
	return zapcore.NewTee(cores...)
}

// levelFilterCore passes only the levels allow accepts.
type levelFilterCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.allow(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), allow: c.allow}
}
