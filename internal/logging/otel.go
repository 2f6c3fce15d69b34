package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// otelScope is the instrumentation scope of records sent through the bridge.
const otelScope = "github.com/fyrsmithlabs/voicematch/internal/logging"

// newDualCore creates core with stdout and/or OTEL outputs. Both outputs are
// redacted and share one sampler.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	r, err := newRedactor(cfg.Redaction)
	if err != nil {
		return nil, err
	}

	cores := make([]zapcore.Core, 0, 2)
	if cfg.Stdout {
		encoder := &RedactingEncoder{Encoder: newEncoder(cfg.Format), r: r}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), cfg.Level))
	}
	if cfg.OTEL && otelProvider != nil {
		var bridge zapcore.Core = otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(otelProvider))
		// The bridge has no level of its own.
		bridge = &levelFilterCore{Core: bridge, allow: func(l zapcore.Level) bool { return l >= cfg.Level }}
		if r != nil {
			bridge = &redactingCore{Core: bridge, r: r}
		}
		cores = append(cores, bridge)
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("at least one output must be enabled and available")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	}
	return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
}
