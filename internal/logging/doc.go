// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry)
//   - Automatic context field injection (trace_id, run.id, run.stage, request.id)
//   - Secret redaction at the encoder
//   - Level-aware sampling (errors never sampled)
//   - An adapter for the Temporal SDK logger
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging.Level, appCfg.Logging.Format)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithStage(ctx, "transcribe")
//	logger.Info(ctx, "round finished", zap.Int("completed", n))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertNoSecrets(t)
package logging
