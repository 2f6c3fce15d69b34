package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/config"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/speech"
	"github.com/fyrsmithlabs/voicematch/internal/telemetry"
)

// dependencies holds the infrastructure shared by every command.
type dependencies struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     artifacts.Store
	speech    speech.Service
	profiles  []speech.VoiceProfile
}

// initDependencies loads configuration and builds the infrastructure:
//  1. Configuration (defaults, file, environment)
//  2. Telemetry and logger
//  3. Artifact store
//  4. Speech backend, rate limited
func initDependencies(ctx context.Context) (*dependencies, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	return newDependencies(ctx, cfg)
}

func newDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, errors.Join(err, tel.Shutdown(ctx))
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize logger: %w", err), tel.Shutdown(ctx))
	}

	d := &dependencies{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		profiles:  speech.Profiles(cfg.Voices.Locales, cfg.Voices.Names),
	}

	if d.store, err = newStore(ctx, cfg.Storage); err != nil {
		return nil, errors.Join(err, d.Close(ctx))
	}
	if d.speech, err = newSpeech(cfg.Speech); err != nil {
		return nil, errors.Join(err, d.Close(ctx))
	}

	logger.Info(ctx, "dependencies initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("speech", cfg.Speech.Provider),
		zap.Int("profiles", len(d.profiles)),
		zap.Bool("telemetry", tel.IsEnabled()))
	return d, nil
}

func newStore(ctx context.Context, c config.StorageConfig) (artifacts.Store, error) {
	switch c.Provider {
	case config.StorageMinio:
		store, err := artifacts.NewMinio(ctx, artifacts.MinioConfig{
			Endpoint:     c.Endpoint,
			AccessKey:    c.AccessKey,
			SecretKey:    c.SecretKey,
			Bucket:       c.Bucket,
			Region:       c.Region,
			UseSSL:       c.UseSSL,
			CreateBucket: c.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact store: %w", err)
		}
		return store, nil
	case config.StorageMemory:
		return artifacts.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage provider %q", c.Provider)
}

func newSpeech(c config.SpeechConfig) (speech.Service, error) {
	var svc speech.Service
	switch c.Provider {
	case config.SpeechOpenAI:
		o, err := speech.NewOpenAI(speech.OpenAIConfig{
			APIKey:   c.APIKey,
			BaseURL:  c.BaseURL,
			TTSModel: c.TTSModel,
			STTModel: c.STTModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create speech backend: %w", err)
		}
		svc = o
	case config.SpeechLoopback:
		svc = speech.Loopback{}
	default:
		return nil, fmt.Errorf("unknown speech provider %q", c.Provider)
	}
	return speech.NewLimited(svc, c.RateLimit, c.Burst), nil
}

// Close flushes telemetry and the logger.
func (d *dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.logger != nil {
		errs = append(errs, d.logger.Sync())
	}
	if d.telemetry != nil {
		errs = append(errs, d.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
