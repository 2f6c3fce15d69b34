package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/events"
	httpserver "github.com/fyrsmithlabs/voicematch/internal/http"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/runner"
	"github.com/fyrsmithlabs/voicematch/internal/variations"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Long: `Serve accepts runs on POST /api/v1/runs and executes them in this process.
GET /api/v1/match resolves spoken text against the variations dictionary.
Lifecycle events are published to NATS when nats.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// serve starts the HTTP API and blocks until ctx is cancelled.
func serve(ctx context.Context) error {
	deps, err := initDependencies(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.Background()) }()

	observers := pipeline.Observers{
		runner.LogObserver{Logger: deps.logger},
		runner.NewMetricsObserver(),
	}

	var nc *nats.Conn
	if deps.cfg.NATS.Enabled {
		nc, err = events.Connect(deps.cfg.NATS.URL, deps.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()

		pub, err := events.NewPublisher(nc, deps.cfg.NATS.Subject, deps.logger)
		if err != nil {
			return err
		}
		observers = append(observers, pub)
	}

	r, err := runner.New(runner.OptionsFromConfig(deps.cfg.Pipeline), runner.Deps{
		Store:    deps.store,
		Speech:   deps.speech,
		Profiles: deps.profiles,
		Logger:   deps.logger,
		Tracer:   deps.telemetry.Tracer("voicematch/runner"),
		Observer: observers,
	})
	if err != nil {
		return err
	}

	srv, err := httpserver.NewServer(r, deps.logger, &httpserver.Config{
		Host:    deps.cfg.Server.Host,
		Port:    deps.cfg.Server.Port,
		Health:  deps.telemetry.Health,
		Metrics: httpserver.NewHTTPMetrics(deps.logger.Underlying()),
		Matcher: variations.StoredMatcher{Store: deps.store, Key: deps.cfg.Pipeline.DictionaryKey},
	})
	if err != nil {
		return err
	}

	deps.logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", deps.cfg.Server.Host, deps.cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("nats_connected", nc != nil))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
