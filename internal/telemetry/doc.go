// Package telemetry owns the OpenTelemetry tracer and meter providers for
// the voicematch commands.
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// When enabled, New installs its providers as the otel globals; the
// workflow and HTTP instruments are created from the global meter and
// export through them. Spans and metrics leave over OTLP, grpc or http/protobuf.
// Workflow duration histograms get run-scale buckets.
//
// A provider that cannot start marks the instance degraded; the serve
// command surfaces that on /health.
package telemetry
