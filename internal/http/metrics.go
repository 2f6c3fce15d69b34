package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/voicematch/internal/http"

// unmatchedRoute labels requests echo could not route, keeping the route
// attribute bounded.
const unmatchedRoute = "unmatched"

// HTTPMetrics records request count, latency and in-flight requests per
// route. Run submissions are counted separately by outcome.
type HTTPMetrics struct {
	requests    metric.Int64Counter
	latency     metric.Float64Histogram
	inFlight    metric.Int64UpDownCounter
	submissions metric.Int64Counter
}

// NewHTTPMetrics creates the instruments from the global meter. A failed
// instrument is logged and skipped.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newHTTPMetrics(otel.Meter(httpInstrumentationName))
	if err != nil {
		logger.Warn("http metrics partially unavailable", zap.Error(err))
	}
	return m
}

func newHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	var (
		m    HTTPMetrics
		err  error
		errs []error
	)

	m.requests, err = meter.Int64Counter(
		"voicematch.http.server.requests",
		metric.WithDescription("Requests served, by method, route and status code"),
		metric.WithUnit("{request}"),
	)
	errs = append(errs, err)

	m.latency, err = meter.Float64Histogram(
		"voicematch.http.server.duration",
		metric.WithDescription("Time from request receipt to response write"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	errs = append(errs, err)

	m.inFlight, err = meter.Int64UpDownCounter(
		"voicematch.http.server.active_requests",
		metric.WithDescription("Requests currently being handled"),
		metric.WithUnit("{request}"),
	)
	errs = append(errs, err)

	m.submissions, err = meter.Int64Counter(
		"voicematch.http.runs.submitted",
		metric.WithDescription("Run submissions, by outcome"),
		metric.WithUnit("{run}"),
	)
	errs = append(errs, err)

	return &m, errors.Join(errs...)
}

// MetricsMiddleware returns echo middleware recording per-route metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", c.Request().Method),
				attribute.String("http.route", routeLabel(c.Path())),
				attribute.String("http.response.status_code", strconv.Itoa(c.Response().Status)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return nil
		}
	}
}

// recordSubmission counts a POST /api/v1/runs outcome: accepted, invalid
// or failed. Safe on a nil receiver.
func (m *HTTPMetrics) recordSubmission(c echo.Context, outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.Add(c.Request().Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// routeLabel returns echo's route pattern (/api/v1/runs/:id), never the
// concrete path.
func routeLabel(route string) string {
	if route == "" {
		return unmatchedRoute
	}
	return route
}
