package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/voicematch/internal/config"
)

// OTLP transports.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config selects where traces and metrics go and how the resource is named.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	Exporter ExporterConfig

	// SampleRate is the head sampling ratio for root spans; children follow
	// their parent.
	SampleRate float64

	// MetricInterval is the periodic reader's export interval. Zero
	// disables the meter provider.
	MetricInterval time.Duration

	// ShutdownTimeout bounds Shutdown when the caller's context has no
	// deadline.
	ShutdownTimeout time.Duration
}

// ExporterConfig is shared by the span and metric exporters.
type ExporterConfig struct {
	Endpoint      string
	Protocol      string
	Insecure      bool
	TLSSkipVerify bool
}

// NewDefaultConfig returns disabled telemetry pointed at a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:    "voicematch",
		ServiceVersion: "dev",
		Exporter: ExporterConfig{
			Endpoint: "localhost:4317",
			Protocol: ProtocolGRPC,
			Insecure: true,
		},
		SampleRate:      1.0,
		MetricInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromObservability maps the user-facing observability settings onto the
// telemetry defaults.
func FromObservability(o config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = o.EnableTelemetry
	if o.ServiceName != "" {
		cfg.ServiceName = o.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	if o.Endpoint != "" {
		cfg.Exporter.Endpoint = o.Endpoint
	}
	if o.Protocol != "" {
		cfg.Exporter.Protocol = o.Protocol
	}
	cfg.Exporter.Insecure = o.Insecure
	cfg.SampleRate = o.SamplingRate
	return cfg
}

// Validate checks an enabled configuration. Disabled telemetry is always
// valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.ServiceVersion == "" {
		errs = append(errs, errors.New("service version is required"))
	}
	if err := c.Exporter.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample rate must be within [0, 1], got %g", c.SampleRate))
	}
	if c.MetricInterval < 0 {
		errs = append(errs, fmt.Errorf("metric interval must not be negative, got %s", c.MetricInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

func (e ExporterConfig) validate() error {
	if e.Endpoint == "" {
		return errors.New("exporter endpoint is required")
	}
	switch e.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP:
	default:
		return fmt.Errorf("exporter protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, e.Protocol)
	}
	if e.Insecure && !isLoopback(e.address()) {
		return fmt.Errorf("plaintext export to %s is not allowed; disable insecure or use a loopback collector", e.Endpoint)
	}
	return nil
}

// address is the endpoint without an http(s) scheme. The OTLP HTTP
// exporter wants host:port, not a URL.
func (e ExporterConfig) address() string {
	addr := strings.TrimPrefix(e.Endpoint, "https://")
	return strings.TrimPrefix(addr, "http://")
}

func (e ExporterConfig) protocol() string {
	if e.Protocol == "" {
		return ProtocolGRPC
	}
	return e.Protocol
}

// isLoopback reports whether addr (host or host:port) names this machine.
func isLoopback(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
