// Package events publishes pipeline run events to NATS.
//
// Events are published to "<prefix>.<run_id>.<kind>", e.g.
// voicematch.events.3f2c9a6e.stage-exit, as JSON-encoded pipeline.Event
// values. Publishing is best-effort: a failed publish is logged and never
// affects the run.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "voicematch.events"

// Publisher is a pipeline.Observer that forwards events to NATS.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
}

var _ pipeline.Observer = (*Publisher)(nil)

// NewPublisher publishes on nc under prefix.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultSubject
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject e is published on.
func (p *Publisher) Subject(e pipeline.Event) string {
	runID := e.RunID
	if runID == "" {
		runID = "_"
	}
	// NATS tokens cannot contain dots or whitespace.
	runID = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(runID)
	return fmt.Sprintf("%s.%s.%s", p.prefix, runID, e.Kind)
}

// Observe publishes e.
func (p *Publisher) Observe(e pipeline.Event) {
	if err := p.Publish(e); err != nil {
		p.logger.Warn(context.Background(), "event publish failed",
			zap.String("run_id", e.RunID),
			zap.String("event", string(e.Kind)),
			zap.Error(err),
		)
	}
}

// Publish encodes and publishes e.
func (p *Publisher) Publish(e pipeline.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(e), data); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Kind, err)
	}
	return nil
}

// Connect dials url with the reconnect settings voicematch uses.
func Connect(url string, logger *logging.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("voicematch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Subscribe delivers decoded events published under prefix to fn until the
// returned subscription is drained.
func Subscribe(nc *nats.Conn, prefix string, fn func(pipeline.Event)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubject
	}
	return nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		var e pipeline.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return
		}
		fn(e)
	})
}
