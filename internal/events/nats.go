package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

const publishTimeout = 5 * time.Second

// NATSPublisher publishes build events to a JetStream subject.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to the given NATS URL. The subject's stream
// must exist on the server; publishing into a subject no stream covers
// surfaces as a publish error, not a connect error.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	slog.Info("NATS event publisher connected", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, js: js, subject: subject}, nil
}

// Publish delivers one event, bounded by a short timeout so a slow
// broker cannot stall the build loop.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := p.js.Publish(pctx, p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	slog.Debug("Published build event",
		slog.String("type", string(ev.Type)),
		logfields.BuildID(ev.BuildID))
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
