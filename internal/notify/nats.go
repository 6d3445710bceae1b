package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"

	"github.com/nats-io/nats.go"
)

// Publisher sends supervisor events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	site    string
}

// envelope is the wire form of a published event.
type envelope struct {
	Site        string    `json:"site,omitempty"`
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	Metadata    any       `json:"metadata,omitempty"`
}

// Connect dials url and keeps reconnecting in the background for as long as the process runs.
func Connect(url, subject, site string, log *logger.Logger) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name("vapor-supervisor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnw("nats_disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infow("nats_reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify.Connect %s: %w", url, err)
	}
	return &Publisher{conn: conn, subject: subject, site: site}, nil
}

// Publish encodes ev and publishes it to the configured subject.
// While disconnected the client buffers the message.
func (p *Publisher) Publish(_ context.Context, ev models.Event) error {
	b, err := Encode(p.site, ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject+"."+subjectToken(ev.Type), b); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	_ = p.conn.Flush()
	p.conn.Close()
}

// Encode returns the JSON payload for ev.
func Encode(site string, ev models.Event) ([]byte, error) {
	b, err := json.Marshal(envelope{
		Site:        site,
		EventID:     ev.EventID,
		Type:        ev.Type,
		Description: ev.Description,
		OccurredAt:  ev.OccurredAt.UTC(),
		Metadata:    ev.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return b, nil
}

// subjectToken lowercases the event type for use as the last subject token.
func subjectToken(typ string) string {
	if typ == "" {
		return "event"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(typ))
}
