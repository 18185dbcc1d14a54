package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"codebattle-server/domain"
)

const DefaultSubjectPrefix = "codebattle.events"

// NATSSink publishes each event on <prefix>.<kind>. Room ids are free-form
// so they travel in the payload rather than the subject.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSSink(url, prefix string) (*NATSSink, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("codebattle-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{conn: conn, prefix: prefix}, nil
}

func (n *NATSSink) Publish(_ context.Context, ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode event", "kind", ev.Kind, "error", err)
		return
	}
	if err := n.conn.Publish(subject(n.prefix, ev.Kind), data); err != nil {
		slog.Warn("nats publish failed", "kind", ev.Kind, "room", ev.Room, "error", err)
	}
}

func (n *NATSSink) Close() error {
	return n.conn.Drain()
}

func subject(prefix string, kind domain.EventKind) string {
	return prefix + "." + string(kind)
}
