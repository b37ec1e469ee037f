package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// FixSource implements ports.LocationSource by subscribing to the fixes a
// device publishes for one session.
type FixSource struct {
	conn      *nats.Conn
	sessionID string
	logger    *slog.Logger
}

// NewFixSource creates a location source for sessionID.
func NewFixSource(conn *nats.Conn, sessionID string, logger *slog.Logger) *FixSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixSource{conn: conn, sessionID: sessionID, logger: logger.With("session_id", sessionID)}
}

// Stream relays fixes until ctx is cancelled or the connection closes.
func (s *FixSource) Stream(ctx context.Context, fixes chan<- domain.LocationFix) error {
	msgs := make(chan *nats.Msg, 64)
	sub, err := s.conn.ChanSubscribe(FixSubject(s.sessionID), msgs)
	if err != nil {
		return fmt.Errorf("%w: subscribe fixes: %w", domain.ErrUnavailable, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	health := time.NewTicker(time.Second)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-health.C:
			if s.conn.IsClosed() {
				return fmt.Errorf("%w: nats connection closed", domain.ErrUnavailable)
			}
		case msg := <-msgs:
			fix, err := decodeFix(msg.Data)
			if err != nil {
				s.logger.Warn("discarding malformed fix", "error", err)
				continue
			}
			select {
			case fixes <- fix:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func decodeFix(data []byte) (domain.LocationFix, error) {
	var fix domain.LocationFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return domain.LocationFix{}, err
	}
	return fix, fix.Validate()
}

// EventHandler processes one navigation event.
type EventHandler func(ctx context.Context, event domain.NavigationEvent) error

// SubscribeEvents consumes the events stream with a durable consumer. Events
// the handler rejects are redelivered up to three times.
func SubscribeEvents(ctx context.Context, conn *nats.Conn, durable string, handler EventHandler) (*nats.Subscription, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return js.Subscribe(subjectEventsPrefix+">", func(msg *nats.Msg) {
		var event domain.NavigationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
}
