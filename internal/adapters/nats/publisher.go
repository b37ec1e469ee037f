package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/mapjson"
)

// Subject layout:
//
//	nav.session.<id>.camera|routes|features  per-session render output (core NATS)
//	nav.events.<id>.<type>                    navigation events (JetStream)
//	nav.fix.<id>                              inbound location fixes (core NATS)
const (
	subjectSessionPrefix = "nav.session."
	subjectEventsPrefix  = "nav.events."
	subjectFixPrefix     = "nav.fix."

	EventsStream = "NAVIGATION_EVENTS"
)

// SessionSubject is the subject a session's render output of kind is sent on.
func SessionSubject(sessionID, kind string) string {
	return subjectSessionPrefix + sessionID + "." + kind
}

// SessionWildcard matches every render subject of a session.
func SessionWildcard(sessionID string) string {
	return subjectSessionPrefix + sessionID + ".>"
}

// EventSubject is the JetStream subject for a navigation event.
func EventSubject(e domain.NavigationEvent) string {
	return subjectEventsPrefix + e.SessionID + "." + string(e.Type)
}

// FixSubject is the subject fixes for a session are published on.
func FixSubject(sessionID string) string {
	return subjectFixPrefix + sessionID
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Message is the envelope of everything sent on session subjects.
type Message struct {
	SessionID string          `json:"session_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Time      time.Time       `json:"time"`
}

// Publisher implements ports.EventPublisher using NATS JetStream and
// ports.MapRenderer using plain NATS subjects.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	now  func() time.Time
}

// NewPublisher enables JetStream on conn and ensures the events stream exists.
func NewPublisher(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      EventsStream,
		Subjects:  []string{subjectEventsPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js, now: time.Now}, nil
}

// PublishNavigationEvent stores the event on the events stream.
func (p *Publisher) PublishNavigationEvent(ctx context.Context, event domain.NavigationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(EventSubject(event), data, nats.Context(ctx))
	return err
}

// ApplyCamera forwards the camera intent to the session's map clients.
func (p *Publisher) ApplyCamera(_ context.Context, sessionID string, intent domain.CameraIntent) error {
	return p.send(sessionID, "camera", intent)
}

// ShowRoutes forwards the route overlay as GeoJSON.
func (p *Publisher) ShowRoutes(_ context.Context, sessionID string, routes []domain.RouteResult) error {
	return p.send(sessionID, "routes", mapjson.RoutesToGeoJSON(routes))
}

// ShowFeatures forwards the feature markers as GeoJSON.
func (p *Publisher) ShowFeatures(_ context.Context, sessionID string, features domain.FeatureSet) error {
	return p.send(sessionID, "features", mapjson.FeaturesToGeoJSON(features))
}

func (p *Publisher) send(sessionID, kind string, payload any) error {
	data, err := encodeMessage(sessionID, kind, payload, p.now())
	if err != nil {
		return err
	}
	return p.conn.Publish(SessionSubject(sessionID, kind), data)
}

func encodeMessage(sessionID, kind string, payload any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return json.Marshal(Message{SessionID: sessionID, Kind: kind, Payload: raw, Time: at.UTC()})
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// SessionEventsWildcard matches every navigation event of a session.
func SessionEventsWildcard(sessionID string) string {
	return subjectEventsPrefix + sessionID + ".>"
}
