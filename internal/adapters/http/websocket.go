package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/pedalnav/internal/adapters/nats"
	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to channels or to
// push input into the session.
type wsMessage struct {
	Action  string              `json:"action"`  // "subscribe" | "unsubscribe" | "fix" | "viewport"
	Channel string              `json:"channel"` // "camera" | "routes" | "features" | "events"
	Fix     *domain.LocationFix `json:"fix,omitempty"`
	Bounds  *domain.BoundingBox `json:"bounds,omitempty"`
}

var renderChannels = []string{"camera", "routes", "features"}

func channelSubject(sessionID, channel string) (string, bool) {
	switch channel {
	case "camera", "routes", "features":
		return natsadapter.SessionSubject(sessionID, channel), true
	case "events":
		return natsadapter.SessionEventsWildcard(sessionID), true
	}
	return "", false
}

// WebSocketHandler relays a session's render output and navigation events to
// the connected client, and accepts fixes and viewport updates from it.
// Clients start subscribed to every channel. Messages look like
// {"action":"unsubscribe","channel":"features"} or {"action":"fix","fix":{...}}.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID := c.Params("id")
		logger := slog.Default().With("session_id", sessionID, "remote", c.RemoteAddr().String())

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		s, err := deps.Sessions.Get(sessionID)
		if err != nil {
			_ = writeJSON(map[string]string{"error": err.Error()})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		subs := make(map[string]*nats.Subscription) // subject -> subscription
		relay := func(msg *nats.Msg) { _ = writeJSON(json.RawMessage(msg.Data)) }
		subscribe := func(subject string) error {
			if deps.NATS == nil {
				return nats.ErrInvalidConnection
			}
			sub, err := deps.NATS.Subscribe(subject, relay)
			if err != nil {
				return err
			}
			subs[subject] = sub
			return nil
		}

		// Start with the full session feed and its events.
		for _, subject := range []string{natsadapter.SessionWildcard(sessionID), natsadapter.SessionEventsWildcard(sessionID)} {
			if err := subscribe(subject); err != nil {
				logger.Warn("ws default subscribe failed", "subject", subject, "error", err)
			}
		}
		_ = writeJSON(s.Snapshot())

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				case <-s.Done():
					_ = writeJSON(map[string]string{"status": "session closed"})
					mu.Lock()
					_ = c.Close()
					mu.Unlock()
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "fix":
				if m.Fix == nil {
					_ = writeJSON(map[string]string{"error": "fix is required"})
					continue
				}
				if m.Fix.Timestamp.IsZero() {
					m.Fix.Timestamp = time.Now().UTC()
				}
				if err := submit(s.SubmitFix, *m.Fix); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
				}

			case "viewport":
				if m.Bounds == nil {
					_ = writeJSON(map[string]string{"error": "bounds is required"})
					continue
				}
				if err := submit(s.SetViewport, *m.Bounds); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
				}

			case "subscribe", "unsubscribe":
				subject, ok := channelSubject(sessionID, m.Channel)
				if !ok {
					_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
					continue
				}
				if m.Action == "subscribe" {
					_, covered := subs[natsadapter.SessionWildcard(sessionID)]
					if _, exists := subs[subject]; exists || (covered && m.Channel != "events") {
						_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
						continue
					}
					if err := subscribe(subject); err != nil {
						_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
						continue
					}
					_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})
					continue
				}
				// Narrow the catch-all feed to the remaining render channels.
				all := natsadapter.SessionWildcard(sessionID)
				if sub, ok := subs[all]; ok && m.Channel != "events" {
					_ = sub.Unsubscribe()
					delete(subs, all)
					for _, kind := range renderChannels {
						if kind == m.Channel {
							continue
						}
						if err := subscribe(natsadapter.SessionSubject(sessionID, kind)); err != nil {
							logger.Warn("ws resubscribe failed", "channel", kind, "error", err)
						}
					}
				}
				if sub, ok := subs[subject]; ok {
					_ = sub.Unsubscribe()
					delete(subs, subject)
				}
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
		logger.Info("ws client disconnected")
	}
}

// submit runs a session input with a bounded wait so a stalled session
// cannot wedge the socket reader.
func submit[T any](fn func(context.Context, T) error, v T) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return fn(ctx, v)
}
