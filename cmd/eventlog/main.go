// Command eventlog follows the navigation events stream and writes every
// event to the structured log.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	natsadapter "github.com/samirrijal/pedalnav/internal/adapters/nats"
	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/config"
	"github.com/samirrijal/pedalnav/internal/pkg/logging"
)

const durableName = "pedalnav-eventlog"

// tally counts consumed events per type.
type tally struct {
	mu     sync.Mutex
	counts map[domain.NavigationEventType]int
}

func (t *tally) record(ctx context.Context, e domain.NavigationEvent) error {
	t.mu.Lock()
	t.counts[e.Type]++
	t.mu.Unlock()

	attrs := []any{"session_id", e.SessionID, "type", e.Type, "time", e.Time}
	if e.Mode != "" {
		attrs = append(attrs, "mode", e.Mode)
	}
	if e.Position != nil {
		attrs = append(attrs, "lat", e.Position.Lat, "lon", e.Position.Lon)
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}

	switch e.Type {
	case domain.EventRouteFailed:
		slog.WarnContext(ctx, "navigation event", attrs...)
	default:
		slog.InfoContext(ctx, "navigation event", attrs...)
	}
	return nil
}

func main() {
	cfg, err := config.Load("pedalnav-eventlog")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := natsadapter.Connect(cfg.NATS.URL, durableName)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	// Creates the stream if the API has not yet.
	if _, err := natsadapter.NewPublisher(nc); err != nil {
		log.Fatalf("events stream: %v", err)
	}

	t := &tally{counts: make(map[domain.NavigationEventType]int)}
	sub, err := natsadapter.SubscribeEvents(ctx, nc, durableName, t.record)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	slog.Info("following navigation events", "stream", natsadapter.EventsStream)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	t.mu.Lock()
	defer t.mu.Unlock()
	slog.Info("shutting down event log", "signal", sig.String(), "counts", t.counts)
}
