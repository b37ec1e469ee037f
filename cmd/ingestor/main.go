package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/pedalnav/internal/adapters/postgres"
	"github.com/samirrijal/pedalnav/internal/pkg/config"
	"github.com/samirrijal/pedalnav/internal/pkg/logging"
	"github.com/samirrijal/pedalnav/internal/pkg/mapjson"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the GeoJSON point-of-interest extracts to load.
type Manifest struct {
	Source   string         `json:"source"`
	Extracts []ExtractEntry `json:"extracts"`
}

// ExtractEntry is one FeatureCollection, fetched from URL or read from Path.
type ExtractEntry struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

const batchSize = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("pedalnav-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewFeatureRepo(db)

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("PedalNav POI ingestor", "extracts", len(manifest.Extracts), "source", manifest.Source)

	// Optional CLI arg: comma-separated slug filter
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, extract := range manifest.Extracts {
		if len(slugFilter) > 0 && !slugFilter[extract.Slug] {
			continue
		}

		wg.Add(1)
		go func(e ExtractEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestExtract(ctx, repo, client, e); err != nil {
				slog.Error("ingest failed", "extract", e.Slug, "error", err)
			}
		}(extract)
	}

	wg.Wait()
	slog.Info("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-extract ingestion
// ---------------------------------------------------------------------------

func ingestExtract(ctx context.Context, repo *postgres.FeatureRepo, client *http.Client, e ExtractEntry) error {
	data, err := readExtract(ctx, client, e)
	if err != nil {
		return err
	}

	set, err := mapjson.FeaturesFromGeoJSON(data)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if skipped := len(set.Community) + len(set.Warnings); skipped > 0 {
		// Community POIs and warnings only arrive through the API.
		slog.Warn("skipping rider-contributed features", "extract", e.Slug, "count", skipped)
	}

	for start := 0; start < len(set.OSM); start += batchSize {
		end := min(start+batchSize, len(set.OSM))
		if err := repo.UpsertOSMPOIs(ctx, set.OSM[start:end]); err != nil {
			return fmt.Errorf("upsert pois %d-%d: %w", start, end, err)
		}
	}

	slog.Info("extract loaded", "extract", e.Slug, "pois", len(set.OSM))
	return nil
}

func readExtract(ctx context.Context, client *http.Client, e ExtractEntry) ([]byte, error) {
	if e.Path != "" {
		return os.ReadFile(e.Path)
	}
	if e.URL == "" {
		return nil, fmt.Errorf("extract %s has neither url nor path", e.Slug)
	}

	slog.Info("downloading extract", "extract", e.Slug, "url", e.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, e.URL)
	}
	return io.ReadAll(resp.Body)
}
