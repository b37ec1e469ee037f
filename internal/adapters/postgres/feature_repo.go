package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// FeatureRepo implements ports.PointOfInterestStore and ports.WarningStore
// against the PostGIS tables created by migrations/002_map_features.sql.
type FeatureRepo struct {
	db *DB
}

// NewFeatureRepo creates a new FeatureRepo.
func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

const envelope = `location && ST_MakeEnvelope($1, $2, $3, $4, 4326)`

// FetchPOIs returns the OSM and community points of interest inside bounds.
func (r *FeatureRepo) FetchPOIs(ctx context.Context, b domain.BoundingBox) (domain.FeatureSet, error) {
	set := domain.FeatureSet{Bounds: b}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT osm_id, COALESCE(name, ''), category,
		       ST_Y(location) AS lat, ST_X(location) AS lon,
		       COALESCE(tags, '{}'::jsonb)
		FROM osm_pois
		WHERE `+envelope+`
		ORDER BY osm_id
	`, b.West, b.South, b.East, b.North)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("query osm_pois: %w", err)
	}
	set.OSM, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OSMPOI, error) {
		var p domain.OSMPOI
		err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Location.Lat, &p.Location.Lon, &p.Tags)
		return p, err
	})
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("scan osm_pois: %w", err)
	}

	rows, err = r.db.Pool.Query(ctx, `
		SELECT id::text, name, category,
		       ST_Y(location) AS lat, ST_X(location) AS lon,
		       COALESCE(description, ''), COALESCE(created_by, ''), created_at
		FROM community_pois
		WHERE `+envelope+`
		ORDER BY created_at DESC
	`, b.West, b.South, b.East, b.North)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("query community_pois: %w", err)
	}
	set.Community, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CommunityPOI, error) {
		var p domain.CommunityPOI
		err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Location.Lat, &p.Location.Lon,
			&p.Description, &p.CreatedBy, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("scan community_pois: %w", err)
	}

	return set, nil
}

// FetchWarnings returns the active hazards inside bounds.
func (r *FeatureRepo) FetchWarnings(ctx context.Context, b domain.BoundingBox) ([]domain.Warning, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, category, COALESCE(severity, ''),
		       ST_Y(location) AS lat, ST_X(location) AS lon,
		       COALESCE(description, ''), reported_at
		FROM warnings
		WHERE `+envelope+`
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY reported_at DESC
	`, b.West, b.South, b.East, b.North)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	warnings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Warning, error) {
		var w domain.Warning
		err := row.Scan(&w.ID, &w.Category, &w.Severity, &w.Location.Lat, &w.Location.Lon,
			&w.Description, &w.ReportedAt)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan warnings: %w", err)
	}
	return warnings, nil
}

// AddCommunityPOI stores a rider-contributed point of interest and returns its id.
func (r *FeatureRepo) AddCommunityPOI(ctx context.Context, p domain.CommunityPOI) (string, error) {
	var id string
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO community_pois (name, category, location, description, created_by)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326), NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id::text
	`, p.Name, p.Category, p.Location.Lon, p.Location.Lat, p.Description, p.CreatedBy).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert community poi: %w", err)
	}
	return id, nil
}

// AddWarning stores a rider-reported hazard and returns its id.
func (r *FeatureRepo) AddWarning(ctx context.Context, w domain.Warning) (string, error) {
	var id string
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO warnings (category, severity, location, description)
		VALUES ($1, NULLIF($2, ''), ST_SetSRID(ST_MakePoint($3, $4), 4326), NULLIF($5, ''))
		RETURNING id::text
	`, w.Category, w.Severity, w.Location.Lon, w.Location.Lat, w.Description).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert warning: %w", err)
	}
	return id, nil
}

// UpsertOSMPOIs bulk-loads OpenStreetMap points of interest.
func (r *FeatureRepo) UpsertOSMPOIs(ctx context.Context, pois []domain.OSMPOI) error {
	batch := &pgx.Batch{}
	for _, p := range pois {
		batch.Queue(`
			INSERT INTO osm_pois (osm_id, name, category, location, tags)
			VALUES ($1, NULLIF($2, ''), $3, ST_SetSRID(ST_MakePoint($4, $5), 4326), $6)
			ON CONFLICT (osm_id) DO UPDATE
			SET name = EXCLUDED.name, category = EXCLUDED.category,
			    location = EXCLUDED.location, tags = EXCLUDED.tags
		`, p.ID, p.Name, p.Category, p.Location.Lon, p.Location.Lat, p.Tags)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pois {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}
