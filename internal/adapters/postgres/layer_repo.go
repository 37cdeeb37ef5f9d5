package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
)

// LayerRepo implements ports.LayerRepository over the layers and
// layer_features tables. Layers that were never ingested are served from
// fallback, if set.
type LayerRepo struct {
	db       *DB
	fallback ports.LayerRepository
}

// NewLayerRepo creates a new LayerRepo.
func NewLayerRepo(db *DB, fallback ports.LayerRepository) *LayerRepo {
	return &LayerRepo{db: db, fallback: fallback}
}

// List returns the ingested catalogue merged over the fallback catalogue.
func (r *LayerRepo) List(ctx context.Context) ([]domain.Layer, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT l.id, l.name, l.color, l.geometry_kind, COUNT(f.id)
		FROM layers l
		LEFT JOIN layer_features f ON f.layer_id = l.id
		GROUP BY l.id, l.name, l.color, l.geometry_kind
		ORDER BY l.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layers []domain.Layer
	seen := make(map[string]bool)
	for rows.Next() {
		var l domain.Layer
		if err := rows.Scan(&l.ID, &l.Name, &l.Color, &l.GeometryKind, &l.FeatureCount); err != nil {
			return nil, err
		}
		seen[l.ID] = true
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.fallback != nil {
		extra, err := r.fallback.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range extra {
			if !seen[l.ID] {
				layers = append(layers, l)
			}
		}
	}
	return layers, nil
}

// Features returns a layer's features as a FeatureCollection.
func (r *LayerRepo) Features(ctx context.Context, layerID string) (*geojson.FeatureCollection, error) {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM layers WHERE id = $1)`, layerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		if r.fallback != nil {
			return r.fallback.Features(ctx, layerID)
		}
		return nil, domain.ErrLayerNotFound
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT feature FROM layer_features WHERE layer_id = $1 ORDER BY id
	`, layerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("decode feature of %s: %w", layerID, err)
		}
		fc.Append(f)
	}
	return fc, rows.Err()
}

// ReplaceLayer upserts a layer and swaps its features in one transaction.
func (r *LayerRepo) ReplaceLayer(ctx context.Context, layer domain.Layer, fc *geojson.FeatureCollection) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO layers (id, name, color, geometry_kind)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, color = EXCLUDED.color,
			    geometry_kind = EXCLUDED.geometry_kind, updated_at = now()
		`, layer.ID, layer.Name, layer.Color, layer.GeometryKind); err != nil {
			return fmt.Errorf("upsert layer: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM layer_features WHERE layer_id = $1`, layer.ID); err != nil {
			return fmt.Errorf("clear features: %w", err)
		}

		batch := &pgx.Batch{}
		for _, f := range fc.Features {
			feature, err := f.MarshalJSON()
			if err != nil {
				return fmt.Errorf("encode feature: %w", err)
			}
			geometry, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
			if err != nil {
				return fmt.Errorf("encode geometry: %w", err)
			}
			batch.Queue(`
				INSERT INTO layer_features (layer_id, feature, geom)
				VALUES ($1, $2, ST_SetSRID(ST_GeomFromGeoJSON($3), 4326)::geography)
			`, layer.ID, feature, string(geometry))
		}

		br := tx.SendBatch(ctx, batch)
		for range fc.Features {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		return br.Close()
	})
}
