package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

// AnalysisRepo implements ports.AnalysisRepository with pgx.
type AnalysisRepo struct {
	db *DB
}

// NewAnalysisRepo creates a new AnalysisRepo.
func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Insert stores an analysis. Re-inserting the same ID is a no-op so
// redelivered events are harmless.
func (r *AnalysisRepo) Insert(ctx context.Context, a *domain.Analysis) error {
	var lat, lon *float64
	if a.Location != nil {
		lat, lon = &a.Location.Lat, &a.Location.Lon
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO analyses (id, kind, session_id, prompt, response, location, layers, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5,
		        CASE WHEN $6::float8 IS NULL THEN NULL
		             ELSE ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography END,
		        $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, string(a.Kind), a.SessionID, a.Prompt, a.Response, lon, lat, a.Layers, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// List returns analyses newest first.
func (r *AnalysisRepo) List(ctx context.Context, offset, limit int) ([]domain.Analysis, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, kind, COALESCE(session_id, ''), prompt, response,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       COALESCE(layers, '{}'), created_at
		FROM analyses
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Analysis{}
	for rows.Next() {
		var (
			a        domain.Analysis
			kind     string
			lat, lon *float64
		)
		if err := rows.Scan(&a.ID, &kind, &a.SessionID, &a.Prompt, &a.Response, &lat, &lon, &a.Layers, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = domain.AnalysisKind(kind)
		if lat != nil && lon != nil {
			a.Location = &domain.GeoPoint{Lat: *lat, Lon: *lon}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByKind returns the number of archived analyses of each kind.
func (r *AnalysisRepo) CountByKind(ctx context.Context) (map[domain.AnalysisKind]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT kind, COUNT(*) FROM analyses GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.AnalysisKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[domain.AnalysisKind(kind)] = n
	}
	return out, rows.Err()
}
