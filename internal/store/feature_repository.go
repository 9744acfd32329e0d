package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeatureRepository handles derived-metric rows.
type FeatureRepository struct {
	pool *pgxpool.Pool
}

// NewFeatureRepository creates a new feature repository.
func NewFeatureRepository(pool *pgxpool.Pool) *FeatureRepository {
	return &FeatureRepository{pool: pool}
}

// ListByDateRange retrieves all features with date in [from, to).
func (r *FeatureRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]Feature, error) {
	query := `
		SELECT code, feature_date, name, value
		FROM features
		WHERE feature_date >= $1 AND feature_date < $2
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.Code, &f.Date, &f.Name, &f.Value); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// ListByCodesAndDateRange retrieves features for specific codes and names.
func (r *FeatureRepository) ListByCodesAndDateRange(ctx context.Context, codes []string, names []string, from, to time.Time) ([]Feature, error) {
	query := `
		SELECT code, feature_date, name, value
		FROM features
		WHERE code = ANY($1) AND name = ANY($2)
		  AND feature_date >= $3 AND feature_date < $4
	`

	rows, err := r.pool.Query(ctx, query, codes, names, from, to)
	if err != nil {
		return nil, fmt.Errorf("query features by codes: %w", err)
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.Code, &f.Date, &f.Name, &f.Value); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// SaveBatch upserts feature rows.
func (r *FeatureRepository) SaveBatch(ctx context.Context, features []Feature) error {
	if len(features) == 0 {
		return nil
	}

	query := `
		INSERT INTO features (code, feature_date, name, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code, feature_date, name) DO UPDATE SET
			value = EXCLUDED.value
	`

	batch := &pgx.Batch{}
	for _, f := range features {
		batch.Queue(query, f.Code, f.Date, f.Name, f.Value)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range features {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert feature: %w", err)
		}
	}
	return nil
}
