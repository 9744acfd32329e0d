package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SymbolRepository handles instrument master rows.
type SymbolRepository struct {
	pool *pgxpool.Pool
}

// NewSymbolRepository creates a new symbol repository.
func NewSymbolRepository(pool *pgxpool.Pool) *SymbolRepository {
	return &SymbolRepository{pool: pool}
}

// NamesByCodes returns a code → name map for the given codes. Codes without
// a master row are simply absent from the result.
func (r *SymbolRepository) NamesByCodes(ctx context.Context, codes []string) (map[string]string, error) {
	if len(codes) == 0 {
		return map[string]string{}, nil
	}

	query := `SELECT code, name FROM symbols WHERE code = ANY($1)`

	rows, err := r.pool.Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(codes))
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		names[code] = name
	}
	return names, rows.Err()
}

// UpsertBatch writes symbol rows.
func (r *SymbolRepository) UpsertBatch(ctx context.Context, symbols []Symbol) error {
	if len(symbols) == 0 {
		return nil
	}

	query := `
		INSERT INTO symbols (code, name, sector)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector
	`

	batch := &pgx.Batch{}
	for _, s := range symbols {
		batch.Queue(query, s.Code, s.Name, s.Sector)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range symbols {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert symbol: %w", err)
		}
	}
	return nil
}
