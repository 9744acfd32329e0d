package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceRepository handles daily price rows.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// LatestDate returns the most recent trade date in the table. ok is false
// when the table is empty.
func (r *PriceRepository) LatestDate(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT trade_date FROM daily_prices ORDER BY trade_date DESC LIMIT 1`

	var date time.Time
	err := r.pool.QueryRow(ctx, query).Scan(&date)
	if err == pgx.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest price date: %w", err)
	}
	return date, true, nil
}

// ListByDateRange retrieves all prices with trade_date in [from, to).
func (r *PriceRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]DailyPrice, error) {
	query := `
		SELECT code, trade_date, open_price, high_price, low_price, close_price, volume, vwap
		FROM daily_prices
		WHERE trade_date >= $1 AND trade_date < $2
		ORDER BY code, trade_date
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Code, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.VWAP); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// ListByCode retrieves prices for one instrument in [from, to), oldest first.
func (r *PriceRepository) ListByCode(ctx context.Context, code string, from, to time.Time) ([]DailyPrice, error) {
	query := `
		SELECT code, trade_date, open_price, high_price, low_price, close_price, volume, vwap
		FROM daily_prices
		WHERE code = $1 AND trade_date >= $2 AND trade_date < $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices for %s: %w", code, err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Code, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.VWAP); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// SaveBatch upserts price rows.
func (r *PriceRepository) SaveBatch(ctx context.Context, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_prices (code, trade_date, open_price, high_price, low_price, close_price, volume, vwap)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			vwap = EXCLUDED.vwap
	`

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(query, p.Code, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, p.VWAP)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range prices {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert price: %w", err)
		}
	}
	return nil
}
