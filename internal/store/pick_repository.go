package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PickRepository handles the ranked pick snapshot. The table holds at most
// one date at a time: every rebuild replaces the full contents.
type PickRepository struct {
	pool *pgxpool.Pool
}

// NewPickRepository creates a new pick repository.
func NewPickRepository(pool *pgxpool.Pool) *PickRepository {
	return &PickRepository{pool: pool}
}

// ReplaceSnapshot deletes every existing pick row and inserts the new
// snapshot in a single transaction. A failure partway leaves the previous
// snapshot intact.
//
// This intentionally discards history. Switching to per-date retention only
// needs a change here, not in callers.
func (r *PickRepository) ReplaceSnapshot(ctx context.Context, date time.Time, picks []Pick) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM picks`); err != nil {
		return fmt.Errorf("clear pick snapshot: %w", err)
	}

	query := `
		INSERT INTO picks (pick_date, code, score_final, reasons, stats)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range picks {
		if _, err := tx.Exec(ctx, query, date, p.Code, p.ScoreFinal, p.Reasons, p.Stats); err != nil {
			return fmt.Errorf("insert pick %s: %w", p.Code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot transaction: %w", err)
	}
	return nil
}

// LatestDate returns the snapshot date. ok is false when no snapshot has
// been built yet.
func (r *PickRepository) LatestDate(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT pick_date FROM picks ORDER BY pick_date DESC LIMIT 1`

	var date time.Time
	err := r.pool.QueryRow(ctx, query).Scan(&date)
	if err == pgx.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest pick date: %w", err)
	}
	return date, true, nil
}

// ListByDate retrieves picks for a date at or above a minimum score, best
// first.
func (r *PickRepository) ListByDate(ctx context.Context, date time.Time, minScore float64) ([]Pick, error) {
	query := `
		SELECT pick_date, code, score_final, reasons, stats
		FROM picks
		WHERE pick_date = $1 AND score_final >= $2
		ORDER BY score_final DESC
	`

	rows, err := r.pool.Query(ctx, query, date, minScore)
	if err != nil {
		return nil, fmt.Errorf("query picks: %w", err)
	}
	defer rows.Close()

	return scanPicks(rows)
}

func scanPicks(rows pgx.Rows) ([]Pick, error) {
	var picks []Pick
	for rows.Next() {
		var p Pick
		if err := rows.Scan(&p.Date, &p.Code, &p.ScoreFinal, &p.Reasons, &p.Stats); err != nil {
			return nil, fmt.Errorf("scan pick row: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}
