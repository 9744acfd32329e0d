package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles corporate/news event rows.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// LatestDate returns the most recent event date in the table. ok is false
// when the table is empty.
func (r *EventRepository) LatestDate(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT event_date FROM corporate_events ORDER BY event_date DESC LIMIT 1`

	var date time.Time
	err := r.pool.QueryRow(ctx, query).Scan(&date)
	if err == pgx.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest event date: %w", err)
	}
	return date, true, nil
}

// ListByDateRange retrieves all events with event_date in [from, to), newest
// first.
func (r *EventRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]CorporateEvent, error) {
	query := `
		SELECT id, code, event_date, type, title, summary, source, score_raw
		FROM corporate_events
		WHERE event_date >= $1 AND event_date < $2
		ORDER BY event_date DESC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByCode retrieves the most recent events for one instrument.
func (r *EventRepository) ListByCode(ctx context.Context, code string, limit int) ([]CorporateEvent, error) {
	query := `
		SELECT id, code, event_date, type, title, summary, source, score_raw
		FROM corporate_events
		WHERE code = $1
		ORDER BY event_date DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", code, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]CorporateEvent, error) {
	var events []CorporateEvent
	for rows.Next() {
		var e CorporateEvent
		if err := rows.Scan(&e.ID, &e.Code, &e.Date, &e.Type, &e.Title, &e.Summary, &e.Source, &e.ScoreRaw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpsertBatch writes event rows, keyed by their deterministic id.
func (r *EventRepository) UpsertBatch(ctx context.Context, events []CorporateEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO corporate_events (id, code, event_date, type, title, summary, source, score_raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			event_date = EXCLUDED.event_date,
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			score_raw = EXCLUDED.score_raw
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query, e.ID, e.Code, e.Date, e.Type, e.Title, e.Summary, e.Source, e.ScoreRaw)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert event: %w", err)
		}
	}
	return nil
}
