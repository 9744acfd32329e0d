package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickRepository_ReplaceSnapshot(t *testing.T) {
	// Skip if running in CI without database
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "database connection failed")
	defer pool.Close()

	repo := NewPickRepository(pool)

	first := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	err = repo.ReplaceSnapshot(ctx, first, []Pick{
		{Date: first, Code: "7203", ScoreFinal: 85.5, Reasons: []byte(`[]`), Stats: []byte(`{}`)},
		{Date: first, Code: "6758", ScoreFinal: 61.2, Reasons: []byte(`[]`), Stats: []byte(`{}`)},
	})
	require.NoError(t, err)

	second := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	err = repo.ReplaceSnapshot(ctx, second, []Pick{
		{Date: second, Code: "7203", ScoreFinal: 90.1, Reasons: []byte(`[]`), Stats: []byte(`{}`)},
	})
	require.NoError(t, err)

	// The table holds one date at a time: the first snapshot must be gone.
	date, ok, err := repo.LatestDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, date.UTC())

	stale, err := repo.ListByDate(ctx, first, 0)
	require.NoError(t, err)
	assert.Empty(t, stale)

	picks, err := repo.ListByDate(ctx, second, 0)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "7203", picks[0].Code)
	assert.InDelta(t, 90.1, picks[0].ScoreFinal, 1e-9)

	filtered, err := repo.ListByDate(ctx, second, 95)
	require.NoError(t, err)
	assert.Empty(t, filtered)

	// Leave the table clean for other runs against the same database.
	require.NoError(t, repo.ReplaceSnapshot(ctx, second, nil))
}
