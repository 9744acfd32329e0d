package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabupicks/internal/picks"
	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/pkg/httputil"
	"github.com/wonny/kabupicks/pkg/logger"
)

type fakeWriters struct {
	symbols  []store.Symbol
	prices   []store.DailyPrice
	features []store.Feature
	events   []store.CorporateEvent
	err      error
}

type fakeSymbolWriter struct{ w *fakeWriters }

func (f *fakeSymbolWriter) UpsertBatch(ctx context.Context, symbols []store.Symbol) error {
	if f.w.err != nil {
		return f.w.err
	}
	f.w.symbols = append(f.w.symbols, symbols...)
	return nil
}

type fakePriceWriter struct{ w *fakeWriters }

func (f *fakePriceWriter) SaveBatch(ctx context.Context, prices []store.DailyPrice) error {
	if f.w.err != nil {
		return f.w.err
	}
	f.w.prices = append(f.w.prices, prices...)
	return nil
}

type fakeFeatureWriter struct{ w *fakeWriters }

func (f *fakeFeatureWriter) SaveBatch(ctx context.Context, features []store.Feature) error {
	if f.w.err != nil {
		return f.w.err
	}
	f.w.features = append(f.w.features, features...)
	return nil
}

type fakeEventWriter struct{ w *fakeWriters }

func (f *fakeEventWriter) UpsertBatch(ctx context.Context, events []store.CorporateEvent) error {
	if f.w.err != nil {
		return f.w.err
	}
	f.w.events = append(f.w.events, events...)
	return nil
}

type fakeRebuilder struct {
	result picks.Result
	err    error
	calls  int
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) (picks.Result, error) {
	f.calls++
	return f.result, f.err
}

func newTestService(t *testing.T, w *fakeWriters, rb *fakeRebuilder, newsJSON string) *Service {
	t.Helper()
	dir := t.TempDir()
	if newsJSON != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "news.json"), []byte(newsJSON), 0o644))
	}
	fetcher := NewNewsFetcher(httputil.New("test", logger.NewNop()), "", dir, logger.NewNop())
	return NewService(
		fetcher,
		&fakeEventWriter{w: w},
		&fakeFeatureWriter{w: w},
		&fakePriceWriter{w: w},
		&fakeSymbolWriter{w: w},
		rb,
		logger.NewNop(),
	)
}

func TestRefreshNews(t *testing.T) {
	w := &fakeWriters{}
	rb := &fakeRebuilder{result: picks.Result{
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		PicksCount: 3,
	}}
	svc := newTestService(t, w, rb, sampleNewsJSON)

	res, err := svc.RefreshNews(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.NewsCount)
	assert.Equal(t, 2, res.EventsUpserted)
	assert.Equal(t, 3, res.PicksCount)
	assert.Equal(t, "2026-03-10", res.Date)
	assert.Equal(t, 1, rb.calls)
	assert.Len(t, w.events, 2)
}

func TestRefreshNewsNoHeadlines(t *testing.T) {
	w := &fakeWriters{}
	rb := &fakeRebuilder{}
	svc := newTestService(t, w, rb, "")

	_, err := svc.RefreshNews(context.Background())
	assert.ErrorIs(t, err, ErrNoNews)
	assert.Equal(t, 0, rb.calls)
}

func TestRefreshNewsRebuildError(t *testing.T) {
	w := &fakeWriters{}
	rb := &fakeRebuilder{err: picks.ErrRebuildInProgress}
	svc := newTestService(t, w, rb, sampleNewsJSON)

	_, err := svc.RefreshNews(context.Background())
	assert.ErrorIs(t, err, picks.ErrRebuildInProgress)
}

func TestIngestBatch(t *testing.T) {
	w := &fakeWriters{}
	rb := &fakeRebuilder{result: picks.Result{
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		PicksCount: 1,
	}}
	svc := newTestService(t, w, rb, "")

	announced := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	batch := Batch{
		Symbols: []store.Symbol{{Code: "7203", Name: "トヨタ自動車"}},
		Prices: []store.DailyPrice{
			bar("7203", "2026-03-09", 100, 100, 1000, nil),
			bar("7203", "2026-03-10", 103, 105, 1500, nil),
		},
		Disclosures: []Disclosure{
			{Code: "7203", Title: "業績予想の上方修正", AnnouncedAt: announced, Source: "tdnet"},
		},
		News: []NewsItem{
			{Code: "7203", Title: "最高益", PublishedAt: announced, Polarity: PolarityPositive},
		},
	}

	res, err := svc.Ingest(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Symbols)
	assert.Equal(t, 2, res.Prices)
	assert.Equal(t, res.Features, len(w.features))
	assert.Equal(t, 2, res.Events, "one disclosure plus one news item")
	assert.Equal(t, 1, res.PicksCount)
	assert.Equal(t, "2026-03-10", res.Date)
	assert.Equal(t, 1, rb.calls)

	// The detection rules ran over the freshly computed features.
	assert.NotEmpty(t, w.features)
	assert.Len(t, w.events, 2)
}
