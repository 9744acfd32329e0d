package ingest

import (
	"context"
	"fmt"

	"github.com/wonny/kabupicks/internal/picks"
	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/pkg/logger"
)

// EventWriter persists detected corporate events.
type EventWriter interface {
	UpsertBatch(ctx context.Context, events []store.CorporateEvent) error
}

// FeatureWriter persists computed tape metrics.
type FeatureWriter interface {
	SaveBatch(ctx context.Context, features []store.Feature) error
}

// PriceWriter persists daily price bars.
type PriceWriter interface {
	SaveBatch(ctx context.Context, prices []store.DailyPrice) error
}

// SymbolWriter persists instrument metadata.
type SymbolWriter interface {
	UpsertBatch(ctx context.Context, symbols []store.Symbol) error
}

// Rebuilder triggers a pick snapshot rebuild after data changes.
type Rebuilder interface {
	Rebuild(ctx context.Context) (picks.Result, error)
}

// Service ties fetching, rule evaluation and persistence together.
type Service struct {
	news      *NewsFetcher
	events    EventWriter
	features  FeatureWriter
	prices    PriceWriter
	symbols   SymbolWriter
	rebuilder Rebuilder
	log       *logger.Logger
}

// NewService creates an ingest service.
func NewService(
	news *NewsFetcher,
	events EventWriter,
	features FeatureWriter,
	prices PriceWriter,
	symbols SymbolWriter,
	rebuilder Rebuilder,
	log *logger.Logger,
) *Service {
	return &Service{
		news:      news,
		events:    events,
		features:  features,
		prices:    prices,
		symbols:   symbols,
		rebuilder: rebuilder,
		log:       log,
	}
}

// RefreshResult reports one news refresh cycle.
type RefreshResult struct {
	NewsCount      int    `json:"newsCount"`
	EventsUpserted int    `json:"eventsUpserted"`
	PicksCount     int    `json:"picksCount"`
	Date           string `json:"date"`
}

// RefreshNews fetches headlines, upserts the derived NEWS events and
// rebuilds the pick snapshot.
func (s *Service) RefreshNews(ctx context.Context) (RefreshResult, error) {
	items, err := s.news.Fetch(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("fetch news: %w", err)
	}

	events := NewsEvents(items)
	if err := s.events.UpsertBatch(ctx, events); err != nil {
		return RefreshResult{}, fmt.Errorf("upsert news events: %w", err)
	}

	res, err := s.rebuilder.Rebuild(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("rebuild after news refresh: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"news":  len(items),
		"picks": res.PicksCount,
		"date":  res.DateKey(),
	}).Info("News refreshed")

	return RefreshResult{
		NewsCount:      len(items),
		EventsUpserted: len(events),
		PicksCount:     res.PicksCount,
		Date:           res.DateKey(),
	}, nil
}

// Batch is one full data drop: instruments, their price history and the raw
// items to run the detection rules over.
type Batch struct {
	Symbols     []store.Symbol
	Prices      []store.DailyPrice
	Disclosures []Disclosure
	Earnings    []Disclosure
	News        []NewsItem
}

// IngestResult reports one full ingest cycle.
type IngestResult struct {
	Symbols    int    `json:"symbols"`
	Prices     int    `json:"prices"`
	Features   int    `json:"features"`
	Events     int    `json:"events"`
	PicksCount int    `json:"picksCount"`
	Date       string `json:"date"`
}

// Ingest persists a full batch: computes tape metrics from the price
// history, runs every detection rule, stores all rows and rebuilds the
// snapshot.
func (s *Service) Ingest(ctx context.Context, batch Batch) (IngestResult, error) {
	features := ComputeFeatures(batch.Prices)

	var events []store.CorporateEvent
	events = append(events, DetectDisclosures(batch.Disclosures)...)
	events = append(events, DetectEarnings(batch.Earnings)...)
	events = append(events, NewsEvents(batch.News)...)
	events = append(events, DetectVolumeSpikes(features)...)

	if len(batch.Symbols) > 0 {
		if err := s.symbols.UpsertBatch(ctx, batch.Symbols); err != nil {
			return IngestResult{}, fmt.Errorf("upsert symbols: %w", err)
		}
	}
	if len(batch.Prices) > 0 {
		if err := s.prices.SaveBatch(ctx, batch.Prices); err != nil {
			return IngestResult{}, fmt.Errorf("save prices: %w", err)
		}
	}
	if len(features) > 0 {
		if err := s.features.SaveBatch(ctx, features); err != nil {
			return IngestResult{}, fmt.Errorf("save features: %w", err)
		}
	}
	if len(events) > 0 {
		if err := s.events.UpsertBatch(ctx, events); err != nil {
			return IngestResult{}, fmt.Errorf("upsert events: %w", err)
		}
	}

	res, err := s.rebuilder.Rebuild(ctx)
	if err != nil {
		return IngestResult{}, fmt.Errorf("rebuild after ingest: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"symbols":  len(batch.Symbols),
		"prices":   len(batch.Prices),
		"features": len(features),
		"events":   len(events),
		"picks":    res.PicksCount,
	}).Info("Batch ingested")

	return IngestResult{
		Symbols:    len(batch.Symbols),
		Prices:     len(batch.Prices),
		Features:   len(features),
		Events:     len(events),
		PicksCount: res.PicksCount,
		Date:       res.DateKey(),
	}, nil
}
