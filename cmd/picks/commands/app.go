package commands

import (
	"fmt"

	"github.com/wonny/kabupicks/internal/ingest"
	"github.com/wonny/kabupicks/internal/picks"
	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/internal/weights"
	"github.com/wonny/kabupicks/pkg/config"
	"github.com/wonny/kabupicks/pkg/database"
	"github.com/wonny/kabupicks/pkg/httputil"
	"github.com/wonny/kabupicks/pkg/logger"
	"github.com/wonny/kabupicks/pkg/redis"
)

// app bundles the wired components every command starts from.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client
	cache *redis.Cache

	symbolRepo  *store.SymbolRepository
	priceRepo   *store.PriceRepository
	featureRepo *store.FeatureRepository
	eventRepo   *store.EventRepository
	pickRepo    *store.PickRepository

	weights   *weights.Store
	rebuilder *picks.Rebuilder
	verifier  *picks.Verifier
	ingest    *ingest.Service
}

// newApp loads config and connects everything. Callers must Close.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		redis: redisClient,
		cache: redis.NewCache(redisClient, "kabupicks"),
	}

	a.symbolRepo = store.NewSymbolRepository(db.Pool)
	a.priceRepo = store.NewPriceRepository(db.Pool)
	a.featureRepo = store.NewFeatureRepository(db.Pool)
	a.eventRepo = store.NewEventRepository(db.Pool)
	a.pickRepo = store.NewPickRepository(db.Pool)

	path := weightsPath
	if path == "" {
		path = cfg.WeightConfigPath
	}
	a.weights = weights.NewStore(path, log)

	a.rebuilder = picks.NewRebuilder(a.weights, a.priceRepo, a.featureRepo, a.eventRepo, a.pickRepo, log)
	a.verifier = picks.NewVerifier(a.rebuilder, a.pickRepo, log)

	httpClient := httputil.New(cfg.Ingest.UserAgent, log).
		WithRateLimit(cfg.Ingest.RequestsPerSec)
	fetcher := ingest.NewNewsFetcher(httpClient, cfg.Ingest.NewsFeedURL, cfg.Ingest.SampleDataDir, log)
	a.ingest = ingest.NewService(fetcher, a.eventRepo, a.featureRepo, a.priceRepo, a.symbolRepo, a.rebuilder, log)

	return a, nil
}

// Close releases the database and redis connections.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
