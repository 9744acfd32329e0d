package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/kabupicks/internal/picks"
	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/internal/weights"
	"github.com/wonny/kabupicks/pkg/logger"
	"github.com/wonny/kabupicks/pkg/redis"
)

var dateKeyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// statFeatureNames are the metrics surfaced per pick item.
var statFeatureNames = []string{"volume_z", "gap_pct", "supply_demand_proxy", "high20d_dist_pct"}

const picksCacheTTL = 60 * time.Second

// PicksHandler serves the ranked pick snapshot.
type PicksHandler struct {
	picksRepo    *store.PickRepository
	symbolRepo   *store.SymbolRepository
	eventRepo    *store.EventRepository
	featureRepo  *store.FeatureRepository
	priceRepo    *store.PriceRepository
	weightsStore *weights.Store
	rebuilder    *picks.Rebuilder
	cache        *redis.Cache
	logger       *logger.Logger
}

// NewPicksHandler creates a picks handler.
func NewPicksHandler(
	picksRepo *store.PickRepository,
	symbolRepo *store.SymbolRepository,
	eventRepo *store.EventRepository,
	featureRepo *store.FeatureRepository,
	priceRepo *store.PriceRepository,
	weightsStore *weights.Store,
	rebuilder *picks.Rebuilder,
	cache *redis.Cache,
	log *logger.Logger,
) *PicksHandler {
	return &PicksHandler{
		picksRepo:    picksRepo,
		symbolRepo:   symbolRepo,
		eventRepo:    eventRepo,
		featureRepo:  featureRepo,
		priceRepo:    priceRepo,
		weightsStore: weightsStore,
		rebuilder:    rebuilder,
		cache:        cache,
		logger:       log,
	}
}

// PickEventItem is one event attached to a pick.
type PickEventItem struct {
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Source   string   `json:"source"`
	ScoreRaw *float64 `json:"scoreRaw"`
}

// PickItem is one entry of the picks response.
type PickItem struct {
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	Score          float64             `json:"score"`
	Reasons        json.RawMessage     `json:"reasons"`
	Stats          map[string]*float64 `json:"stats"`
	LastClose      *float64            `json:"lastClose"`
	High20dDistPct *float64            `json:"high20dDistPct"`
	Events         []PickEventItem     `json:"events"`
}

// PicksResponse is the GET /api/picks payload.
type PicksResponse struct {
	Date    string          `json:"date"`
	Items   []PickItem      `json:"items"`
	Weights *WeightsPayload `json:"weights"`
}

// WeightsPayload mirrors the active weight configuration.
type WeightsPayload struct {
	Event    map[scoring.Tag]float64 `json:"event"`
	Tape     map[string]float64      `json:"tape"`
	MinScore float64                 `json:"minScore"`
}

func weightsPayload(cfg *scoring.WeightConfig) *WeightsPayload {
	return &WeightsPayload{
		Event: cfg.Event,
		Tape: map[string]float64{
			"volume_z":            cfg.Tape.VolumeZ,
			"gap_pct":             cfg.Tape.GapPct,
			"supply_demand_proxy": cfg.Tape.SupplyDemandProxy,
		},
		MinScore: cfg.MinScore,
	}
}

// GetPicks returns the pick snapshot for a date, enriched with symbol
// names, same-day events and tape stats.
// GET /api/picks?date=YYYY-MM-DD&minScore=70&type=GUIDE_UP
func (h *PicksHandler) GetPicks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := h.weightsStore.Get()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load weight config")
		respondError(w, http.StatusInternalServerError, "Failed to load weight configuration")
		return
	}

	requestedDate := r.URL.Query().Get("date")
	if requestedDate != "" && !dateKeyRe.MatchString(requestedDate) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	minScore := cfg.MinScore
	if raw := r.URL.Query().Get("minScore"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			respondError(w, http.StatusBadRequest, "minScore must be a number between 0 and 100")
			return
		}
		minScore = parsed
	}

	eventType := strings.ToUpper(r.URL.Query().Get("type"))
	if eventType != "" && !validEventType(eventType) {
		respondError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	// The snapshot holds a single date; a request for any other day falls
	// back to what is actually stored.
	latest, haveSnapshot, err := h.picksRepo.LatestDate(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve snapshot date")
		respondError(w, http.StatusInternalServerError, "Failed to resolve snapshot date")
		return
	}

	effectiveDate := requestedDate
	fallbackApplied := false
	if haveSnapshot {
		latestKey := latest.UTC().Format("2006-01-02")
		if requestedDate == "" {
			effectiveDate = latestKey
		} else if requestedDate != latestKey {
			effectiveDate = latestKey
			fallbackApplied = true
		}
	} else if requestedDate == "" {
		effectiveDate = time.Now().UTC().Format("2006-01-02")
	}

	if requestedDate != "" {
		w.Header().Set("X-Requested-Date", requestedDate)
	}
	w.Header().Set("X-Effective-Date", effectiveDate)
	if fallbackApplied {
		w.Header().Set("X-Date-Fallback", "1")
	}

	cacheKey := "picks:" + effectiveDate + ":" + strconv.FormatFloat(minScore, 'f', -1, 64) + ":" + eventType
	var cached PicksResponse
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	response, err := h.buildResponse(r, effectiveDate, minScore, eventType, cfg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build picks response")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve picks")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, response, picksCacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache picks response")
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *PicksHandler) buildResponse(r *http.Request, dateKey string, minScore float64, eventType string, cfg *scoring.WeightConfig) (*PicksResponse, error) {
	ctx := r.Context()

	targetDate, err := time.Parse("2006-01-02", dateKey)
	if err != nil {
		return nil, err
	}
	nextDate := targetDate.AddDate(0, 0, 1)

	rows, err := h.picksRepo.ListByDate(ctx, targetDate, minScore)
	if err != nil {
		return nil, err
	}

	response := &PicksResponse{
		Date:    dateKey,
		Items:   []PickItem{},
		Weights: weightsPayload(cfg),
	}
	if len(rows) == 0 {
		return response, nil
	}

	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}

	names, err := h.symbolRepo.NamesByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	events, err := h.eventRepo.ListByDateRange(ctx, targetDate, nextDate)
	if err != nil {
		return nil, err
	}
	eventsByCode := make(map[string][]store.CorporateEvent)
	for _, ev := range events {
		eventsByCode[ev.Code] = append(eventsByCode[ev.Code], ev)
	}

	features, err := h.featureRepo.ListByCodesAndDateRange(ctx, codes, statFeatureNames, targetDate, nextDate)
	if err != nil {
		return nil, err
	}
	featuresByCode := make(map[string]map[string]float64)
	for _, f := range features {
		bucket := featuresByCode[f.Code]
		if bucket == nil {
			bucket = make(map[string]float64)
			featuresByCode[f.Code] = bucket
		}
		bucket[f.Name] = f.Value
	}

	prices, err := h.priceRepo.ListByDateRange(ctx, targetDate, nextDate)
	if err != nil {
		return nil, err
	}
	closeByCode := make(map[string]float64, len(prices))
	for _, p := range prices {
		closeByCode[p.Code] = p.Close
	}

	for _, row := range rows {
		item := PickItem{
			Code:    row.Code,
			Name:    row.Code,
			Score:   row.ScoreFinal,
			Reasons: json.RawMessage(row.Reasons),
			Stats:   buildItemStats(row.Stats, featuresByCode[row.Code]),
			Events:  []PickEventItem{},
		}
		if name, ok := names[row.Code]; ok && name != "" {
			item.Name = name
		}
		if lastClose, ok := closeByCode[row.Code]; ok {
			c := lastClose
			item.LastClose = &c
		}
		if bucket := featuresByCode[row.Code]; bucket != nil {
			if v, ok := bucket["high20d_dist_pct"]; ok {
				dist := v
				item.High20dDistPct = &dist
			}
		}
		for _, ev := range eventsByCode[row.Code] {
			item.Events = append(item.Events, PickEventItem{
				ID:       ev.ID,
				Date:     ev.Date.UTC().Format(time.RFC3339),
				Type:     ev.Type,
				Title:    ev.Title,
				Summary:  ev.Summary,
				Source:   ev.Source,
				ScoreRaw: ev.ScoreRaw,
			})
		}

		if eventType != "" && !hasEventType(item.Events, eventType) {
			continue
		}
		response.Items = append(response.Items, item)
	}

	return response, nil
}

// buildItemStats merges the stats persisted with the pick and the feature
// rows of the day; the persisted value wins.
func buildItemStats(raw []byte, featureBucket map[string]float64) map[string]*float64 {
	stats := make(map[string]*float64)
	var stored map[string]*float64
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored); err != nil {
			stored = nil
		}
	}

	for _, name := range []string{"volume_z", "gap_pct", "supply_demand_proxy"} {
		if stored != nil {
			if v, ok := stored[name]; ok && v != nil {
				stats[name] = v
				continue
			}
		}
		if featureBucket != nil {
			if v, ok := featureBucket[name]; ok {
				value := v
				stats[name] = &value
				continue
			}
		}
		stats[name] = nil
	}
	return stats
}

func validEventType(raw string) bool {
	switch scoring.EventType(raw) {
	case scoring.EventTypeGuideUp, scoring.EventTypeEarnings, scoring.EventTypeTdnet,
		scoring.EventTypeNews, scoring.EventTypeVolSpike:
		return true
	}
	return false
}

func hasEventType(events []PickEventItem, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

// Rebuild triggers a snapshot rebuild.
// POST /api/picks/rebuild
func (h *PicksHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.rebuilder.Rebuild(ctx)
	if errors.Is(err, picks.ErrRebuildInProgress) {
		respondError(w, http.StatusConflict, "A rebuild is already running")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Rebuild failed")
		respondError(w, http.StatusInternalServerError, "Rebuild failed")
		return
	}

	// The snapshot changed; cached responses are stale.
	if err := h.cache.DeletePrefix(ctx, "picks:"); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate picks cache")
	}

	respondJSON(w, http.StatusOK, result)
}
