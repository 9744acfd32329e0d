package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/pkg/logger"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100

	// Price history window returned per symbol.
	priceHistoryDays = 90
)

// SymbolsHandler serves per-instrument detail endpoints.
type SymbolsHandler struct {
	eventRepo *store.EventRepository
	priceRepo *store.PriceRepository
	logger    *logger.Logger
}

// NewSymbolsHandler creates a symbols handler.
func NewSymbolsHandler(eventRepo *store.EventRepository, priceRepo *store.PriceRepository, log *logger.Logger) *SymbolsHandler {
	return &SymbolsHandler{
		eventRepo: eventRepo,
		priceRepo: priceRepo,
		logger:    log,
	}
}

// GetEvents returns recent corporate events for one instrument, newest
// first.
// GET /api/symbols/{code}/events?limit=20
func (h *SymbolsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["code"]))
	if code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxEventLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	events, err := h.eventRepo.ListByCode(ctx, code, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list symbol events")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	items := make([]PickEventItem, 0, len(events))
	for _, ev := range events {
		items = append(items, PickEventItem{
			ID:       ev.ID,
			Date:     ev.Date.UTC().Format(time.RFC3339),
			Type:     ev.Type,
			Title:    ev.Title,
			Summary:  ev.Summary,
			Source:   ev.Source,
			ScoreRaw: ev.ScoreRaw,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":   code,
		"events": items,
	})
}

// priceItem is one bar of the price history payload.
type priceItem struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume int64    `json:"volume"`
	VWAP   *float64 `json:"vwap"`
}

// GetPrices returns the recent daily bars for one instrument.
// GET /api/symbols/{code}/prices
func (h *SymbolsHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["code"]))
	if code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	to := time.Now().UTC().AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -priceHistoryDays)

	prices, err := h.priceRepo.ListByCode(ctx, code, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list symbol prices")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve prices")
		return
	}

	items := make([]priceItem, 0, len(prices))
	for _, p := range prices {
		items = append(items, priceItem{
			Date:   p.Date.UTC().Format("2006-01-02"),
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
			VWAP:   p.VWAP,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":   code,
		"prices": items,
	})
}
