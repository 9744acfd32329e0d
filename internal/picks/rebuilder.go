// Package picks builds the daily ranked pick snapshot: it enumerates
// candidate instruments for the target date, scores each one, and atomically
// replaces the persisted ranking.
package picks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/internal/weights"
	"github.com/wonny/kabupicks/pkg/logger"
)

// ErrRebuildInProgress is returned when a rebuild is started while another
// one is still running. Concurrent rebuilds must never interleave their
// writes, so the late caller is rejected rather than queued.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

const (
	// Events this many days before the target date still participate in
	// scoring and the recency penalty.
	lookbackDays = 10

	scoreWorkers = 4
)

// PriceReader reads daily price rows for the rebuild window.
type PriceReader interface {
	LatestDate(ctx context.Context) (time.Time, bool, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]store.DailyPrice, error)
}

// FeatureReader reads derived-metric rows for the rebuild window.
type FeatureReader interface {
	ListByDateRange(ctx context.Context, from, to time.Time) ([]store.Feature, error)
}

// EventReader reads corporate event rows for the rebuild window.
type EventReader interface {
	LatestDate(ctx context.Context) (time.Time, bool, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]store.CorporateEvent, error)
}

// SnapshotWriter replaces the persisted pick snapshot.
type SnapshotWriter interface {
	ReplaceSnapshot(ctx context.Context, date time.Time, picks []store.Pick) error
}

// Rebuilder runs one full rebuild cycle per call.
type Rebuilder struct {
	weights  *weights.Store
	prices   PriceReader
	features FeatureReader
	events   EventReader
	snapshot SnapshotWriter
	log      *logger.Logger

	// Guards the whole cycle: at most one rebuild may be in flight.
	mu sync.Mutex
}

// NewRebuilder creates a rebuilder.
func NewRebuilder(
	w *weights.Store,
	prices PriceReader,
	features FeatureReader,
	events EventReader,
	snapshot SnapshotWriter,
	log *logger.Logger,
) *Rebuilder {
	return &Rebuilder{
		weights:  w,
		prices:   prices,
		features: features,
		events:   events,
		snapshot: snapshot,
		log:      log,
	}
}

// Result reports the outcome of one rebuild.
type Result struct {
	Date       time.Time `json:"-"`
	PicksCount int       `json:"picksCount"`
}

// DateKey returns the target date as YYYY-MM-DD.
func (r Result) DateKey() string {
	return r.Date.UTC().Format("2006-01-02")
}

// MarshalJSON renders the date as its key.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date       string `json:"date"`
		PicksCount int    `json:"picksCount"`
	}{
		Date:       r.DateKey(),
		PicksCount: r.PicksCount,
	})
}

// Rebuild determines the target date, scores every candidate and atomically
// replaces the pick snapshot. A concurrent call fails with
// ErrRebuildInProgress.
func (r *Rebuilder) Rebuild(ctx context.Context) (Result, error) {
	if !r.mu.TryLock() {
		return Result{}, ErrRebuildInProgress
	}
	defer r.mu.Unlock()

	// Weight configuration is loaded before any storage access; a broken
	// config fails the rebuild fast.
	cfg, err := r.weights.Get()
	if err != nil {
		return Result{}, fmt.Errorf("load weights: %w", err)
	}

	targetStart, ok, err := r.selectTargetDate(ctx)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Nothing stored yet. A no-op, not an error.
		r.log.Info("No tape or event data available, skipping rebuild")
		return Result{Date: startOfUTCDay(time.Now()), PicksCount: 0}, nil
	}

	targetEnd := targetStart.AddDate(0, 0, 1)
	lookbackStart := targetStart.AddDate(0, 0, -lookbackDays)

	win, err := r.fetchWindows(ctx, targetStart, targetEnd, lookbackStart)
	if err != nil {
		return Result{}, err
	}

	candidates := win.candidateCodes()
	picks := r.scoreCandidates(ctx, cfg, win, candidates, targetStart)

	sort.Slice(picks, func(i, j int) bool { return picks[i].Code < picks[j].Code })

	if err := r.snapshot.ReplaceSnapshot(ctx, targetStart, picks); err != nil {
		return Result{}, fmt.Errorf("%w: replace snapshot: %w", store.ErrUnavailable, err)
	}

	r.log.WithFields(map[string]interface{}{
		"date":       targetStart.Format("2006-01-02"),
		"candidates": len(candidates),
		"picks":      len(picks),
	}).Info("Pick snapshot rebuilt")

	return Result{Date: targetStart, PicksCount: len(picks)}, nil
}

// selectTargetDate returns the later of the most recent price date and the
// most recent event date. ok is false when both series are empty.
func (r *Rebuilder) selectTargetDate(ctx context.Context) (time.Time, bool, error) {
	priceDate, havePrice, err := r.prices.LatestDate(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: latest price date: %w", store.ErrUnavailable, err)
	}
	eventDate, haveEvent, err := r.events.LatestDate(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: latest event date: %w", store.ErrUnavailable, err)
	}

	switch {
	case !havePrice && !haveEvent:
		return time.Time{}, false, nil
	case !haveEvent:
		return startOfUTCDay(priceDate), true, nil
	case !havePrice:
		return startOfUTCDay(eventDate), true, nil
	case eventDate.After(priceDate):
		return startOfUTCDay(eventDate), true, nil
	default:
		return startOfUTCDay(priceDate), true, nil
	}
}

// window holds the fetched input rows for one rebuild.
type window struct {
	prices   []store.DailyPrice
	features []store.Feature
	events   []store.CorporateEvent
}

// fetchWindows issues the three independent reads in parallel.
func (r *Rebuilder) fetchWindows(ctx context.Context, targetStart, targetEnd, lookbackStart time.Time) (*window, error) {
	var win window
	var wg sync.WaitGroup
	errs := make([]error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		win.prices, errs[0] = r.prices.ListByDateRange(ctx, targetStart, targetEnd)
	}()
	go func() {
		defer wg.Done()
		win.features, errs[1] = r.features.ListByDateRange(ctx, targetStart, targetEnd)
	}()
	go func() {
		defer wg.Done()
		win.events, errs[2] = r.events.ListByDateRange(ctx, lookbackStart, targetEnd)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: fetch rebuild window: %w", store.ErrUnavailable, err)
		}
	}
	return &win, nil
}

// candidateCodes is the union of instrument codes across the three inputs.
func (w *window) candidateCodes() []string {
	seen := make(map[string]struct{})
	for _, p := range w.prices {
		seen[p.Code] = struct{}{}
	}
	for _, f := range w.features {
		seen[f.Code] = struct{}{}
	}
	for _, e := range w.events {
		seen[e.Code] = struct{}{}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// scoreCandidates scores candidates concurrently and returns the rows that
// clear the minimum score. Per-candidate results are independent, so order
// of execution does not matter.
func (r *Rebuilder) scoreCandidates(
	ctx context.Context,
	cfg *scoring.WeightConfig,
	win *window,
	candidates []string,
	targetStart time.Time,
) []store.Pick {
	featureMap := buildFeatureMap(win.features)
	closeMap := buildCloseMap(win.prices)
	eventsByCode := groupEventsByCode(win.events)

	jobs := make(chan string)
	results := make(chan store.Pick, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < scoreWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				pick, ok := r.scoreOne(cfg, code, featureMap[code], closeMap, eventsByCode[code], targetStart)
				if ok {
					results <- pick
				}
			}
		}()
	}

	for _, code := range candidates {
		select {
		case <-ctx.Done():
		case jobs <- code:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	picks := make([]store.Pick, 0, len(results))
	for pick := range results {
		picks = append(picks, pick)
	}
	return picks
}

// scoreOne scores one candidate. ok is false when the candidate is gated
// out, fails validation, or misses the score threshold.
func (r *Rebuilder) scoreOne(
	cfg *scoring.WeightConfig,
	code string,
	featureBucket map[string]float64,
	closeMap map[string]float64,
	rawEvents []store.CorporateEvent,
	targetStart time.Time,
) (store.Pick, bool) {
	signals := classifyEvents(rawEvents)

	// Price data alone is not enough to be considered: a candidate needs a
	// qualifying event in the lookback window or a feature record on the
	// target day.
	if len(signals) == 0 && featureBucket == nil {
		return store.Pick{}, false
	}

	tape := scoring.TapeSignal{}
	if v, ok := featureBucket[scoring.TapeTagVolumeZ]; ok {
		tape.VolumeZ = scoring.Float(v)
	}
	if v, ok := featureBucket[scoring.TapeTagGapPct]; ok {
		tape.GapPct = scoring.Float(v)
	}
	if v, ok := featureBucket[scoring.TapeTagSupplyDemandProxy]; ok {
		tape.SupplyDemandProxy = scoring.Float(v)
	}
	if v, ok := featureBucket["vwap_dev_pct"]; ok {
		tape.VWAPDeviationPct = scoring.Float(v)
	}
	if v, ok := featureBucket["high20d_dist_pct"]; ok {
		tape.High20dDistPct = scoring.Float(v)
	}
	if v, ok := closeMap[code]; ok {
		tape.Close = scoring.Float(v)
	}

	penalty := RecentNegativePenalty(signals, targetStart)

	result, err := scoring.Score(scoring.Input{
		Tape:      tape,
		Events:    signals,
		Weights:   *cfg,
		Penalties: scoring.Penalties{RecentNegative: penalty},
	})
	if err != nil {
		// A malformed candidate fails alone, not the whole rebuild.
		r.log.WithFields(map[string]interface{}{
			"code": code,
		}).WithError(err).Warn("Skipping candidate with invalid scoring input")
		return store.Pick{}, false
	}

	if result.Normalized < cfg.MinScore {
		return store.Pick{}, false
	}

	reasons, err := json.Marshal(result.Reasons)
	if err != nil {
		r.log.WithError(err).Error("Failed to serialize score reasons")
		return store.Pick{}, false
	}
	stats, err := json.Marshal(buildStats(tape))
	if err != nil {
		r.log.WithError(err).Error("Failed to serialize pick stats")
		return store.Pick{}, false
	}

	return store.Pick{
		Date:       targetStart,
		Code:       code,
		ScoreFinal: math.Round(result.Normalized*100) / 100,
		Reasons:    reasons,
		Stats:      stats,
	}, true
}

// classifyEvents maps raw stored events to scoring signals, dropping the
// unclassifiable ones.
func classifyEvents(rawEvents []store.CorporateEvent) []scoring.EventSignal {
	signals := make([]scoring.EventSignal, 0, len(rawEvents))
	for _, e := range rawEvents {
		tag, ok := scoring.Classify(scoring.EventType(e.Type), e.ScoreRaw)
		if !ok {
			continue
		}
		var score *float64
		if e.ScoreRaw != nil {
			clamped := math.Min(math.Max(*e.ScoreRaw, 0), 1)
			score = &clamped
		}
		signals = append(signals, scoring.EventSignal{
			Tag:        tag,
			Type:       scoring.EventType(e.Type),
			Title:      e.Title,
			Summary:    e.Summary,
			Source:     e.Source,
			Score:      score,
			OccurredAt: e.Date,
		})
	}
	return signals
}

// pickStats is the compact numeric snapshot persisted per pick.
type pickStats struct {
	VolumeZ           *float64 `json:"volume_z"`
	GapPct            *float64 `json:"gap_pct"`
	SupplyDemandProxy *float64 `json:"supply_demand_proxy"`
}

func buildStats(tape scoring.TapeSignal) pickStats {
	return pickStats{
		VolumeZ:           finiteOrNil(tape.VolumeZ),
		GapPct:            finiteOrNil(tape.GapPct),
		SupplyDemandProxy: finiteOrNil(tape.SupplyDemandProxy),
	}
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

func buildFeatureMap(features []store.Feature) map[string]map[string]float64 {
	m := make(map[string]map[string]float64)
	for _, f := range features {
		bucket := m[f.Code]
		if bucket == nil {
			bucket = make(map[string]float64)
			m[f.Code] = bucket
		}
		bucket[f.Name] = f.Value
	}
	return m
}

func groupEventsByCode(events []store.CorporateEvent) map[string][]store.CorporateEvent {
	m := make(map[string][]store.CorporateEvent)
	for _, e := range events {
		m[e.Code] = append(m[e.Code], e)
	}
	return m
}

func buildCloseMap(prices []store.DailyPrice) map[string]float64 {
	m := make(map[string]float64, len(prices))
	for _, p := range prices {
		m[p.Code] = p.Close
	}
	return m
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
