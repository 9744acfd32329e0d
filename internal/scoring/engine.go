package scoring

import "time"

// Hard filter thresholds.
const (
	// Instruments trading more than 15% below their 20-day high are cut.
	high20dDistMin = -0.15
	// Penny-stock exclusion, in quote-currency minor units.
	closeMin = 100.0
)

// Filter reason tags.
const (
	FilterTagMissingSignals = "missing_signals"
	FilterTagHigh20dDist    = "high20d_dist_pct"
	FilterTagClosePrice     = "close_price"
)

// Score aggregates normalized tape and event contributions into a bounded
// 0..100 score with a full reason trail.
func Score(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	reasons := make([]Reason, 0, len(in.Events)+4)
	weightedTotal := 0.0
	weightSum := 0.0

	// Tape contributions. Zero-weighted metrics are dropped entirely: no
	// reason entry and no weight consumed.
	for _, contrib := range NormalizeTape(in.Tape) {
		tagWeight := in.Weights.TapeWeight(contrib.Tag)
		if tagWeight == 0 {
			continue
		}
		raw := contrib.Raw
		reasons = append(reasons, Reason{
			Kind:    ReasonTape,
			Tag:     contrib.Tag,
			Weight:  tagWeight,
			Applied: contrib.Normalized * tagWeight,
			Details: &ReasonDetails{Raw: &raw},
		})
		weightedTotal += contrib.Normalized * tagWeight
		weightSum += tagWeight
	}

	// Event contributions.
	for _, ev := range in.Events {
		weight := in.Weights.Event[ev.Tag]
		multiplier := 1.0
		if ev.WeightMultiplier != nil {
			multiplier = *ev.WeightMultiplier
		}
		appliedWeight := weight * multiplier
		if appliedWeight == 0 {
			continue
		}
		normalized := NormalizeEventScore(ev.Score)
		reasons = append(reasons, Reason{
			Kind:    ReasonEvent,
			Tag:     string(ev.Tag),
			Weight:  appliedWeight,
			Applied: normalized * appliedWeight,
			Details: &ReasonDetails{
				Source:     ev.Source,
				Title:      ev.Title,
				OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339),
			},
		})
		weightedTotal += normalized * appliedWeight
		weightSum += appliedWeight
	}

	// No usable signal survived weighting. The only early-exit path.
	if weightSum == 0 {
		reasons = append(reasons, Reason{
			Kind:    ReasonFilter,
			Tag:     FilterTagMissingSignals,
			Weight:  0,
			Applied: 0,
			Details: &ReasonDetails{Message: "no signals available to score"},
		})
		return Result{
			Raw:           0,
			Normalized:    0,
			PassedFilters: false,
			Reasons:       reasons,
		}, nil
	}

	baseScore := weightedTotal / weightSum

	penalty := clamp(in.Penalties.RecentNegative, 0, 1)
	if penalty > 0 {
		reasons = append(reasons, Reason{
			Kind:    ReasonPenalty,
			Tag:     "recent_negative_event",
			Weight:  penalty,
			Applied: -penalty,
		})
	}
	penalized := baseScore - penalty
	if penalized < 0 {
		penalized = 0
	}

	// Hard filters. Each fires independently and appends its own reason.
	passedFilters := true
	if in.Tape.High20dDistPct != nil && *in.Tape.High20dDistPct < high20dDistMin {
		passedFilters = false
		value := *in.Tape.High20dDistPct
		reasons = append(reasons, Reason{
			Kind:    ReasonFilter,
			Tag:     FilterTagHigh20dDist,
			Weight:  0,
			Applied: 0,
			Details: &ReasonDetails{Value: &value},
		})
	}
	if in.Tape.Close != nil && *in.Tape.Close < closeMin {
		passedFilters = false
		value := *in.Tape.Close
		reasons = append(reasons, Reason{
			Kind:    ReasonFilter,
			Tag:     FilterTagClosePrice,
			Weight:  0,
			Applied: 0,
			Details: &ReasonDetails{Value: &value},
		})
	}

	normalized := 0.0
	if passedFilters {
		normalized = clamp(penalized, 0, 1) * 100
	}

	return Result{
		Raw:           penalized,
		Normalized:    normalized,
		PassedFilters: passedFilters,
		Reasons:       reasons,
	}, nil
}

// TapeWeight looks up the configured weight for a tape reason tag.
func (w *WeightConfig) TapeWeight(tag string) float64 {
	switch tag {
	case TapeTagVolumeZ:
		return w.Tape.VolumeZ
	case TapeTagGapPct:
		return w.Tape.GapPct
	case TapeTagSupplyDemandProxy:
		return w.Tape.SupplyDemandProxy
	default:
		return 0
	}
}
