package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput marks malformed scoring input. Absent optional fields are
// fine; only broken shapes (NaN metrics, unknown tags) are rejected.
var ErrInvalidInput = errors.New("invalid scoring input")

// EventType is the raw category of a stored corporate event.
type EventType string

const (
	EventTypeGuideUp  EventType = "GUIDE_UP"
	EventTypeEarnings EventType = "EARNINGS"
	EventTypeTdnet    EventType = "TDNET"
	EventTypeNews     EventType = "NEWS"
	EventTypeVolSpike EventType = "VOL_SPIKE"
)

// Tag is the scoring tag an event is classified into.
type Tag string

const (
	TagGuideUp          Tag = "GUIDE_UP"
	TagEarningsPositive Tag = "EARNINGS_POSITIVE"
	TagTdnet            Tag = "TDNET"
	TagVolSpike         Tag = "VOL_SPIKE"
	TagNewsPos          Tag = "NEWS_POS"
	TagNewsNeu          Tag = "NEWS_NEU"
	TagNewsNeg          Tag = "NEWS_NEG"
)

// AllTags lists every scoring tag. The event weight map must cover all of
// them.
var AllTags = []Tag{
	TagGuideUp,
	TagEarningsPositive,
	TagTdnet,
	TagVolSpike,
	TagNewsPos,
	TagNewsNeu,
	TagNewsNeg,
}

// TapeSignal is the per-instrument, per-day bag of price-action metrics.
// A nil field means the metric is absent and contributes nothing.
type TapeSignal struct {
	VolumeZ           *float64
	GapPct            *float64
	VWAPDeviationPct  *float64
	SupplyDemandProxy *float64
	High20dDistPct    *float64
	Close             *float64
}

// EventSignal is a classified corporate/news event ready for scoring.
type EventSignal struct {
	Tag              Tag
	Type             EventType
	Title            string
	Summary          string
	Source           string
	Score            *float64 // 0..1, nil means maximally confirmed
	WeightMultiplier *float64 // >0, nil means 1
	OccurredAt       time.Time
}

// TapeWeights holds the per-metric tape weights.
type TapeWeights struct {
	VolumeZ           float64
	GapPct            float64
	SupplyDemandProxy float64
}

// WeightConfig is the immutable coefficient set consumed by the engine.
// Instances are built by the weights loader and passed through the call
// chain; they are never mutated after construction.
type WeightConfig struct {
	Event    map[Tag]float64
	Tape     TapeWeights
	MinScore float64
}

// Penalties carries score penalties computed outside the engine.
type Penalties struct {
	RecentNegative float64
}

// ReasonKind discriminates reason trail entries.
type ReasonKind string

const (
	ReasonEvent   ReasonKind = "event"
	ReasonTape    ReasonKind = "tape"
	ReasonPenalty ReasonKind = "penalty"
	ReasonFilter  ReasonKind = "filter"
)

// ReasonDetails is the fixed detail schema shared by all reason kinds.
// Unused fields stay empty for a given kind.
type ReasonDetails struct {
	Raw        *float64 `json:"raw,omitempty"`        // tape: raw metric value
	Source     string   `json:"source,omitempty"`     // event
	Title      string   `json:"title,omitempty"`      // event
	OccurredAt string   `json:"occurredAt,omitempty"` // event, RFC 3339
	Value      *float64 `json:"value,omitempty"`      // filter: offending value
	Message    string   `json:"message,omitempty"`    // filter: explanation
}

// Reason is one entry of the score explanation trail.
type Reason struct {
	Kind    ReasonKind     `json:"kind"`
	Tag     string         `json:"tag"`
	Weight  float64        `json:"weight"`
	Applied float64        `json:"applied"`
	Details *ReasonDetails `json:"details,omitempty"`
}

// Result is the outcome of scoring one instrument for one day.
type Result struct {
	Raw           float64  `json:"raw"`
	Normalized    float64  `json:"normalized"` // 0..100
	PassedFilters bool     `json:"passedFilters"`
	Reasons       []Reason `json:"reasons"`
}

// Input bundles everything the engine needs for one score call.
type Input struct {
	Tape      TapeSignal
	Events    []EventSignal
	Weights   WeightConfig
	Penalties Penalties
}

// Validate rejects malformed shapes before scoring begins. Missing optional
// fields never fail validation.
func (in *Input) Validate() error {
	for name, v := range map[string]*float64{
		"volumeZ":           in.Tape.VolumeZ,
		"gapPct":            in.Tape.GapPct,
		"vwapDeviationPct":  in.Tape.VWAPDeviationPct,
		"supplyDemandProxy": in.Tape.SupplyDemandProxy,
		"high20dDistPct":    in.Tape.High20dDistPct,
		"close":             in.Tape.Close,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%w: tape metric %s is not finite", ErrInvalidInput, name)
		}
	}

	for i, ev := range in.Events {
		if _, ok := in.Weights.Event[ev.Tag]; !ok {
			return fmt.Errorf("%w: event %d has unknown tag %q", ErrInvalidInput, i, ev.Tag)
		}
		if ev.Score != nil && (math.IsNaN(*ev.Score) || math.IsInf(*ev.Score, 0)) {
			return fmt.Errorf("%w: event %d score is not finite", ErrInvalidInput, i)
		}
		if ev.WeightMultiplier != nil && *ev.WeightMultiplier <= 0 {
			return fmt.Errorf("%w: event %d weight multiplier must be > 0", ErrInvalidInput, i)
		}
	}

	if math.IsNaN(in.Penalties.RecentNegative) {
		return fmt.Errorf("%w: recent negative penalty is not finite", ErrInvalidInput)
	}

	return nil
}

func clamp(value, min, max float64) float64 {
	return math.Min(math.Max(value, min), max)
}

// Float is a convenience for building optional metrics.
func Float(v float64) *float64 {
	return &v
}
