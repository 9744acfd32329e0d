package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWeights() WeightConfig {
	return WeightConfig{
		Event: map[Tag]float64{
			TagGuideUp:          1.0,
			TagEarningsPositive: 0.8,
			TagTdnet:            0.5,
			TagVolSpike:         0.6,
			TagNewsPos:          0.7,
			TagNewsNeu:          0.2,
			TagNewsNeg:          0.1,
		},
		Tape: TapeWeights{
			VolumeZ:           0.4,
			GapPct:            0.3,
			SupplyDemandProxy: 0.3,
		},
		MinScore: 60,
	}
}

func TestScoreStrongCandidate(t *testing.T) {
	in := Input{
		Tape: TapeSignal{
			VolumeZ:           Float(4),
			GapPct:            Float(0.03),
			SupplyDemandProxy: Float(1.4),
			High20dDistPct:    Float(-0.05),
			Close:             Float(200),
		},
		Events: []EventSignal{
			{
				Tag:        TagGuideUp,
				Type:       EventTypeGuideUp,
				Title:      "通期業績予想の上方修正",
				Source:     "tdnet",
				OccurredAt: time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC),
			},
		},
		Weights: testWeights(),
	}

	result, err := Score(in)
	require.NoError(t, err)

	assert.True(t, result.PassedFilters)
	assert.Greater(t, result.Normalized, 70.0)
	assert.LessOrEqual(t, result.Normalized, 100.0)

	// weightedTotal = 0.8*0.4 + 0.6*0.3 + 0.7*0.3 + 1.0*1.0 = 1.71
	// weightSum = 0.4 + 0.3 + 0.3 + 1.0 = 2.0
	assert.InDelta(t, 85.5, result.Normalized, 1e-9)
	assert.InDelta(t, 0.855, result.Raw, 1e-9)

	// Three tape reasons plus one event reason, no penalty, no filter.
	require.Len(t, result.Reasons, 4)
	eventReason := result.Reasons[3]
	assert.Equal(t, ReasonEvent, eventReason.Kind)
	assert.Equal(t, string(TagGuideUp), eventReason.Tag)
	require.NotNil(t, eventReason.Details)
	assert.Equal(t, "tdnet", eventReason.Details.Source)
	assert.Equal(t, "2026-08-28T06:00:00Z", eventReason.Details.OccurredAt)
}

func TestScoreHardFiltersZeroTheScore(t *testing.T) {
	in := Input{
		Tape: TapeSignal{
			VolumeZ:           Float(2),
			GapPct:            Float(0.01),
			SupplyDemandProxy: Float(1.1),
			High20dDistPct:    Float(-0.2), // below -0.15
			Close:             Float(80),   // below 100
		},
		Weights:   testWeights(),
		Penalties: Penalties{RecentNegative: 0.3},
	}

	result, err := Score(in)
	require.NoError(t, err)

	assert.False(t, result.PassedFilters)
	assert.Zero(t, result.Normalized)

	var filterTags []string
	for _, reason := range result.Reasons {
		if reason.Kind == ReasonFilter {
			filterTags = append(filterTags, reason.Tag)
		}
	}
	assert.ElementsMatch(t, []string{FilterTagHigh20dDist, FilterTagClosePrice}, filterTags)

	// The penalty reason is still recorded even though filters zero the score.
	var foundPenalty bool
	for _, reason := range result.Reasons {
		if reason.Kind == ReasonPenalty {
			foundPenalty = true
			assert.InDelta(t, -0.3, reason.Applied, 1e-9)
		}
	}
	assert.True(t, foundPenalty)
}

func TestScoreMissingSignals(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{
			name: "no inputs at all",
			in:   Input{Weights: testWeights()},
		},
		{
			name: "tape present but zero-weighted",
			in: Input{
				Tape: TapeSignal{VolumeZ: Float(3)},
				Weights: WeightConfig{
					Event: testWeights().Event,
					Tape:  TapeWeights{},
				},
			},
		},
		{
			name: "event with zero applied weight",
			in: Input{
				Events: []EventSignal{
					{Tag: TagNewsNeu, Type: EventTypeNews, OccurredAt: time.Now()},
				},
				Weights: WeightConfig{
					Event: map[Tag]float64{
						TagGuideUp: 1, TagEarningsPositive: 1, TagTdnet: 1,
						TagVolSpike: 1, TagNewsPos: 1, TagNewsNeu: 0, TagNewsNeg: 1,
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Score(tt.in)
			require.NoError(t, err)

			assert.Zero(t, result.Raw)
			assert.Zero(t, result.Normalized)
			assert.False(t, result.PassedFilters)

			last := result.Reasons[len(result.Reasons)-1]
			assert.Equal(t, ReasonFilter, last.Kind)
			assert.Equal(t, FilterTagMissingSignals, last.Tag)
		})
	}
}

func TestScorePenaltySubtractsAndFloors(t *testing.T) {
	base := Input{
		Events: []EventSignal{
			{Tag: TagNewsNeu, Type: EventTypeNews, Score: Float(0.4), OccurredAt: time.Now()},
		},
		Weights: testWeights(),
	}

	unpenalized, err := Score(base)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, unpenalized.Raw, 1e-9)

	base.Penalties = Penalties{RecentNegative: 0.3}
	penalized, err := Score(base)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, penalized.Raw, 1e-9)
	assert.InDelta(t, 10.0, penalized.Normalized, 1e-9)

	base.Penalties = Penalties{RecentNegative: 0.9}
	floored, err := Score(base)
	require.NoError(t, err)
	assert.Zero(t, floored.Raw)
	assert.Zero(t, floored.Normalized)
	assert.True(t, floored.PassedFilters, "penalty alone never fails filters")
}

func TestScorePenaltyClamped(t *testing.T) {
	in := Input{
		Tape:      TapeSignal{VolumeZ: Float(5)},
		Weights:   testWeights(),
		Penalties: Penalties{RecentNegative: 4.2},
	}

	result, err := Score(in)
	require.NoError(t, err)

	for _, reason := range result.Reasons {
		if reason.Kind == ReasonPenalty {
			assert.InDelta(t, -1.0, reason.Applied, 1e-9)
		}
	}
	assert.Zero(t, result.Raw)
}

func TestScoreWeightMultiplier(t *testing.T) {
	in := Input{
		Events: []EventSignal{
			{
				Tag:              TagTdnet,
				Type:             EventTypeTdnet,
				Score:            Float(0.5),
				WeightMultiplier: Float(2),
				OccurredAt:       time.Now(),
			},
		},
		Weights: testWeights(),
	}

	result, err := Score(in)
	require.NoError(t, err)

	// appliedWeight = 0.5 * 2 = 1.0, contribution = 0.5 * 1.0
	require.Len(t, result.Reasons, 1)
	assert.InDelta(t, 1.0, result.Reasons[0].Weight, 1e-9)
	assert.InDelta(t, 0.5, result.Raw, 1e-9)
}

func TestScoreNormalizedAlwaysBounded(t *testing.T) {
	inputs := []Input{
		{Tape: TapeSignal{VolumeZ: Float(1e9), GapPct: Float(1e9), SupplyDemandProxy: Float(1e9)}, Weights: testWeights()},
		{Events: []EventSignal{{Tag: TagGuideUp, Type: EventTypeGuideUp, Score: Float(99), OccurredAt: time.Now()}}, Weights: testWeights()},
		{Tape: TapeSignal{VolumeZ: Float(-50)}, Weights: testWeights()},
	}

	for _, in := range inputs {
		result, err := Score(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Normalized, 0.0)
		assert.LessOrEqual(t, result.Normalized, 100.0)
		if !result.PassedFilters {
			assert.Zero(t, result.Normalized)
		}
	}
}

func TestScoreRejectsMalformedInput(t *testing.T) {
	nan := math.NaN()

	_, err := Score(Input{
		Tape:    TapeSignal{VolumeZ: &nan},
		Weights: testWeights(),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Score(Input{
		Events:  []EventSignal{{Tag: Tag("MYSTERY"), Type: EventTypeNews, OccurredAt: time.Now()}},
		Weights: testWeights(),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Score(Input{
		Events: []EventSignal{{
			Tag: TagTdnet, Type: EventTypeTdnet,
			WeightMultiplier: Float(-1), OccurredAt: time.Now(),
		}},
		Weights: testWeights(),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}
