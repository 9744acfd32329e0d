package scoring

import (
	"math"
	"testing"
)

func TestNormalizeTape(t *testing.T) {
	tests := []struct {
		name string
		tape TapeSignal
		want map[string]float64
	}{
		{
			name: "all metrics present",
			tape: TapeSignal{
				VolumeZ:           Float(2.5),
				GapPct:            Float(0.025),
				SupplyDemandProxy: Float(1.0),
			},
			want: map[string]float64{
				TapeTagVolumeZ:           0.5,
				TapeTagGapPct:            0.5,
				TapeTagSupplyDemandProxy: 0.5,
			},
		},
		{
			name: "values saturate at cap",
			tape: TapeSignal{
				VolumeZ:           Float(12),
				GapPct:            Float(0.30),
				SupplyDemandProxy: Float(9),
			},
			want: map[string]float64{
				TapeTagVolumeZ:           1,
				TapeTagGapPct:            1,
				TapeTagSupplyDemandProxy: 1,
			},
		},
		{
			name: "negative values floor at zero",
			tape: TapeSignal{
				VolumeZ: Float(-3),
				GapPct:  Float(-0.02),
			},
			want: map[string]float64{
				TapeTagVolumeZ: 0,
				TapeTagGapPct:  0,
			},
		},
		{
			name: "absent metrics produce no entry",
			tape: TapeSignal{GapPct: Float(0.01)},
			want: map[string]float64{TapeTagGapPct: 0.2},
		},
		{
			name: "filter-only inputs never contribute",
			tape: TapeSignal{
				High20dDistPct: Float(-0.05),
				Close:          Float(500),
			},
			want: map[string]float64{},
		},
		{
			name: "vwap deviation is never normalized",
			tape: TapeSignal{VWAPDeviationPct: Float(0.02)},
			want: map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTape(tt.tape)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeTape() returned %d contributions, want %d", len(got), len(tt.want))
			}
			for _, contrib := range got {
				want, ok := tt.want[contrib.Tag]
				if !ok {
					t.Errorf("unexpected contribution for tag %s", contrib.Tag)
					continue
				}
				if math.Abs(contrib.Normalized-want) > 1e-9 {
					t.Errorf("tag %s normalized = %v, want %v", contrib.Tag, contrib.Normalized, want)
				}
				if contrib.Normalized < 0 || contrib.Normalized > 1 {
					t.Errorf("tag %s normalized %v outside [0,1]", contrib.Tag, contrib.Normalized)
				}
			}
		})
	}
}

func TestNormalizeEventScore(t *testing.T) {
	if got := NormalizeEventScore(nil); got != 1.0 {
		t.Errorf("missing score should default to 1.0, got %v", got)
	}
	if got := NormalizeEventScore(Float(0.45)); got != 0.45 {
		t.Errorf("in-range score should pass through, got %v", got)
	}
	if got := NormalizeEventScore(Float(7)); got != 1.0 {
		t.Errorf("score above 1 should clamp, got %v", got)
	}
	if got := NormalizeEventScore(Float(-0.2)); got != 0 {
		t.Errorf("score below 0 should clamp, got %v", got)
	}
}
