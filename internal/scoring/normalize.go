package scoring

// Saturation points for tape metric normalization. Values beyond the cap
// normalize to 1, values below zero normalize to 0.
const (
	volumeZMax      = 5.0  // 5 sigma volume spike
	gapPctMax       = 0.05 // 5% gap fully normalized
	supplyDemandMax = 2.0  // double the 20-day average volume
)

// Tape reason tags. These double as the keys of the tape weight config.
const (
	TapeTagVolumeZ           = "volume_z"
	TapeTagGapPct            = "gap_pct"
	TapeTagSupplyDemandProxy = "supply_demand_proxy"
)

// TapeContribution is one normalized tape metric.
type TapeContribution struct {
	Tag        string
	Normalized float64 // always in [0,1]
	Raw        float64
}

// NormalizeTape converts present tape metrics into [0,1] contributions.
// Only volume_z, gap_pct and supply_demand_proxy participate; high20dDistPct
// and close are filter inputs and never become score contributions. Absent
// metrics produce no entry.
func NormalizeTape(tape TapeSignal) []TapeContribution {
	var contributions []TapeContribution

	if tape.VolumeZ != nil {
		contributions = append(contributions, TapeContribution{
			Tag:        TapeTagVolumeZ,
			Normalized: clamp(*tape.VolumeZ, 0, volumeZMax) / volumeZMax,
			Raw:        *tape.VolumeZ,
		})
	}

	if tape.GapPct != nil {
		contributions = append(contributions, TapeContribution{
			Tag:        TapeTagGapPct,
			Normalized: clamp(*tape.GapPct, 0, gapPctMax) / gapPctMax,
			Raw:        *tape.GapPct,
		})
	}

	if tape.SupplyDemandProxy != nil {
		contributions = append(contributions, TapeContribution{
			Tag:        TapeTagSupplyDemandProxy,
			Normalized: clamp(*tape.SupplyDemandProxy, 0, supplyDemandMax) / supplyDemandMax,
			Raw:        *tape.SupplyDemandProxy,
		})
	}

	return contributions
}

// NormalizeEventScore maps an event's raw score into [0,1]. An event with no
// explicit score is treated as maximally confirmed.
func NormalizeEventScore(score *float64) float64 {
	if score == nil {
		return 1.0
	}
	return clamp(*score, 0, 1)
}
