package ingest

import (
	"math"
	"sort"

	"github.com/wonny/kabupicks/internal/store"
)

const (
	volumeWindowLong  = 20
	volumeWindowShort = 5
)

// ComputeFeatures derives the tape metrics for every bar in the given price
// history. Bars may arrive in any order and span multiple instruments;
// metrics requiring a longer history than available are simply omitted.
func ComputeFeatures(prices []store.DailyPrice) []store.Feature {
	byCode := make(map[string][]store.DailyPrice)
	for _, p := range prices {
		byCode[p.Code] = append(byCode[p.Code], p)
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var features []store.Feature
	for _, code := range codes {
		bars := byCode[code]
		sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
		features = append(features, computeForCode(bars)...)
	}
	return features
}

func computeForCode(bars []store.DailyPrice) []store.Feature {
	var features []store.Feature

	add := func(bar store.DailyPrice, name string, value float64) {
		features = append(features, store.Feature{
			Code:  bar.Code,
			Date:  bar.Date,
			Name:  name,
			Value: value,
		})
	}

	volumes := make([]float64, 0, len(bars))
	closes := make([]float64, 0, len(bars))

	for i, bar := range bars {
		volumes = append(volumes, float64(bar.Volume))
		closes = append(closes, bar.Close)

		if z, ok := volumeZ(volumes); ok {
			add(bar, "volume_z", z)
		}

		if i >= 1 {
			prevClose := closes[len(closes)-2]
			if prevClose != 0 {
				add(bar, "gap_pct", (bar.Open-prevClose)/prevClose)
			}
		}

		if bar.VWAP != nil && *bar.VWAP != 0 {
			add(bar, "vwap_dev_pct", (bar.Close-*bar.VWAP) / *bar.VWAP)
		}

		if sd, ok := supplyDemand(volumes); ok {
			add(bar, "supply_demand_proxy", sd)
		}

		high20 := maxTail(closes, volumeWindowLong)
		if high20 != 0 {
			add(bar, "high20d_dist_pct", bar.Close/high20-1)
		} else {
			add(bar, "high20d_dist_pct", 0)
		}
	}
	return features
}

// volumeZ is the z-score of the latest volume against the trailing 20-day
// window, using the population standard deviation. A flat window scores 0.
func volumeZ(volumes []float64) (float64, bool) {
	if len(volumes) < volumeWindowLong {
		return 0, false
	}
	window := volumes[len(volumes)-volumeWindowLong:]
	m := mean(window)
	sd := pstdev(window, m)
	if sd == 0 {
		return 0, true
	}
	return (window[len(window)-1] - m) / sd, true
}

// supplyDemand is the ratio of the 5-day to the 20-day average volume.
func supplyDemand(volumes []float64) (float64, bool) {
	if len(volumes) < volumeWindowLong {
		return 0, false
	}
	avgShort := mean(volumes[len(volumes)-volumeWindowShort:])
	avgLong := mean(volumes[len(volumes)-volumeWindowLong:])
	if avgLong == 0 {
		return 0, false
	}
	return avgShort / avgLong, true
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func pstdev(values []float64, m float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func maxTail(values []float64, n int) float64 {
	start := len(values) - n
	if start < 0 {
		start = 0
	}
	max := values[start]
	for _, v := range values[start+1:] {
		if v > max {
			max = v
		}
	}
	return max
}
