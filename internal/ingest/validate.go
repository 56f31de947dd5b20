package ingest

import (
	"math"
	"sort"

	"github.com/pvcast/pvcast/internal/models"
)

const (
	maxCloudPct = 100
	maxWindMPS  = 60 // above this a gust report is almost certainly bad data
	minTempC    = -60
	maxTempC    = 60
)

// Clean normalizes a fetched series: UTC timestamps, chronological order,
// duplicate timestamps dropped (first wins), out-of-range values clamped or
// discarded. Samples where every field is NaN carry no information and are
// removed; partially-NaN samples survive because the model clamps per field.
func Clean(series models.WeatherSeries) models.WeatherSeries {
	out := make(models.WeatherSeries, 0, len(series))
	seen := make(map[int64]bool, len(series))
	for _, s := range series {
		s.Time = s.Time.UTC()
		key := s.Time.Unix()
		if seen[key] {
			continue
		}
		if math.IsNaN(s.TempC) && math.IsNaN(s.WindMPS) && math.IsNaN(s.CloudPct) {
			continue
		}
		seen[key] = true

		if !math.IsNaN(s.CloudPct) {
			s.CloudPct = clamp(s.CloudPct, 0, maxCloudPct)
		}
		if !math.IsNaN(s.WindMPS) {
			if s.WindMPS < 0 || s.WindMPS > maxWindMPS {
				s.WindMPS = math.NaN()
			}
		}
		if !math.IsNaN(s.TempC) {
			if s.TempC < minTempC || s.TempC > maxTempC {
				s.TempC = math.NaN()
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
