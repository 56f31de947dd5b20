package ingest

import (
	"math"
	"sort"
	"time"

	"github.com/pvcast/pvcast/internal/models"
)

// PreferGridHours bounds how far into the forecast grid values override the
// hourly product. Beyond it the grid's coarse duration blocks add noise
// rather than detail.
const PreferGridHours = 168

// Blend merges two weather series per field. Within preferHours of the
// primary series' start, finite refined values win; everywhere else the
// primary value stands, with refined filling timestamps the primary lacks.
func Blend(primary, refined models.WeatherSeries, preferHours int) models.WeatherSeries {
	if len(primary) == 0 {
		return refined
	}
	if len(refined) == 0 {
		return primary
	}

	cutoff := primary[0].Time.Add(time.Duration(preferHours) * time.Hour)

	byTime := make(map[time.Time]models.WeatherSample, len(primary)+len(refined))
	for _, s := range primary {
		byTime[s.Time.UTC()] = s
	}
	for _, r := range refined {
		key := r.Time.UTC()
		base, ok := byTime[key]
		if !ok {
			r.Time = key
			byTime[key] = r
			continue
		}
		if !key.Before(cutoff) {
			continue
		}
		if !math.IsNaN(r.TempC) {
			base.TempC = r.TempC
		}
		if !math.IsNaN(r.WindMPS) {
			base.WindMPS = r.WindMPS
		}
		if !math.IsNaN(r.CloudPct) {
			base.CloudPct = r.CloudPct
		}
		byTime[key] = base
	}

	out := make(models.WeatherSeries, 0, len(byTime))
	for _, s := range byTime {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
