package pvmodel

import (
	"math"
	"time"

	"github.com/pvcast/pvcast/internal/models"
)

const dateLayout = "2006-01-02"

// AggregateDaily integrates hourly (or irregular) AC power into calendar-day
// energy. Each sample contributes power times the hours elapsed since the
// previous sample; the first interval defaults to one hour. Day boundaries
// follow loc, so a plant's days are local days, not UTC slices. Values are
// rounded to two decimals for presentation.
func AggregateDaily(pv models.PVSeries, loc *time.Location) []models.DailyEnergy {
	if loc == nil {
		loc = time.UTC
	}
	if len(pv) == 0 {
		return nil
	}

	totals := make(map[string]float64)
	var order []string

	prev := pv[0].Time.Add(-time.Hour)
	for _, s := range pv {
		dtHours := s.Time.Sub(prev).Hours()
		if dtHours <= 0 {
			dtHours = 1
		}
		prev = s.Time

		date := s.Time.In(loc).Format(dateLayout)
		if _, ok := totals[date]; !ok {
			order = append(order, date)
		}
		totals[date] += math.Max(0, s.PacKW) * dtHours
	}

	out := make([]models.DailyEnergy, 0, len(order))
	for _, date := range order {
		out = append(out, models.DailyEnergy{Date: date, KWh: Round2(totals[date])})
	}
	return out
}

// Round2 rounds to two decimal places for presentation values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
