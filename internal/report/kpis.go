// Package report derives plant performance KPIs from a deterministic model
// run: specific yield, performance ratio, and a loss waterfall.
package report

import (
	"time"

	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/pvmodel"
)

const referenceIrradianceWM2 = 1000

// DailyKPI summarizes one local calendar day of the model run.
type DailyKPI struct {
	Date          string  `json:"date"`
	POAKWhM2      float64 `json:"poa_kwh_m2"`
	EACKWh        float64 `json:"eac_kwh"`
	SpecificYield float64 `json:"specific_yield_kwh_kwp"`
	PR            float64 `json:"performance_ratio"`
}

// Summary aggregates the daily KPIs over the whole run.
type Summary struct {
	TotalKWh         float64 `json:"total_kwh"`
	AvgPR            float64 `json:"avg_performance_ratio"`
	AvgSpecificYield float64 `json:"avg_specific_yield_kwh_kwp"`
	Days             int     `json:"days"`
}

// ComputeKPIs walks the hourly model output, accumulating plane-of-array
// insolation and AC energy per local day. PR is AC energy over the reference
// yield (DC nameplate scaled by POA insolation at 1000 W/m2); days with no
// insolation report zero PR rather than dividing by zero.
func ComputeKPIs(pv models.PVSeries, dcCapacityKW float64, loc *time.Location) ([]DailyKPI, Summary) {
	type acc struct {
		poaWh float64
		eacWh float64
	}
	if loc == nil {
		loc = time.UTC
	}

	order := make([]string, 0, 32)
	days := make(map[string]*acc)
	var prev time.Time
	for i, s := range pv {
		dt := 1.0
		if i > 0 {
			dt = s.Time.Sub(prev).Hours()
			if dt <= 0 {
				dt = 1.0
			}
		}
		prev = s.Time

		date := s.Time.In(loc).Format("2006-01-02")
		a, ok := days[date]
		if !ok {
			a = &acc{}
			days[date] = a
			order = append(order, date)
		}
		a.poaWh += s.POAWM2 * dt
		a.eacWh += s.PacKW * dt * 1000
	}

	kpis := make([]DailyKPI, 0, len(order))
	var sum Summary
	for _, date := range order {
		a := days[date]
		poaKWhM2 := a.poaWh / 1000
		eacKWh := a.eacWh / 1000
		k := DailyKPI{
			Date:     date,
			POAKWhM2: pvmodel.Round2(poaKWhM2),
			EACKWh:   pvmodel.Round2(eacKWh),
		}
		if dcCapacityKW > 0 {
			k.SpecificYield = pvmodel.Round2(eacKWh / dcCapacityKW)
		}
		// Reference yield: nameplate DC scaled by insolation at STC irradiance.
		refKWh := dcCapacityKW * poaKWhM2 * 1000 / referenceIrradianceWM2
		if refKWh > 0 {
			k.PR = pvmodel.Round2(eacKWh / refKWh)
		}
		kpis = append(kpis, k)

		sum.TotalKWh += k.EACKWh
		sum.AvgPR += k.PR
		sum.AvgSpecificYield += k.SpecificYield
	}
	sum.Days = len(kpis)
	if sum.Days > 0 {
		sum.AvgPR = pvmodel.Round2(sum.AvgPR / float64(sum.Days))
		sum.AvgSpecificYield = pvmodel.Round2(sum.AvgSpecificYield / float64(sum.Days))
	}
	sum.TotalKWh = pvmodel.Round2(sum.TotalKWh)
	return kpis, sum
}
