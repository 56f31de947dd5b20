// Package montecarlo turns the deterministic PV pipeline into probabilistic
// daily-energy bands by resampling the weather inputs.
//
// This is a pragmatic stand-in for a true multi-member ensemble forecast: any
// source of N weather realizations can replace the perturbation step without
// touching the percentile reduction.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/pvmodel"
)

const (
	// DefaultRuns is the ensemble size for the full-horizon Monte Carlo.
	DefaultRuns = 40
	// DefaultSeed keeps unseeded requests reproducible.
	DefaultSeed int64 = 7

	// Perturbation standard deviations ramp linearly from their near-term
	// value at 0 h lead to their long-range value at 168 h.
	leadRampHours = 168.0

	cloudSigmaNear = 8.0
	cloudSigmaFar  = 22.0
	tempSigmaNear  = 1.0
	tempSigmaFar   = 3.0
	windSigmaNear  = 0.5
	windSigmaFar   = 1.5

	maxWindMPS = 25.0
)

// Engine reruns a deterministic PV engine over perturbed weather and reduces
// the runs to P10/P50/P90 daily-energy bands.
type Engine struct {
	PV   *pvmodel.Engine
	Loc  *time.Location
	Runs int
	Seed int64
}

// New builds a Monte Carlo engine around a deterministic one. Non-positive
// runs fall back to DefaultRuns.
func New(pv *pvmodel.Engine, loc *time.Location, runs int, seed int64) *Engine {
	if runs <= 0 {
		runs = DefaultRuns
	}
	return &Engine{PV: pv, Loc: loc, Runs: runs, Seed: seed}
}

func sigmaAt(leadHours, near, far float64) float64 {
	frac := math.Min(1, math.Max(0, leadHours/leadRampHours))
	return near + (far-near)*frac
}

// Run executes n perturbed pipeline passes and reduces them to bands. All
// randomness comes from one generator seeded once, so identical inputs and
// seed produce identical bands.
func (e *Engine) Run(wx models.WeatherSeries) (models.Bands, error) {
	if len(wx) == 0 || !wx.HasFiniteSample() {
		return models.Bands{}, pvmodel.ErrDataGap
	}

	rng := rand.New(rand.NewSource(e.Seed))
	start := wx[0].Time

	runs := make([]map[string]float64, 0, e.Runs)
	var dates []string
	seen := make(map[string]bool)

	perturbed := make(models.WeatherSeries, len(wx))
	for i := 0; i < e.Runs; i++ {
		for j, s := range wx {
			lead := s.Time.Sub(start).Hours()
			perturbed[j] = models.WeatherSample{
				Time:     s.Time,
				CloudPct: clamp(s.CloudPct+rng.NormFloat64()*sigmaAt(lead, cloudSigmaNear, cloudSigmaFar), 0, 100),
				TempC:    s.TempC + rng.NormFloat64()*sigmaAt(lead, tempSigmaNear, tempSigmaFar),
				WindMPS:  clamp(s.WindMPS+rng.NormFloat64()*sigmaAt(lead, windSigmaNear, windSigmaFar), 0, maxWindMPS),
			}
		}

		pv, err := e.PV.Run(perturbed)
		if err != nil {
			return models.Bands{}, fmt.Errorf("monte carlo run %d: %w", i+1, err)
		}

		byDate := make(map[string]float64)
		for _, d := range pvmodel.AggregateDaily(pv, e.Loc) {
			byDate[d.Date] = d.KWh
			if !seen[d.Date] {
				seen[d.Date] = true
				dates = append(dates, d.Date)
			}
		}
		runs = append(runs, byDate)
	}

	sort.Strings(dates)
	return reduce(dates, runs), nil
}

// reduce aligns runs by date and takes the 10th/50th/90th percentiles of
// energy per date. A run that degenerated to all-zero days weighs the bands
// down but never corrupts the reduction.
func reduce(dates []string, runs []map[string]float64) models.Bands {
	bands := models.Bands{
		P10: make([]models.DailyEnergy, 0, len(dates)),
		P50: make([]models.DailyEnergy, 0, len(dates)),
		P90: make([]models.DailyEnergy, 0, len(dates)),
	}

	values := make([]float64, 0, len(runs))
	for _, date := range dates {
		values = values[:0]
		for _, run := range runs {
			if v, ok := run[date]; ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)

		bands.P10 = append(bands.P10, models.DailyEnergy{Date: date, KWh: pvmodel.Round2(stat.Quantile(0.10, stat.LinInterp, values, nil))})
		bands.P50 = append(bands.P50, models.DailyEnergy{Date: date, KWh: pvmodel.Round2(stat.Quantile(0.50, stat.LinInterp, values, nil))})
		bands.P90 = append(bands.P90, models.DailyEnergy{Date: date, KWh: pvmodel.Round2(stat.Quantile(0.90, stat.LinInterp, values, nil))})
	}
	return bands
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
