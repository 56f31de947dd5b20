package montecarlo

import (
	"fmt"
	"time"

	"github.com/pvcast/pvcast/internal/models"
)

const (
	// TargetHorizonDays is the fixed horizon every forecast is filled to.
	TargetHorizonDays = 30

	// Persistence synthesis: hold the trailing-window mean weather constant.
	persistenceWindowHours = 48
	minPersistenceSamples  = 24

	// Climatological fallback when the real series is too short to average.
	climatologyCloudPct = 50.0
	climatologyTempC    = 20.0
	climatologyWindMPS  = 2.0

	// The synthetic window is lower-confidence, so it gets a smaller
	// ensemble and its own seed stream.
	extensionRuns      = 20
	extensionSeedShift = 11
)

// ExtendWithPersistence fills bands out to targetDays calendar entries. The
// trailing persistenceWindowHours of the real model run supply constant
// synthetic weather; a reduced-run Monte Carlo produces bands over that
// window, which are concatenated after the real bands and truncated. The
// returned note tells the caller how much of the horizon is real data.
func (e *Engine) ExtendWithPersistence(base models.Bands, tail models.PVSeries, targetDays int) (models.Bands, string, error) {
	if targetDays <= 0 {
		targetDays = TargetHorizonDays
	}
	realDays := base.Len()
	if realDays >= targetDays {
		return models.Bands{
			P10: base.P10[:targetDays],
			P50: base.P50[:targetDays],
			P90: base.P90[:targetDays],
		}, "", nil
	}
	if len(tail) == 0 {
		return base, "", fmt.Errorf("cannot extend: model run is empty")
	}

	cloud, temp, wind, climatology := persistenceMeans(tail)

	lastTime := tail[len(tail)-1].Time
	start := lastTime.Add(time.Hour).Truncate(time.Hour)
	if start.Before(lastTime) || start.Equal(lastTime) {
		start = start.Add(time.Hour)
	}
	// One spare day absorbs partial local calendar days at the seam.
	hours := (targetDays - realDays + 1) * 24

	synthetic := make(models.WeatherSeries, hours)
	for i := 0; i < hours; i++ {
		synthetic[i] = models.WeatherSample{
			Time:     start.Add(time.Duration(i) * time.Hour),
			CloudPct: cloud,
			TempC:    temp,
			WindMPS:  wind,
		}
	}

	ext := &Engine{PV: e.PV, Loc: e.Loc, Runs: extensionRuns, Seed: e.Seed + extensionSeedShift}
	extBands, err := ext.Run(synthetic)
	if err != nil {
		return base, "", fmt.Errorf("persistence extension: %w", err)
	}

	out := models.Bands{
		P10: concatTruncate(base.P10, extBands.P10, targetDays),
		P50: concatTruncate(base.P50, extBands.P50, targetDays),
		P90: concatTruncate(base.P90, extBands.P90, targetDays),
	}
	source := "48h-persistence"
	if climatology {
		source = "climatology"
	}
	note := fmt.Sprintf("forecast covered %d days; extended to %d days with %s weather", realDays, targetDays, source)
	return out, note, nil
}

// persistenceMeans averages the trailing window of the real run. Under
// minPersistenceSamples samples, fixed climatological values stand in and the
// climatology flag is set so the caller can disclose it.
func persistenceMeans(tail models.PVSeries) (cloud, temp, wind float64, climatology bool) {
	if len(tail) < minPersistenceSamples {
		return climatologyCloudPct, climatologyTempC, climatologyWindMPS, true
	}
	window := tail
	if len(window) > persistenceWindowHours {
		window = window[len(window)-persistenceWindowHours:]
	}
	var cSum, tSum, wSum float64
	for _, s := range window {
		cSum += s.CloudPct
		tSum += s.TempC
		wSum += s.WindMPS
	}
	n := float64(len(window))
	return cSum / n, tSum / n, wSum / n, false
}

func concatTruncate(a, b []models.DailyEnergy, n int) []models.DailyEnergy {
	out := make([]models.DailyEnergy, 0, n)
	out = append(out, a...)
	for _, d := range b {
		if len(out) >= n {
			break
		}
		// The seam day may appear in both halves; the real data wins.
		if len(out) > 0 && d.Date <= out[len(out)-1].Date {
			continue
		}
		out = append(out, d)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}
