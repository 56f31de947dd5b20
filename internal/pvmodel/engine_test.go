package pvmodel

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/pvcast/pvcast/internal/models"
)

func ptr(v float64) *float64 { return &v }

func testSite() models.Site {
	return models.Site{Latitude: 35.4, Longitude: -120.0, ElevationM: 100, Timezone: "America/Los_Angeles"}
}

func testPlant() models.PlantConfig {
	p := models.PlantConfig{
		PlantName:    "Test Plant",
		DCCapacityKW: 120,
		ACCapacityKW: 100,
		Mounting:     models.MountingSAT,
	}
	p.ApplyDefaults()
	return p
}

// clearDay builds 24 hourly samples covering one clear summer day.
func clearDay() models.WeatherSeries {
	start := time.Date(2026, 6, 21, 7, 0, 0, 0, time.UTC) // midnight local
	wx := make(models.WeatherSeries, 24)
	for i := range wx {
		wx[i] = models.WeatherSample{
			Time:     start.Add(time.Duration(i) * time.Hour),
			TempC:    22,
			WindMPS:  2,
			CloudPct: 0,
		}
	}
	return wx
}

func TestRunDataGap(t *testing.T) {
	eng := New(testSite(), testPlant(), models.DefaultLossTree(), nil, nil)

	tests := []struct {
		name string
		wx   models.WeatherSeries
	}{
		{"empty series", nil},
		{"all NaN", models.WeatherSeries{
			{Time: time.Now(), TempC: math.NaN(), WindMPS: math.NaN(), CloudPct: math.NaN()},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eng.Run(tt.wx); !errors.Is(err, ErrDataGap) {
				t.Errorf("Run() error = %v, want ErrDataGap", err)
			}
		})
	}
}

func TestRunClearDay(t *testing.T) {
	plant := testPlant()
	eng := New(testSite(), plant, models.DefaultLossTree(), nil, nil)

	pv, err := eng.Run(clearDay())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pv) != 24 {
		t.Fatalf("output length = %d, want 24", len(pv))
	}

	var peak float64
	for _, s := range pv {
		if s.PacKW < 0 {
			t.Errorf("negative power %.2f at %s", s.PacKW, s.Time)
		}
		if s.PacKW > plant.ACCapacityKW {
			t.Errorf("power %.2f exceeds AC capacity at %s", s.PacKW, s.Time)
		}
		if s.PacKW > peak {
			peak = s.PacKW
		}
		local := s.Time.In(time.FixedZone("PDT", -7*3600))
		if h := local.Hour(); (h < 5 || h > 21) && s.PacKW != 0 {
			t.Errorf("night power %.2f at local hour %d", s.PacKW, h)
		}
	}
	if peak < 0.5*plant.ACCapacityKW {
		t.Errorf("midsummer clear-day peak = %.1f kW, want at least half of AC capacity", peak)
	}
}

func TestRunDeterministic(t *testing.T) {
	eng := New(testSite(), testPlant(), models.DefaultLossTree(), nil, nil)
	wx := clearDay()

	first, err := eng.Run(wx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.Run(wx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different outputs")
	}
}

func TestRunPOIClamp(t *testing.T) {
	plant := testPlant()
	plant.POILimitKW = ptr(40)
	eng := New(testSite(), plant, models.DefaultLossTree(), nil, nil)

	pv, err := eng.Run(clearDay())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range pv {
		if s.PacKW > 40 {
			t.Errorf("power %.2f exceeds POI limit at %s", s.PacKW, s.Time)
		}
	}
}

func TestRunCloudReducesEnergy(t *testing.T) {
	eng := New(testSite(), testPlant(), models.DefaultLossTree(), nil, nil)

	clear, err := eng.Run(clearDay())
	if err != nil {
		t.Fatalf("clear run: %v", err)
	}
	cloudy := clearDay()
	for i := range cloudy {
		cloudy[i].CloudPct = 95
	}
	overcast, err := eng.Run(cloudy)
	if err != nil {
		t.Fatalf("overcast run: %v", err)
	}

	var clearSum, cloudSum float64
	for i := range clear {
		clearSum += clear[i].PacKW
		cloudSum += overcast[i].PacKW
	}
	if cloudSum >= 0.5*clearSum {
		t.Errorf("overcast energy %.1f should be well below clear %.1f", cloudSum, clearSum)
	}
}

func TestRunEquipmentOverrides(t *testing.T) {
	site, plant := testSite(), testPlant()
	losses := models.DefaultLossTree()

	base := New(site, plant, losses, nil, nil)
	// A colder gamma and weaker inverter must both reduce midday output.
	derated := New(site, plant, losses,
		&models.ModuleParams{GammaPmpPerC: ptr(-0.006)},
		&models.InverterParams{EffNominal: ptr(0.90)})

	wx := clearDay()
	basePV, err := base.Run(wx)
	if err != nil {
		t.Fatalf("base run: %v", err)
	}
	deratedPV, err := derated.Run(wx)
	if err != nil {
		t.Fatalf("derated run: %v", err)
	}

	var baseSum, deratedSum float64
	for i := range basePV {
		baseSum += basePV[i].PacKW
		deratedSum += deratedPV[i].PacKW
	}
	if deratedSum >= baseSum {
		t.Errorf("derated energy %.1f should be below base %.1f", deratedSum, baseSum)
	}
}

func TestRunZeroLossPassthrough(t *testing.T) {
	site, plant := testSite(), testPlant()
	noLosses := models.LossTree{AvailabilityPct: 100}

	lossy, err := New(site, plant, models.DefaultLossTree(), nil, nil).Run(clearDay())
	if err != nil {
		t.Fatalf("lossy run: %v", err)
	}
	clean, err := New(site, plant, noLosses, nil, nil).Run(clearDay())
	if err != nil {
		t.Fatalf("zero-loss run: %v", err)
	}

	var lossySum, cleanSum float64
	for i := range clean {
		lossySum += lossy[i].PacKW
		cleanSum += clean[i].PacKW
		if clean[i].PacKW > plant.ACCapacityKW {
			t.Errorf("zero-loss power %.2f exceeds AC cap at %s", clean[i].PacKW, clean[i].Time)
		}
	}
	if cleanSum <= lossySum {
		t.Errorf("zero-loss energy %.1f should exceed derated %.1f", cleanSum, lossySum)
	}
}

func TestCellTemp(t *testing.T) {
	tests := []struct {
		name           string
		poa, amb, wind float64
		min, max       float64
	}{
		{"no irradiance tracks ambient", 0, 20, 2, 20, 20},
		{"bright calm day heats up", 800, 25, 1, 40, 60},
		{"wind cools the array", 800, 25, 10, 25, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CellTemp(tt.poa, tt.amb, tt.wind)
			if got < tt.min || got > tt.max {
				t.Errorf("CellTemp(%v, %v, %v) = %.1f, want in [%.0f, %.0f]",
					tt.poa, tt.amb, tt.wind, got, tt.min, tt.max)
			}
		})
	}
}
