package store

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/report"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func f(v float64) *float64 { return &v }

func testBands() models.Bands {
	return models.Bands{
		P10: []models.DailyEnergy{{Date: "2026-06-21", KWh: 400}, {Date: "2026-06-22", KWh: 380}},
		P50: []models.DailyEnergy{{Date: "2026-06-21", KWh: 450}, {Date: "2026-06-22", KWh: 430}},
		P90: []models.DailyEnergy{{Date: "2026-06-21", KWh: 490}, {Date: "2026-06-22", KWh: 470}},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	version, err := st.MigrationVersion()
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestUpsertPlantRoundtrip(t *testing.T) {
	st := testStore(t)

	site := models.Site{Name: "Desert One", Latitude: 35.4, Longitude: -120.0, ElevationM: 120, Timezone: "America/Los_Angeles"}
	plant := models.PlantConfig{
		PlantName:    "Desert One",
		DCCapacityKW: 120,
		ACCapacityKW: 100,
		Mounting:     models.MountingFixed,
		TiltDeg:      f(20),
		AzimuthDeg:   f(180),
		GCR:          0.35,
	}

	if err := st.UpsertPlant(site, plant); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	gotSite, gotPlant, err := st.GetPlant("Desert One")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotSite == nil || gotPlant == nil {
		t.Fatal("plant not found after upsert")
	}
	if gotSite.Latitude != site.Latitude || gotSite.Timezone != site.Timezone {
		t.Errorf("site = %+v", gotSite)
	}
	if gotPlant.Mounting != models.MountingFixed || *gotPlant.TiltDeg != 20 {
		t.Errorf("plant = %+v", gotPlant)
	}

	// Second upsert replaces.
	plant.ACCapacityKW = 90
	if err := st.UpsertPlant(site, plant); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	_, gotPlant, err = st.GetPlant("Desert One")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if gotPlant.ACCapacityKW != 90 {
		t.Errorf("ac capacity = %v, want 90", gotPlant.ACCapacityKW)
	}
}

func TestGetPlantMissing(t *testing.T) {
	st := testStore(t)
	site, plant, err := st.GetPlant("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if site != nil || plant != nil {
		t.Errorf("missing plant returned %v, %v", site, plant)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	st := testStore(t)

	run := &ForecastRun{
		PlantName:       "Desert One",
		Kind:            "forecast",
		Runs:            40,
		Seed:            7,
		HorizonDays:     2,
		RealDays:        2,
		Note:            "",
		WeatherProvider: "NOAA/NWS api.weather.gov hourly",
		Bands:           testBands(),
	}
	id, err := st.SaveRun(run)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == 0 {
		t.Fatal("save returned id 0")
	}

	got, err := st.GetRun(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.PlantName != "Desert One" || got.Seed != 7 || got.Runs != 40 {
		t.Errorf("run header = %+v", got)
	}
	if got.Bands.Len() != 2 {
		t.Fatalf("band days = %d, want 2", got.Bands.Len())
	}
	if got.Bands.P50[0] != (models.DailyEnergy{Date: "2026-06-21", KWh: 450}) {
		t.Errorf("first p50 = %+v", got.Bands.P50[0])
	}
	if got.Bands.P10[1].KWh != 380 || got.Bands.P90[1].KWh != 470 {
		t.Errorf("second day bands = %+v / %+v", got.Bands.P10[1], got.Bands.P90[1])
	}
}

func TestGetRunMissing(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("missing run returned %+v", got)
	}
}

func TestSaveRunMisalignedBands(t *testing.T) {
	st := testStore(t)
	bands := testBands()
	bands.P10 = bands.P10[:1]
	if _, err := st.SaveRun(&ForecastRun{PlantName: "x", Kind: "forecast", Bands: bands}); err == nil {
		t.Error("misaligned bands should fail to save")
	}
}

func TestListRecentRuns(t *testing.T) {
	st := testStore(t)

	for i := 0; i < 3; i++ {
		run := &ForecastRun{PlantName: "Desert One", Kind: "forecast", Runs: 40, Seed: int64(i), Bands: testBands()}
		if _, err := st.SaveRun(run); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	runs, err := st.ListRecentRuns(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	// Newest first: the last saved run has the highest seed.
	if runs[0].Seed != 2 {
		t.Errorf("first listed seed = %d, want 2", runs[0].Seed)
	}
	if len(runs[0].Bands.P50) != 0 {
		t.Errorf("list should not hydrate bands, got %d days", len(runs[0].Bands.P50))
	}
}

func TestSaveRunKPIs(t *testing.T) {
	st := testStore(t)

	id, err := st.SaveRun(&ForecastRun{PlantName: "Desert One", Kind: "report", Bands: testBands()})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	kpis := []report.DailyKPI{
		{Date: "2026-06-21", POAKWhM2: 7.5, EACKWh: 450, SpecificYield: 3.75, PR: 0.84},
		{Date: "2026-06-22", POAKWhM2: 7.1, EACKWh: 430, SpecificYield: 3.58, PR: 0.85},
	}
	if err := st.SaveRunKPIs(id, kpis); err != nil {
		t.Fatalf("save kpis: %v", err)
	}

	got, err := st.GetRun(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.KPIs) != 2 {
		t.Fatalf("kpi days = %d, want 2", len(got.KPIs))
	}
	if got.KPIs[0] != kpis[0] || got.KPIs[1] != kpis[1] {
		t.Errorf("kpis = %+v, want %+v", got.KPIs, kpis)
	}
}
