// Package store persists plant configurations and archived forecast runs in
// SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/report"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ForecastRun is an archived forecast with its bands.
type ForecastRun struct {
	ID              int64        `json:"id"`
	PlantName       string       `json:"plant_name"`
	Kind            string       `json:"kind"`
	Runs            int          `json:"runs"`
	Seed            int64        `json:"seed"`
	HorizonDays     int          `json:"horizon_days"`
	RealDays        int          `json:"real_days"`
	Note            string       `json:"note,omitempty"`
	WeatherProvider string       `json:"weather_provider,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	Bands           models.Bands `json:"bands"`
	// KPIs are present on "report" runs only.
	KPIs []report.DailyKPI `json:"kpis,omitempty"`
}

// UpsertPlant stores or replaces a plant configuration keyed by name.
func (s *Store) UpsertPlant(site models.Site, plant models.PlantConfig) error {
	_, err := s.db.Exec(`
		INSERT INTO plants (plant_name, latitude, longitude, elevation_m, timezone,
			dc_capacity_kw, ac_capacity_kw, mounting, tilt_deg, azimuth_deg,
			gcr, max_tracker_angle_deg, backtracking, poi_limit_kw, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plant_name) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation_m = excluded.elevation_m,
			timezone = excluded.timezone,
			dc_capacity_kw = excluded.dc_capacity_kw,
			ac_capacity_kw = excluded.ac_capacity_kw,
			mounting = excluded.mounting,
			tilt_deg = excluded.tilt_deg,
			azimuth_deg = excluded.azimuth_deg,
			gcr = excluded.gcr,
			max_tracker_angle_deg = excluded.max_tracker_angle_deg,
			backtracking = excluded.backtracking,
			poi_limit_kw = excluded.poi_limit_kw,
			updated_at = excluded.updated_at
	`, plant.PlantName, site.Latitude, site.Longitude, site.ElevationM, site.Timezone,
		plant.DCCapacityKW, plant.ACCapacityKW, string(plant.Mounting), plant.TiltDeg, plant.AzimuthDeg,
		plant.GCR, plant.MaxTrackerAngleDeg, plant.Backtracking, plant.POILimitKW, time.Now().UTC())
	return err
}

// GetPlant loads a stored plant configuration. Returns (nil, nil, nil) when
// the plant is unknown.
func (s *Store) GetPlant(name string) (*models.Site, *models.PlantConfig, error) {
	row := s.db.QueryRow(`
		SELECT plant_name, latitude, longitude, elevation_m, timezone,
			dc_capacity_kw, ac_capacity_kw, mounting, tilt_deg, azimuth_deg,
			gcr, max_tracker_angle_deg, backtracking, poi_limit_kw
		FROM plants WHERE plant_name = ?
	`, name)

	var site models.Site
	var plant models.PlantConfig
	var mounting string
	var tz sql.NullString
	err := row.Scan(&plant.PlantName, &site.Latitude, &site.Longitude, &site.ElevationM, &tz,
		&plant.DCCapacityKW, &plant.ACCapacityKW, &mounting, &plant.TiltDeg, &plant.AzimuthDeg,
		&plant.GCR, &plant.MaxTrackerAngleDeg, &plant.Backtracking, &plant.POILimitKW)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	site.Name = plant.PlantName
	site.Timezone = tz.String
	plant.Mounting = models.Mounting(mounting)
	return &site, &plant, nil
}

// SaveRun archives a forecast run and its per-day bands in one transaction.
func (s *Store) SaveRun(run *ForecastRun) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO forecast_runs (plant_name, kind, runs, seed, horizon_days, real_days, note, weather_provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.PlantName, run.Kind, run.Runs, run.Seed, run.HorizonDays, run.RealDays,
		run.Note, run.WeatherProvider, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i := range run.Bands.P50 {
		if i >= len(run.Bands.P10) || i >= len(run.Bands.P90) {
			return 0, fmt.Errorf("bands misaligned at index %d", i)
		}
		if _, err := tx.Exec(`
			INSERT INTO run_days (run_id, date, p10, p50, p90) VALUES (?, ?, ?, ?, ?)
		`, id, run.Bands.P50[i].Date, run.Bands.P10[i].KWh, run.Bands.P50[i].KWh, run.Bands.P90[i].KWh); err != nil {
			return 0, fmt.Errorf("insert run day %s: %w", run.Bands.P50[i].Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// SaveRunKPIs archives daily KPI rows against an existing run.
func (s *Store) SaveRunKPIs(runID int64, kpis []report.DailyKPI) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range kpis {
		if _, err := tx.Exec(`
			INSERT INTO run_kpis (run_id, date, poa_kwh_m2, eac_kwh, specific_yield, performance_ratio)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, k.Date, k.POAKWhM2, k.EACKWh, k.SpecificYield, k.PR); err != nil {
			return fmt.Errorf("insert kpi %s: %w", k.Date, err)
		}
	}
	return tx.Commit()
}

// GetRun loads a run and its bands. Returns (nil, nil) when missing.
func (s *Store) GetRun(id int64) (*ForecastRun, error) {
	row := s.db.QueryRow(`
		SELECT id, plant_name, kind, runs, seed, horizon_days, real_days, note, weather_provider, created_at
		FROM forecast_runs WHERE id = ?
	`, id)

	var run ForecastRun
	var note, provider sql.NullString
	err := row.Scan(&run.ID, &run.PlantName, &run.Kind, &run.Runs, &run.Seed,
		&run.HorizonDays, &run.RealDays, &note, &provider, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Note = note.String
	run.WeatherProvider = provider.String

	rows, err := s.db.Query(`SELECT date, p10, p50, p90 FROM run_days WHERE run_id = ? ORDER BY date`, id)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var date string
		var p10, p50, p90 float64
		if err := rows.Scan(&date, &p10, &p50, &p90); err != nil {
			rows.Close()
			return nil, err
		}
		run.Bands.P10 = append(run.Bands.P10, models.DailyEnergy{Date: date, KWh: p10})
		run.Bands.P50 = append(run.Bands.P50, models.DailyEnergy{Date: date, KWh: p50})
		run.Bands.P90 = append(run.Bands.P90, models.DailyEnergy{Date: date, KWh: p90})
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	kpiRows, err := s.db.Query(`
		SELECT date, poa_kwh_m2, eac_kwh, specific_yield, performance_ratio
		FROM run_kpis WHERE run_id = ? ORDER BY date
	`, id)
	if err != nil {
		return nil, err
	}
	defer kpiRows.Close()

	for kpiRows.Next() {
		var k report.DailyKPI
		if err := kpiRows.Scan(&k.Date, &k.POAKWhM2, &k.EACKWh, &k.SpecificYield, &k.PR); err != nil {
			return nil, err
		}
		run.KPIs = append(run.KPIs, k)
	}
	if err := kpiRows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecentRuns returns run headers (no bands), newest first.
func (s *Store) ListRecentRuns(limit int) ([]ForecastRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, plant_name, kind, runs, seed, horizon_days, real_days, note, weather_provider, created_at
		FROM forecast_runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ForecastRun
	for rows.Next() {
		var run ForecastRun
		var note, provider sql.NullString
		if err := rows.Scan(&run.ID, &run.PlantName, &run.Kind, &run.Runs, &run.Seed,
			&run.HorizonDays, &run.RealDays, &note, &provider, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Note = note.String
		run.WeatherProvider = provider.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
