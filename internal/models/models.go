package models

import (
	"fmt"
	"math"
	"time"
)

// Site is the plant location. Elevation is metres above sea level.
type Site struct {
	Name       string  `json:"name,omitempty"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	ElevationM float64 `json:"elevation_m"`
	Timezone   string  `json:"timezone,omitempty"`
}

func (s Site) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %.4f out of range [-90, 90]", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %.4f out of range [-180, 180]", s.Longitude)
	}
	if s.ElevationM < -500 || s.ElevationM > 9000 {
		return fmt.Errorf("elevation %.1f m out of range [-500, 9000]", s.ElevationM)
	}
	return nil
}

// Location returns the site timezone, falling back to UTC when the identifier
// is empty or unknown.
func (s Site) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Mounting string

const (
	MountingFixed Mounting = "FIXED"
	MountingSAT   Mounting = "SAT"
)

// PlantConfig describes the array and interconnection. Tilt and azimuth apply
// to fixed mounts only; GCR, max tracker angle and backtracking apply to
// single-axis tracking. Immutable once validated.
type PlantConfig struct {
	PlantName          string   `json:"plant_name,omitempty"`
	DCCapacityKW       float64  `json:"dc_capacity_kw"`
	ACCapacityKW       float64  `json:"ac_capacity_kw"`
	Mounting           Mounting `json:"mounting"`
	TiltDeg            *float64 `json:"tilt_deg,omitempty"`
	AzimuthDeg         *float64 `json:"azimuth_deg,omitempty"`
	GCR                float64  `json:"gcr"`
	MaxTrackerAngleDeg float64  `json:"max_tracker_angle_deg"`
	Backtracking       bool     `json:"backtracking"`
	POILimitKW         *float64 `json:"poi_limit_kw,omitempty"`
}

// ApplyDefaults fills unset fields with the generic plant assumptions.
func (p *PlantConfig) ApplyDefaults() {
	if p.PlantName == "" {
		p.PlantName = "Unnamed Plant"
	}
	if p.Mounting == "" {
		p.Mounting = MountingSAT
	}
	if p.GCR == 0 {
		p.GCR = 0.35
	}
	if p.MaxTrackerAngleDeg == 0 {
		p.MaxTrackerAngleDeg = 60
	}
}

func (p PlantConfig) Validate() error {
	if p.DCCapacityKW <= 0 {
		return fmt.Errorf("dc_capacity_kw must be > 0, got %.3f", p.DCCapacityKW)
	}
	if p.ACCapacityKW <= 0 {
		return fmt.Errorf("ac_capacity_kw must be > 0, got %.3f", p.ACCapacityKW)
	}
	if p.Mounting != MountingFixed && p.Mounting != MountingSAT {
		return fmt.Errorf("mounting must be FIXED or SAT, got %q", p.Mounting)
	}
	if p.TiltDeg != nil && (*p.TiltDeg < 0 || *p.TiltDeg > 90) {
		return fmt.Errorf("tilt_deg %.1f out of range [0, 90]", *p.TiltDeg)
	}
	if p.AzimuthDeg != nil && (*p.AzimuthDeg < 0 || *p.AzimuthDeg > 360) {
		return fmt.Errorf("azimuth_deg %.1f out of range [0, 360]", *p.AzimuthDeg)
	}
	if p.GCR < 0.1 || p.GCR > 0.9 {
		return fmt.Errorf("gcr %.2f out of range [0.1, 0.9]", p.GCR)
	}
	if p.MaxTrackerAngleDeg < 0 || p.MaxTrackerAngleDeg > 90 {
		return fmt.Errorf("max_tracker_angle_deg %.1f out of range [0, 90]", p.MaxTrackerAngleDeg)
	}
	if p.POILimitKW != nil && *p.POILimitKW <= 0 {
		return fmt.Errorf("poi_limit_kw must be > 0, got %.3f", *p.POILimitKW)
	}
	return nil
}

// LossTree holds named percentage deductions. All entries except availability
// combine multiplicatively as a single derate; availability is a separate
// multiplicative factor.
type LossTree struct {
	SoilingPct      float64 `json:"soiling_pct"`
	SnowPct         float64 `json:"snow_pct"`
	MismatchPct     float64 `json:"mismatch_pct"`
	DCWiringPct     float64 `json:"dc_wiring_pct"`
	ACWiringPct     float64 `json:"ac_wiring_pct"`
	IAMPct          float64 `json:"iam_pct"`
	AuxPct          float64 `json:"aux_pct"`
	AvailabilityPct float64 `json:"availability_pct"`
}

func DefaultLossTree() LossTree {
	return LossTree{
		SoilingPct:      2.0,
		SnowPct:         0.0,
		MismatchPct:     1.5,
		DCWiringPct:     1.0,
		ACWiringPct:     0.5,
		IAMPct:          2.0,
		AuxPct:          0.5,
		AvailabilityPct: 99.0,
	}
}

func (l LossTree) Validate() error {
	checks := []struct {
		name     string
		val      float64
		min, max float64
	}{
		{"soiling_pct", l.SoilingPct, 0, 30},
		{"snow_pct", l.SnowPct, 0, 50},
		{"mismatch_pct", l.MismatchPct, 0, 10},
		{"dc_wiring_pct", l.DCWiringPct, 0, 10},
		{"ac_wiring_pct", l.ACWiringPct, 0, 10},
		{"iam_pct", l.IAMPct, 0, 10},
		{"aux_pct", l.AuxPct, 0, 10},
		{"availability_pct", l.AvailabilityPct, 80, 100},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return fmt.Errorf("%s %.2f out of range [%.0f, %.0f]", c.name, c.val, c.min, c.max)
		}
	}
	return nil
}

// DerateFraction returns the combined multiplicative derate from all losses
// except availability, floored at zero.
func (l LossTree) DerateFraction() float64 {
	sum := l.SoilingPct + l.SnowPct + l.MismatchPct + l.DCWiringPct +
		l.ACWiringPct + l.IAMPct + l.AuxPct
	return math.Max(0, 1-sum/100)
}

// AvailabilityFraction returns availability as a 0..1 factor.
func (l LossTree) AvailabilityFraction() float64 {
	return l.AvailabilityPct / 100
}

// ModuleParams are optional overrides sourced from PAN equipment files.
// Nil fields fall back to generic defaults inside the power model.
type ModuleParams struct {
	PowerSTCW    *float64 `json:"p_stc_w,omitempty"`
	GammaPmpPerC *float64 `json:"gamma_pmp_per_c,omitempty"`
	Bifaciality  *float64 `json:"bifaciality,omitempty"`
}

// InverterParams are optional overrides sourced from OND equipment files.
type InverterParams struct {
	EffNominal *float64 `json:"eff_nominal,omitempty"`
	PacMaxKW   *float64 `json:"pac_max_kw,omitempty"`
}

// WeatherSample is one timestamped weather record.
type WeatherSample struct {
	Time     time.Time `json:"time"`
	TempC    float64   `json:"temp_c"`
	WindMPS  float64   `json:"wind_mps"`
	CloudPct float64   `json:"cloud_pct"`
}

// WeatherSeries is an ordered hourly weather sequence. Invariant after
// Validate: strictly increasing timestamps, cloud in [0,100], wind >= 0.
type WeatherSeries []WeatherSample

func (w WeatherSeries) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("weather series is empty")
	}
	for i := range w {
		if i > 0 && !w[i].Time.After(w[i-1].Time) {
			return fmt.Errorf("weather series not strictly increasing at index %d (%s)", i, w[i].Time)
		}
		if w[i].CloudPct < 0 || w[i].CloudPct > 100 {
			return fmt.Errorf("cloud_pct %.1f out of range at index %d", w[i].CloudPct, i)
		}
		if w[i].WindMPS < 0 {
			return fmt.Errorf("wind_mps %.1f negative at index %d", w[i].WindMPS, i)
		}
	}
	return nil
}

// HasFiniteSample reports whether at least one sample carries finite values.
// A series failing this check is a data outage, not zero generation.
func (w WeatherSeries) HasFiniteSample() bool {
	for _, s := range w {
		if !math.IsNaN(s.TempC) && !math.IsInf(s.TempC, 0) &&
			!math.IsNaN(s.WindMPS) && !math.IsInf(s.WindMPS, 0) &&
			!math.IsNaN(s.CloudPct) && !math.IsInf(s.CloudPct, 0) {
			return true
		}
	}
	return false
}

// PVSample is one hour of modelled plant output aligned to the weather index.
type PVSample struct {
	Time     time.Time `json:"time"`
	PacKW    float64   `json:"pac_kw"`
	POAWM2   float64   `json:"poa_wm2"`
	CloudPct float64   `json:"cloud_pct"`
	TempC    float64   `json:"temp_c"`
	WindMPS  float64   `json:"wind_mps"`
}

// PVSeries is created fresh per model run and never mutated afterwards.
type PVSeries []PVSample

// DailyEnergy is one local-calendar-day energy total. Date is an ISO date in
// the plant's local timezone.
type DailyEnergy struct {
	Date string  `json:"date"`
	KWh  float64 `json:"kwh"`
}

// Bands are the P10/P50/P90 daily-energy sequences, index-aligned by date.
type Bands struct {
	P10 []DailyEnergy `json:"p10"`
	P50 []DailyEnergy `json:"p50"`
	P90 []DailyEnergy `json:"p90"`
}

// Len returns the number of dates in the bands.
func (b Bands) Len() int { return len(b.P50) }
