// Package pvmodel runs the deterministic PV performance pipeline: weather in,
// hourly AC power out.
package pvmodel

import (
	"errors"
	"math"

	"github.com/pvcast/pvcast/internal/irradiance"
	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/solar"
	"github.com/pvcast/pvcast/internal/tracking"
)

// ErrDataGap marks a weather series that is empty or carries no finite
// samples. The pipeline refuses to model such a series: an all-zero report
// would misrepresent a data outage as zero generation.
var ErrDataGap = errors.New("weather series has no usable samples")

// SAPM open-rack glass/cell/polymer thermal coefficients.
const (
	thermalA      = -3.56
	thermalB      = -0.075
	thermalDeltaT = 3.0

	defaultGammaPerC   = -0.0035
	defaultInverterEff = 0.985

	maxWindMPS = 25.0
)

// Engine is a deterministic PV performance model bound to one site, plant and
// loss configuration. It holds no mutable state; Run may be called
// concurrently.
type Engine struct {
	Site     models.Site
	Plant    models.PlantConfig
	Losses   models.LossTree
	Module   *models.ModuleParams
	Inverter *models.InverterParams
}

// New builds an engine. Inputs are assumed validated at the boundary.
func New(site models.Site, plant models.PlantConfig, losses models.LossTree, module *models.ModuleParams, inverter *models.InverterParams) *Engine {
	return &Engine{Site: site, Plant: plant, Losses: losses, Module: module, Inverter: inverter}
}

// CellTemp estimates cell temperature from plane-of-array irradiance, ambient
// temperature and wind speed with the SAPM empirical thermal model.
func CellTemp(poaWM2, ambientC, windMPS float64) float64 {
	return poaWM2*math.Exp(thermalA+thermalB*windMPS) + ambientC + poaWM2/1000*thermalDeltaT
}

func (e *Engine) gamma() float64 {
	if e.Module != nil && e.Module.GammaPmpPerC != nil {
		return *e.Module.GammaPmpPerC
	}
	return defaultGammaPerC
}

func (e *Engine) inverterEff() float64 {
	if e.Inverter != nil && e.Inverter.EffNominal != nil {
		return *e.Inverter.EffNominal
	}
	return defaultInverterEff
}

func (e *Engine) acLimitKW() float64 {
	limit := e.Plant.ACCapacityKW
	if e.Inverter != nil && e.Inverter.PacMaxKW != nil {
		limit = math.Min(limit, *e.Inverter.PacMaxKW)
	}
	return limit
}

// Run executes the full deterministic pipeline over a weather series:
// solar position, clear sky, cloud attenuation, decomposition, tracking,
// transposition, thermal model, DC/AC conversion, loss tree, POI clamp.
// The output series is aligned one-to-one with the input.
func (e *Engine) Run(wx models.WeatherSeries) (models.PVSeries, error) {
	if len(wx) == 0 || !wx.HasFiniteSample() {
		return nil, ErrDataGap
	}

	gamma := e.gamma()
	invEff := e.inverterEff()
	acLimit := e.acLimitKW()
	derate := e.Losses.DerateFraction()
	avail := e.Losses.AvailabilityFraction()

	out := make(models.PVSeries, 0, len(wx))
	for _, sample := range wx {
		cloud := clamp(finiteOr(sample.CloudPct, 100), 0, 100)
		wind := clamp(finiteOr(sample.WindMPS, 0), 0, maxWindMPS)
		ambient := finiteOr(sample.TempC, 0)

		pos := solar.PositionAt(sample.Time, e.Site.Latitude, e.Site.Longitude, e.Site.ElevationM)
		cs := solar.Ineichen(sample.Time, pos, e.Site.ElevationM)
		comp := irradiance.FromCloud(sample.Time, pos, cs, cloud)

		orient := tracking.ForPlant(e.Plant, e.Site.Latitude, pos.ApparentZenithDeg, pos.AzimuthDeg)
		poa := irradiance.POAGlobal(sample.Time, orient.TiltDeg, orient.AzimuthDeg, pos, comp)

		tcell := CellTemp(poa, ambient, wind)
		pdc := e.Plant.DCCapacityKW * (poa / 1000) * (1 + gamma*(tcell-25))
		pdc = math.Max(0, pdc)

		pac := math.Min(pdc*invEff, acLimit)
		pac *= derate * avail
		if e.Plant.POILimitKW != nil {
			pac = math.Min(pac, *e.Plant.POILimitKW)
		}
		pac = math.Max(0, pac)

		out = append(out, models.PVSample{
			Time:     sample.Time,
			PacKW:    pac,
			POAWM2:   poa,
			CloudPct: cloud,
			TempC:    ambient,
			WindMPS:  wind,
		})
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
