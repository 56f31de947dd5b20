package solar

import (
	"math"
	"time"
)

// ClearSky carries the three clear-sky irradiance components in W/m².
type ClearSky struct {
	GHI float64
	DNI float64
	DHI float64
}

const (
	solarConstant = 1366.1
	// Linke turbidity for a clean mid-latitude atmosphere. The Ineichen model
	// takes this as its only tuning knob; a constant keeps the pipeline
	// deterministic without a turbidity climatology.
	linkeTurbidity = 3.0
)

// ExtraterrestrialWM2 is the normal-incidence extraterrestrial irradiance for
// a day of year, including the Earth-Sun distance correction.
func ExtraterrestrialWM2(t time.Time) float64 {
	doy := float64(t.UTC().YearDay())
	return solarConstant * (1 + 0.033*math.Cos(2*math.Pi*doy/365))
}

// AirmassKastenYoung is the Kasten-Young (1989) relative airmass for an
// apparent zenith angle in degrees. Infinite below the horizon.
func AirmassKastenYoung(apparentZenithDeg float64) float64 {
	if apparentZenithDeg >= 90 {
		return math.Inf(1)
	}
	z := apparentZenithDeg
	return 1 / (math.Cos(degToRad(z)) + 0.50572*math.Pow(96.07995-z, -1.6364))
}

// Ineichen computes clear-sky GHI/DNI/DHI with the Ineichen-Perez model at a
// fixed Linke turbidity. All components are zero when the sun is below the
// horizon and never negative.
func Ineichen(t time.Time, pos Position, altM float64) ClearSky {
	cosZen := math.Cos(degToRad(pos.ApparentZenithDeg))
	if cosZen <= 0 {
		return ClearSky{}
	}

	i0 := ExtraterrestrialWM2(t)
	am := AirmassKastenYoung(pos.ApparentZenithDeg) * pressureRatio(altM)

	fh1 := math.Exp(-altM / 8000)
	fh2 := math.Exp(-altM / 1250)
	cg1 := 5.09e-5*altM + 0.868
	cg2 := 3.92e-5*altM + 0.0387
	tl := linkeTurbidity

	ghi := cg1 * i0 * cosZen * math.Exp(-cg2*am*(fh1+fh2*(tl-1))) * math.Exp(0.01*math.Pow(am, 1.8))
	ghi = math.Max(0, ghi)

	b := 0.664 + 0.163/fh1
	dni := b * i0 * math.Exp(-0.09*am*(tl-1))
	// Empirical ceiling keeps the beam consistent with the global component
	// near the horizon.
	dniMax := ghi * (1 - (0.1-0.2*math.Exp(-tl))/(0.1+0.882/fh1)) / cosZen
	dni = math.Max(0, math.Min(dni, dniMax))

	dhi := math.Max(0, ghi-dni*cosZen)

	return ClearSky{GHI: ghi, DNI: dni, DHI: dhi}
}
