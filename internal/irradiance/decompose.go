// Package irradiance converts cloud cover and clear-sky irradiance into
// plane-of-array irradiance: clearness attenuation, Erbs decomposition and
// HDKR transposition.
package irradiance

import (
	"math"
	"time"

	"github.com/pvcast/pvcast/internal/solar"
)

const (
	ktFloor = 0.05
	// Beam is meaningless this close to the horizon; Erbs zeroes DNI there.
	horizonZenithDeg = 89.5
)

// Components are the decomposed horizontal irradiance values in W/m².
type Components struct {
	GHI float64
	DNI float64
	DHI float64
}

// ClearnessFromCloud maps cloud-cover percent to a clearness index. Light
// cloud reduces nearly linearly; above ~70% cover the cubic-plus power law
// attenuates aggressively. Bounded to [0.05, 1] so overcast skies still leave
// diffuse production.
func ClearnessFromCloud(cloudPct float64) float64 {
	c := math.Min(1, math.Max(0, cloudPct/100))
	kt := 1 - 0.75*math.Pow(c, 3.4)
	return math.Min(1, math.Max(ktFloor, kt))
}

// FromCloud attenuates clear-sky GHI by cloud cover and splits the result
// into beam and diffuse with the Erbs correlation. Non-finite or negative
// inputs are clamped to zero; this stage never fails.
func FromCloud(t time.Time, pos solar.Position, cs solar.ClearSky, cloudPct float64) Components {
	if math.IsNaN(cloudPct) || math.IsInf(cloudPct, 0) {
		cloudPct = 100
	}
	ghi := cs.GHI * ClearnessFromCloud(cloudPct)
	if math.IsNaN(ghi) || math.IsInf(ghi, 0) || ghi < 0 {
		ghi = 0
	}
	return Erbs(t, pos.ApparentZenithDeg, ghi)
}

// Erbs decomposes global horizontal irradiance into direct-normal and
// diffuse-horizontal using the Erbs (1982) diffuse-fraction correlation keyed
// by the clearness index against extraterrestrial irradiance.
func Erbs(t time.Time, zenithDeg, ghi float64) Components {
	if ghi <= 0 || zenithDeg >= horizonZenithDeg {
		return Components{GHI: math.Max(0, ghi), DHI: math.Max(0, ghi)}
	}

	cosZen := math.Cos(zenithDeg * math.Pi / 180)
	i0h := solar.ExtraterrestrialWM2(t) * cosZen
	if i0h <= 0 {
		return Components{GHI: ghi, DHI: ghi}
	}

	kt := math.Min(1, math.Max(0, ghi/i0h))

	var df float64
	switch {
	case kt <= 0.22:
		df = 1 - 0.09*kt
	case kt <= 0.80:
		df = 0.9511 - 0.1604*kt + 4.388*kt*kt - 16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		df = 0.165
	}

	dhi := math.Min(ghi, math.Max(0, df*ghi))
	dni := math.Max(0, (ghi-dhi)/cosZen)

	return Components{GHI: ghi, DNI: dni, DHI: dhi}
}
