package irradiance

import (
	"math"
	"time"

	"github.com/pvcast/pvcast/internal/solar"
)

const groundAlbedo = 0.2

// AOIProjection returns cos(angle of incidence) between the sun vector and
// the panel normal, floored at zero.
func AOIProjection(surfTiltDeg, surfAzDeg, zenithDeg, solarAzDeg float64) float64 {
	tilt := surfTiltDeg * math.Pi / 180
	zen := zenithDeg * math.Pi / 180
	azDiff := (solarAzDeg - surfAzDeg) * math.Pi / 180

	cosAOI := math.Cos(tilt)*math.Cos(zen) + math.Sin(tilt)*math.Sin(zen)*math.Cos(azDiff)
	return math.Max(0, cosAOI)
}

// POAGlobal transposes decomposed horizontal irradiance onto a tilted surface
// with the HDKR sky-diffuse model: isotropic diffuse plus circumsolar
// (anisotropy index) and horizon-brightening terms, plus beam and ground
// reflection. Result is W/m², never negative.
func POAGlobal(t time.Time, surfTiltDeg, surfAzDeg float64, pos solar.Position, comp Components) float64 {
	if comp.GHI <= 0 {
		return 0
	}

	cosAOI := AOIProjection(surfTiltDeg, surfAzDeg, pos.ApparentZenithDeg, pos.AzimuthDeg)
	beam := comp.DNI * cosAOI

	tiltRad := surfTiltDeg * math.Pi / 180
	isoFactor := (1 + math.Cos(tiltRad)) / 2
	groundFactor := (1 - math.Cos(tiltRad)) / 2

	// Guard against division blowup at grazing zenith.
	cosZen := math.Max(math.Cos(pos.ApparentZenithDeg*math.Pi/180), math.Cos(horizonZenithDeg*math.Pi/180))

	e0 := solar.ExtraterrestrialWM2(t)
	ai := 0.0
	if e0 > 0 {
		ai = math.Min(1, comp.DNI/e0)
	}
	rb := cosAOI / cosZen

	beamH := comp.DNI * cosZen
	f := 0.0
	if comp.GHI > 0 && beamH > 0 {
		f = math.Sqrt(math.Min(1, beamH/comp.GHI))
	}
	horizon := 1 + f*math.Pow(math.Sin(tiltRad/2), 3)

	skyDiffuse := comp.DHI * (ai*rb + (1-ai)*isoFactor*horizon)
	groundReflected := comp.GHI * groundAlbedo * groundFactor

	poa := beam + skyDiffuse + groundReflected
	if math.IsNaN(poa) || math.IsInf(poa, 0) || poa < 0 {
		return 0
	}
	return poa
}
