package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Position is the sun's apparent position for one instant at one site.
// Zenith and elevation are refraction-corrected; azimuth is degrees clockwise
// from north.
type Position struct {
	ApparentZenithDeg    float64
	ApparentElevationDeg float64
	AzimuthDeg           float64
	DeclinationDeg       float64
	EqOfTimeMin          float64
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// PositionAt computes the apparent solar position using the NOAA low-precision
// ephemeris on Meeus julian centuries. Altitude feeds the refraction
// correction through the standard-atmosphere pressure ratio.
func PositionAt(t time.Time, latDeg, lonDeg, altM float64) Position {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C
	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))
	declRad := math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps)/2) * math.Tan(degToRad(eps)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	ut := t.UTC()
	utcMin := float64(ut.Hour()*60+ut.Minute()) + float64(ut.Second())/60.0
	tst := utcMin + 4*lonDeg + eqTimeMin
	haDeg := tst/4 - 180
	for haDeg < -180 {
		haDeg += 360
	}
	for haDeg > 180 {
		haDeg -= 360
	}
	haRad := degToRad(haDeg)

	latRad := degToRad(latDeg)
	cosZen := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zenRad := math.Acos(cosZen)
	elDeg := 90 - radToDeg(zenRad)

	azDeg := 180.0
	azDen := math.Cos(latRad) * math.Sin(zenRad)
	if math.Abs(azDen) > 1e-9 {
		azNum := math.Sin(declRad) - math.Sin(latRad)*cosZen
		azCos := math.Max(-1, math.Min(1, azNum/azDen))
		azDeg = radToDeg(math.Acos(azCos))
		if haDeg > 0 {
			azDeg = 360 - azDeg
		}
	}

	appElDeg := elDeg + refractionDeg(elDeg)*pressureRatio(altM)

	return Position{
		ApparentZenithDeg:    90 - appElDeg,
		ApparentElevationDeg: appElDeg,
		AzimuthDeg:           azDeg,
		DeclinationDeg:       radToDeg(declRad),
		EqOfTimeMin:          eqTimeMin,
	}
}

// refractionDeg is the NOAA piecewise atmospheric refraction correction for a
// true elevation angle, in degrees.
func refractionDeg(elDeg float64) float64 {
	switch {
	case elDeg > 85:
		return 0
	case elDeg > 5:
		te := math.Tan(degToRad(elDeg))
		return (58.1/te - 0.07/(te*te*te) + 0.000086/math.Pow(te, 5)) / 3600
	case elDeg > -0.575:
		return (1735 + elDeg*(-518.2+elDeg*(103.4+elDeg*(-12.79+elDeg*0.711)))) / 3600
	default:
		return -20.772 / math.Tan(degToRad(elDeg)) / 3600
	}
}

// pressureRatio approximates station pressure over sea-level pressure for the
// standard atmosphere. Refraction scales with air density.
func pressureRatio(altM float64) float64 {
	return math.Exp(-altM / 8434.5)
}
