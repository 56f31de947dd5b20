// Package tracking derives per-timestep panel orientation for fixed-tilt and
// horizontal single-axis-tracking arrays.
package tracking

import (
	"math"

	"github.com/pvcast/pvcast/internal/models"
)

// Orientation is the panel surface attitude for one timestep, in degrees.
type Orientation struct {
	TiltDeg    float64
	AzimuthDeg float64
}

const (
	defaultFixedTilt = 20.0
	restAzimuth      = 180.0
)

// Fixed returns the constant orientation of a fixed-tilt array. Unset tilt
// defaults to 20°. Unset azimuth faces the equator: 180° (south) at northern
// latitudes, 0° (north) at southern latitudes.
func Fixed(latDeg float64, tiltDeg, azimuthDeg *float64) Orientation {
	o := Orientation{TiltDeg: defaultFixedTilt, AzimuthDeg: restAzimuth}
	if latDeg < 0 {
		o.AzimuthDeg = 0
	}
	if tiltDeg != nil {
		o.TiltDeg = *tiltDeg
	}
	if azimuthDeg != nil {
		o.AzimuthDeg = *azimuthDeg
	}
	return o
}

// SingleAxis computes the orientation of a horizontal north-south-axis
// tracker for one solar position. The rotation is bounded by maxAngleDeg;
// with backtracking enabled the angle is pulled toward flat to keep rows from
// shading each other, using the ground coverage ratio. Below the horizon the
// tracker rests flat facing south.
func SingleAxis(zenithDeg, azimuthDeg, maxAngleDeg, gcr float64, backtrack bool) Orientation {
	if zenithDeg >= 90 {
		return Orientation{TiltDeg: 0, AzimuthDeg: restAzimuth}
	}

	zen := zenithDeg * math.Pi / 180
	az := azimuthDeg * math.Pi / 180

	// Projection of the sun vector onto the east-west rotation plane.
	// Positive rotation tips the panels west.
	rot := math.Atan2(math.Sin(zen)*math.Sin(az-math.Pi), math.Cos(zen))

	if backtrack && gcr > 0 {
		arg := math.Cos(rot) / gcr
		if arg < 1 {
			wc := math.Acos(math.Max(-1, math.Min(1, arg)))
			if rot >= 0 {
				rot -= wc
			} else {
				rot += wc
			}
		}
	}

	maxRot := maxAngleDeg * math.Pi / 180
	rot = math.Max(-maxRot, math.Min(maxRot, rot))

	tilt := math.Abs(rot) * 180 / math.Pi
	azOut := 90.0 // rotated toward east
	if rot > 0 {
		azOut = 270.0 // rotated toward west
	}
	if rot == 0 {
		azOut = restAzimuth
	}
	if math.IsNaN(tilt) {
		return Orientation{TiltDeg: 0, AzimuthDeg: restAzimuth}
	}
	return Orientation{TiltDeg: tilt, AzimuthDeg: azOut}
}

// ForPlant resolves the orientation for a timestep from the plant mounting
// configuration.
func ForPlant(plant models.PlantConfig, latDeg, zenithDeg, azimuthDeg float64) Orientation {
	if plant.Mounting == models.MountingSAT {
		return SingleAxis(zenithDeg, azimuthDeg, plant.MaxTrackerAngleDeg, plant.GCR, plant.Backtracking)
	}
	return Fixed(latDeg, plant.TiltDeg, plant.AzimuthDeg)
}
