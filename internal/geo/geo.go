// Package geo holds the spherical-geometry helpers shared by the
// estimator and the renderer: longitude wrapping, orthographic
// projection and the coarse region lookup behind the HUD "OVER" field.
package geo

import (
	"math"
)

// WrapLongitude normalizes a longitude or longitude delta into (-180, 180].
// Deltas that span the antimeridian come out as the short way around, so
// 179° -> -179° is a +2° step, not a -358° one.
func WrapLongitude(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}

// ClampLatitude limits a latitude to [-90, 90].
func ClampLatitude(deg float64) float64 {
	if deg > 90 {
		return 90
	}
	if deg < -90 {
		return -90
	}
	return deg
}

// CosC returns the cosine of the angular distance between a surface point
// and the sub-view point of an orthographic projection centered on the
// equator at viewLon. Positive values face the viewer.
func CosC(lat, lon, viewLon float64) float64 {
	return math.Cos(rad(lat)) * math.Cos(rad(lon-viewLon))
}

// HorizonThreshold returns the CosC below which a point raised above the
// surface by orbitScale (>1) slips behind the limb. At scale 1.0 the
// horizon sits exactly at CosC = 0.
func HorizonThreshold(orbitScale float64) float64 {
	if orbitScale <= 1 {
		return 0
	}
	return -math.Sqrt(1 - 1/(orbitScale*orbitScale))
}

// ProjectOrtho maps lat/lon to screen coordinates for a globe of radius
// radiusPx centered at (cx, cy), viewed from above the equator at viewLon.
// Screen Y grows downward. The returned cosC is the view-axis depth of the
// point; callers decide visibility from it.
func ProjectOrtho(lat, lon, viewLon, orbitScale float64, cx, cy, radiusPx int) (x, y int, cosC float64) {
	r := orbitScale * float64(radiusPx)
	x = cx + int(math.Round(r*math.Cos(rad(lat))*math.Sin(rad(lon-viewLon))))
	y = cy - int(math.Round(r*math.Sin(rad(lat))))
	cosC = CosC(lat, lon, viewLon)
	return x, y, cosC
}

// HaversineKm returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const radius = 6371.0
	phi1 := rad(lat1)
	phi2 := rad(lat2)
	dPhi := rad(lat2 - lat1)
	dLambda := rad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return radius * c
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}
