// Package geo provides great-circle math on WGS84-ish spherical coordinates.
package geo

import "math"

// earthRadiusKM is the mean Earth radius used by the haversine formula.
const earthRadiusKM = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DistanceKM returns the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKM(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKM * c
}

// WeightedCentroid returns the weighted mean of the given points. Weights at
// or below zero are treated as zero contribution; if all weights are zero the
// unweighted mean is returned. Adequate for cluster-scale distances where
// spherical wraparound does not apply.
func WeightedCentroid(points []Point, weights []float64) Point {
	if len(points) == 0 {
		return Point{}
	}

	var latSum, lonSum, weightSum float64
	for i, p := range points {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		if w <= 0 {
			continue
		}
		latSum += p.Lat * w
		lonSum += p.Lon * w
		weightSum += w
	}

	if weightSum == 0 {
		for _, p := range points {
			latSum += p.Lat
			lonSum += p.Lon
		}
		weightSum = float64(len(points))
	}

	return Point{Lat: latSum / weightSum, Lon: lonSum / weightSum}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
