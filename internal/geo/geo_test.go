package geo

import (
	"math"
	"testing"
)

func TestDistanceKM(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		expected  float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Lat: 50.4501, Lon: 30.5234},
			b:         Point{Lat: 50.4501, Lon: 30.5234},
			expected:  0,
			tolerance: 0.001,
		},
		{
			name:      "kyiv to kharkiv",
			a:         Point{Lat: 50.4501, Lon: 30.5234},
			b:         Point{Lat: 49.9935, Lon: 36.2304},
			expected:  409,
			tolerance: 5,
		},
		{
			name:      "one degree of latitude",
			a:         Point{Lat: 0, Lon: 0},
			b:         Point{Lat: 1, Lon: 0},
			expected:  111.19,
			tolerance: 0.1,
		},
		{
			name:      "short hop within a city",
			a:         Point{Lat: 50.4501, Lon: 30.5234},
			b:         Point{Lat: 50.4590, Lon: 30.5234},
			expected:  0.99,
			tolerance: 0.02,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKM(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("DistanceKM() = %.4f, want %.4f (±%.3f)", got, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestDistanceKMSymmetric(t *testing.T) {
	a := Point{Lat: 50.4501, Lon: 30.5234}
	b := Point{Lat: 49.9935, Lon: 36.2304}
	if d1, d2 := DistanceKM(a, b), DistanceKM(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %.9f vs %.9f", d1, d2)
	}
}

func TestWeightedCentroid(t *testing.T) {
	tests := []struct {
		name     string
		points   []Point
		weights  []float64
		expected Point
	}{
		{
			name:     "empty",
			points:   nil,
			weights:  nil,
			expected: Point{},
		},
		{
			name:     "single point",
			points:   []Point{{Lat: 10, Lon: 20}},
			weights:  []float64{0.5},
			expected: Point{Lat: 10, Lon: 20},
		},
		{
			name:     "equal weights give midpoint",
			points:   []Point{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 4}},
			weights:  []float64{1, 1},
			expected: Point{Lat: 1, Lon: 2},
		},
		{
			name:     "heavier point dominates",
			points:   []Point{{Lat: 0, Lon: 0}, {Lat: 4, Lon: 0}},
			weights:  []float64{3, 1},
			expected: Point{Lat: 1, Lon: 0},
		},
		{
			name:     "all zero weights fall back to unweighted mean",
			points:   []Point{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 2}},
			weights:  []float64{0, 0},
			expected: Point{Lat: 1, Lon: 1},
		},
		{
			name:     "missing weights default to one",
			points:   []Point{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 2}},
			weights:  nil,
			expected: Point{Lat: 1, Lon: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedCentroid(tt.points, tt.weights)
			if math.Abs(got.Lat-tt.expected.Lat) > 1e-9 || math.Abs(got.Lon-tt.expected.Lon) > 1e-9 {
				t.Errorf("WeightedCentroid() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}
