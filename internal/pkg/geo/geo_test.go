package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{
			name: "same point",
			a:    Point{Latitude: 41.3111, Longitude: 69.2797},
			b:    Point{Latitude: 41.3111, Longitude: 69.2797},
			want: 0,
			tol:  0.001,
		},
		{
			name: "one degree of latitude",
			a:    Point{Latitude: 0, Longitude: 0},
			b:    Point{Latitude: 1, Longitude: 0},
			want: 111195,
			tol:  100,
		},
		{
			name: "tashkent to samarkand",
			a:    Point{Latitude: 41.2995, Longitude: 69.2401},
			b:    Point{Latitude: 39.6270, Longitude: 66.9750},
			want: 263000,
			tol:  5000,
		},
		{
			name: "across the antimeridian",
			a:    Point{Latitude: 0, Longitude: 179.9},
			b:    Point{Latitude: 0, Longitude: -179.9},
			want: 22239,
			tol:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, tt.tol)
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{Latitude: 41.3111, Longitude: 69.2797}
	b := Point{Latitude: 41.2995, Longitude: 69.2401}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestWithinTolerance(t *testing.T) {
	checker := NewChecker()

	org := Point{Latitude: 41.3111, Longitude: 69.2797, Accuracy: 100}

	t.Run("inside combined tolerance", func(t *testing.T) {
		// Roughly 120m north of the org, reported accuracy 20m.
		// Combined allowance: 100 + 20 + 50 = 170m.
		scan := Point{Latitude: 41.3111 + 120/111195.0, Longitude: 69.2797, Accuracy: 20}
		assert.True(t, checker.WithinTolerance(scan, org))
	})

	t.Run("just past combined tolerance", func(t *testing.T) {
		// tolerance + 100 meters away must be rejected.
		scan := Point{Latitude: 41.3111 + 270/111195.0, Longitude: 69.2797, Accuracy: 20}
		assert.False(t, checker.WithinTolerance(scan, org))
	})

	t.Run("unreported accuracy falls back to default", func(t *testing.T) {
		// 600m away but the default 500m accuracy plus org 100m covers it.
		scan := Point{Latitude: 41.3111 + 600/111195.0, Longitude: 69.2797}
		assert.True(t, checker.WithinTolerance(scan, org))
	})

	t.Run("symmetric", func(t *testing.T) {
		scan := Point{Latitude: 41.3125, Longitude: 69.2801, Accuracy: 30}
		assert.Equal(t, checker.WithinTolerance(scan, org), checker.WithinTolerance(org, scan))
	})
}

func TestToleranceDefaults(t *testing.T) {
	checker := Checker{DefaultAccuracy: 500, FixedMargin: 50}

	assert.Equal(t, 500.0, checker.tolerance(Point{}))
	assert.Equal(t, 42.0, checker.tolerance(Point{Accuracy: 42}))
	assert.False(t, math.IsNaN(Distance(Point{Latitude: 90}, Point{Latitude: -90})))
}
