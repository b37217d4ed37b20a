package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a GPS reading. Accuracy is the reported accuracy radius in
// meters; zero means the client did not report one.
type Point struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Checker decides whether two points are close enough to count as the same
// place, absorbing reported GPS accuracy plus a fixed jitter margin.
type Checker struct {
	DefaultAccuracy float64
	FixedMargin     float64
}

// NewChecker returns a Checker with the service defaults: 500m assumed
// accuracy for unreported readings and a 50m jitter margin.
func NewChecker() Checker {
	return Checker{DefaultAccuracy: 500, FixedMargin: 50}
}

// Distance returns the great-circle distance between two points in meters
// using the haversine formula.
func Distance(a, b Point) float64 {
	φ1 := a.Latitude * math.Pi / 180.0
	φ2 := b.Latitude * math.Pi / 180.0
	Δφ := (b.Latitude - a.Latitude) * math.Pi / 180.0
	Δλ := (b.Longitude - a.Longitude) * math.Pi / 180.0

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// WithinTolerance reports whether the distance between a and b is covered by
// the sum of both points' accuracy radii plus the fixed margin.
func (c Checker) WithinTolerance(a, b Point) bool {
	return Distance(a, b) <= c.tolerance(a)+c.tolerance(b)+c.FixedMargin
}

func (c Checker) tolerance(p Point) float64 {
	if p.Accuracy <= 0 {
		return c.DefaultAccuracy
	}
	return p.Accuracy
}
