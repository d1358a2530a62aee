package geo

import (
	"fmt"
	"math"

	"wali/internal/apperr"
	"wali/internal/types"
)

const (
	// AverageSpeedKmh is the assumed door-to-door courier speed in Abidjan traffic.
	AverageSpeedKmh = 25.0
	// MinEstimatedMinutes covers pickup and handoff even for trivially short trips.
	MinEstimatedMinutes = 5
)

// Estimate is a straight-line distance and a travel-time guess. It is not a
// road-network route.
type Estimate struct {
	Km      float64
	Minutes int
}

// ValidatePoint rejects NaN, infinities and out-of-range degrees.
func ValidatePoint(p types.Point) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: not a finite number (%v, %v)", apperr.ErrInvalidCoordinate, p.Lat, p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90,90]", apperr.ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180,180]", apperr.ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// Distance returns the haversine distance between a and b together with an
// estimated travel time at AverageSpeedKmh, rounded up and floored at
// MinEstimatedMinutes.
func Distance(a, b types.Point) (Estimate, error) {
	if err := ValidatePoint(a); err != nil {
		return Estimate{}, err
	}
	if err := ValidatePoint(b); err != nil {
		return Estimate{}, err
	}
	km := haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
	return Estimate{Km: km, Minutes: EstimateMinutes(km)}, nil
}

func EstimateMinutes(km float64) int {
	m := int(math.Ceil(km / AverageSpeedKmh * 60))
	if m < MinEstimatedMinutes {
		return MinEstimatedMinutes
	}
	return m
}
