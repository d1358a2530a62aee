package geo

import (
	"fmt"

	"wali/internal/apperr"
	"wali/internal/types"
)

const (
	ZoneAbidjan  = "abidjan"
	ZoneInterior = "interior"
)

// Region is an axis-aligned lat/lng bounding box.
type Region struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

func (r Region) Contains(p types.Point) bool {
	return p.Lat >= r.MinLat && p.Lat <= r.MaxLat && p.Lng >= r.MinLng && p.Lng <= r.MaxLng
}

// ServiceArea is where orders are accepted. Zones only label points for
// messaging; they never reject anything.
type ServiceArea struct {
	Bounds Region
	Zones  []Region
}

var (
	CoteDIvoire = Region{Name: "cote_divoire", MinLat: 4.35, MaxLat: 10.74, MinLng: -8.60, MaxLng: -2.49}
	Abidjan     = Region{Name: ZoneAbidjan, MinLat: 5.20, MaxLat: 5.60, MinLng: -4.30, MaxLng: -3.70}
)

func DefaultServiceArea() ServiceArea {
	return ServiceArea{Bounds: CoteDIvoire, Zones: []Region{Abidjan}}
}

func (a ServiceArea) Contains(p types.Point) bool {
	return a.Bounds.Contains(p)
}

// Check validates p and rejects it when it falls outside the bounds.
func (a ServiceArea) Check(p types.Point) error {
	if err := ValidatePoint(p); err != nil {
		return err
	}
	if !a.Contains(p) {
		return fmt.Errorf("%w: (%.5f, %.5f) is outside %s", apperr.ErrOutOfServiceArea, p.Lat, p.Lng, a.Bounds.Name)
	}
	return nil
}

// ZoneOf returns the first zone containing p, ZoneInterior for other points
// inside the bounds, and "" outside.
func (a ServiceArea) ZoneOf(p types.Point) string {
	if !a.Contains(p) {
		return ""
	}
	for _, z := range a.Zones {
		if z.Contains(p) {
			return z.Name
		}
	}
	return ZoneInterior
}
