// README: Identifiers and geographic value objects.
package types

type ID string

// Point is an immutable WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Place is a coordinate plus the free-text address the customer typed.
type Place struct {
	Point
	Address string `json:"address" validate:"max=255"`
}
