// README: Courier positions and assignment candidates.
package dispatch

import (
	"time"

	"wali/internal/types"
)

// Courier is a courier's last reported position.
type Courier struct {
	ID       types.ID
	Position types.Point
	SeenAt   time.Time
}

// Candidate is a courier proposed for a confirmed order, nearest first.
type Candidate struct {
	CourierID  types.ID    `json:"courier_id"`
	Position   types.Point `json:"position"`
	DistanceKm float64     `json:"distance_km"`
	EtaMinutes int         `json:"eta_minutes"`
	Zone       string      `json:"zone"`
}

type Config struct {
	RadiusKm      float64
	MaxCandidates int
	// PositionMaxAge drops couriers whose last report is older than this.
	PositionMaxAge time.Duration
}
