package labreg

import "time"

// MovementStatus records whether a device is physically on premises.
type MovementStatus string

const (
	MovementIn  MovementStatus = "in"
	MovementOut MovementStatus = "out"
)

// Movement is one entry in a device's physical in/out history. Movements
// are purely local bookkeeping; the backend never sees them.
type Movement struct {
	At     time.Time      `json:"at"`
	Status MovementStatus `json:"status"`
	Note   string         `json:"note,omitempty"`
}
