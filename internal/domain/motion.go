package domain

import "fmt"

// Point is a gantry coordinate in step units, origin at the homed corner.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// Speed selects one of the two per-step periods of the gantry.
type Speed int

const (
	// Fast is used for free travel without a piece.
	Fast Speed = iota
	// Slow is used whenever a piece is attached.
	Slow
)

func (s Speed) String() string {
	if s == Slow {
		return "slow"
	}
	return "fast"
}

// MagnetState is the servo-driven carriage magnet position.
type MagnetState string

const (
	MagnetUnknown    MagnetState = ""
	MagnetEngaged    MagnetState = "engaged"
	MagnetDisengaged MagnetState = "disengaged"
)
