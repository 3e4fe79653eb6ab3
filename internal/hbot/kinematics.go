package hbot

import "time"

// MotorSteps maps a Cartesian displacement to the signed step counts of the two motors.
// Both motors drive one belt loop, so each axis is a sum of the two rotations.
func MotorSteps(dx, dy int) (s1, s2 int) {
	return -dx - dy, -dx + dy
}

// Schedule is the pair of step commands for one straight-line move.
// A motor with zero steps has zero period and is not commanded.
type Schedule struct {
	Steps1, Steps2   int
	Period1, Period2 time.Duration
}

// Duration is the common wall time D of the move.
func (s Schedule) Duration() time.Duration {
	return max(time.Duration(abs(s.Steps1))*s.Period1, time.Duration(abs(s.Steps2))*s.Period2)
}

// NewSchedule picks per-motor periods so both motors finish together.
// The motor with more steps runs at base; the other is slowed to D/|s|.
func NewSchedule(s1, s2 int, base time.Duration) Schedule {
	sched := Schedule{Steps1: s1, Steps2: s2}
	longest := max(abs(s1), abs(s2))
	if longest == 0 {
		return sched
	}
	total := time.Duration(longest) * base
	if s1 != 0 {
		sched.Period1 = total / time.Duration(abs(s1))
	}
	if s2 != 0 {
		sched.Period2 = total / time.Duration(abs(s2))
	}
	return sched
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
