package hbot

import (
	"sync"

	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/gpio"
)

// SimRig is an in-memory carriage for running without a Pi. It counts step pulses on the
// simulated step pins and derives the carriage position; each limit switch is pressed while
// the carriage is at or beyond its stop.
type SimRig struct {
	Motor1Step, Motor1Dir *gpio.SimPin
	Motor2Step, Motor2Dir *gpio.SimPin
	Servo                 *gpio.SimServo

	mu     sync.Mutex
	c1, c2 int
}

// NewSimRig places the carriage at start, measured from the switch stops.
func NewSimRig(start domain.Point) *SimRig {
	r := &SimRig{
		Motor1Step: gpio.NewSimPin(),
		Motor1Dir:  gpio.NewSimPin(),
		Motor2Step: gpio.NewSimPin(),
		Motor2Dir:  gpio.NewSimPin(),
		Servo:      &gpio.SimServo{},
	}
	// inverse of MotorSteps
	r.c1 = -start.X - start.Y
	r.c2 = -start.X + start.Y
	r.Motor1Step.OnRise(func() { r.pulse(&r.c1, r.Motor1Dir) })
	r.Motor2Step.OnRise(func() { r.pulse(&r.c2, r.Motor2Dir) })
	return r
}

func (r *SimRig) pulse(count *int, dir *gpio.SimPin) {
	forward := dir.Level()
	r.mu.Lock()
	if forward {
		*count++
	} else {
		*count--
	}
	r.mu.Unlock()
}

// Position is the carriage location relative to the stops, in (possibly half) steps rounded down.
func (r *SimRig) Position() domain.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Point{X: floorHalf(-(r.c1 + r.c2)), Y: floorHalf(r.c2 - r.c1)}
}

// Limit1 is the switch of the y stop, Limit2 the switch of the x stop.
func (r *SimRig) Limit1() gpio.Input { return simLimit{rig: r, y: true} }
func (r *SimRig) Limit2() gpio.Input { return simLimit{rig: r} }

type simLimit struct {
	rig *SimRig
	y   bool
}

func (l simLimit) Active() bool {
	p := l.rig.Position()
	if l.y {
		return p.Y <= 0
	}
	return p.X <= 0
}

func floorHalf(v int) int {
	if v < 0 {
		return -((-v + 1) / 2)
	}
	return v / 2
}
