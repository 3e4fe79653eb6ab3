package hbot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/gpio"
)

// HomingState is the progress of the calibration routine.
type HomingState string

const (
	Unhomed       HomingState = "UNHOMED"
	TouchingAxis1 HomingState = "TOUCHING_AXIS_1"
	BackedOff1    HomingState = "BACKED_OFF_1"
	TouchingAxis2 HomingState = "TOUCHING_AXIS_2"
	BackedOff2    HomingState = "BACKED_OFF_2"
	Homed         HomingState = "HOMED"
)

// axis describes how to reach one limit switch. dir1/dir2 are the motor senses (+1/-1)
// that move the carriage toward the stop.
type axis struct {
	name       string
	sw         gpio.Input
	dir1, dir2 int
	touching   HomingState
	backedOff  HomingState
}

func (g *Gantry) State() HomingState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnStateChange registers fn to be called after every homing transition.
func (g *Gantry) OnStateChange(fn func(HomingState)) {
	g.mu.Lock()
	g.onState = fn
	g.mu.Unlock()
}

func (g *Gantry) setState(s HomingState) {
	g.mu.Lock()
	g.state = s
	fn := g.onState
	g.mu.Unlock()
	g.logger.Info("homing_state", zap.String("state", string(s)))
	if fn != nil {
		fn(s)
	}
}

// Home runs the calibration routine: for each axis, leave the switch if already pressed,
// drive slowly into it, stop, back off and settle. On success the pose is (0, 0).
// On failure the motors are stopped and the gantry stays UNHOMED.
func (g *Gantry) Home(ctx context.Context) error {
	g.invalidate()
	g.setState(Unhomed)

	if err := g.setMagnet(g.opts.HomingMagnet); err != nil {
		return fmt.Errorf("homing: %w", err)
	}

	axes := []axis{
		{name: "axis1", sw: g.limit1, dir1: 1, dir2: -1, touching: TouchingAxis1, backedOff: BackedOff1},
		{name: "axis2", sw: g.limit2, dir1: 1, dir2: 1, touching: TouchingAxis2, backedOff: BackedOff2},
	}
	for _, a := range axes {
		if err := g.homeAxis(ctx, a); err != nil {
			g.Halt()
			return fmt.Errorf("homing %s: %w", a.name, err)
		}
	}

	g.mu.Lock()
	g.pose = domain.Point{}
	g.homed = true
	g.mu.Unlock()
	g.setState(Homed)
	return nil
}

func (g *Gantry) homeAxis(ctx context.Context, a axis) error {
	if a.sw.Active() {
		g.logger.Info("homing_release_switch", zap.String("axis", a.name), zap.Int("steps", g.opts.ReleaseSteps))
		g.step(-a.dir1*g.opts.ReleaseSteps, -a.dir2*g.opts.ReleaseSteps)
		g.Settle()
	}

	g.setState(a.touching)
	g.m1.TurnContinuous(g.sign1(a.dir1) > 0, g.opts.SlowPeriod)
	g.m2.TurnContinuous(g.sign2(a.dir2) > 0, g.opts.SlowPeriod)

	err := g.waitActive(ctx, a.sw)
	g.m1.Stop()
	g.m2.Stop()
	if err != nil {
		return err
	}

	g.step(-a.dir1*g.opts.BackoffSteps, -a.dir2*g.opts.BackoffSteps)
	g.Settle()
	g.setState(a.backedOff)
	return nil
}

// step runs both motors by raw counts at slow speed, bypassing the pose.
func (g *Gantry) step(s1, s2 int) {
	g.dispatch(NewSchedule(g.sign1(s1), g.sign2(s2), g.opts.SlowPeriod))
}
