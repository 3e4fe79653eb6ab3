// Package hbot controls the two-motor H-bot gantry and its magnet carriage.
package hbot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/config"
	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/gpio"
	"github.com/paga2004/robochess/internal/obslog"
)

var (
	ErrNotHomed      = errors.New("gantry is not homed")
	ErrHomingTimeout = errors.New("limit switch did not trigger in time")
)

// Motor is one stepper channel. *stepper.Driver implements it.
type Motor interface {
	TurnSteps(period time.Duration, steps int)
	TurnContinuous(forward bool, period time.Duration)
	Stop()
	Wait()
}

// Options are the mechanical limits and timings of the gantry.
type Options struct {
	XMax, YMax int

	SlowPeriod  time.Duration
	FastPeriod  time.Duration
	SettleDelay time.Duration

	InvertMotor1 bool
	InvertMotor2 bool

	EngagePulse  time.Duration
	ReleasePulse time.Duration

	HomingMagnet  domain.MagnetState
	BackoffSteps  int
	ReleaseSteps  int
	HomingTimeout time.Duration
	PollDelay     time.Duration

	// Sleep replaces time.Sleep for settle delays; tests install a recorder.
	Sleep func(time.Duration)
}

// OptionsFromConfig converts the application config. The servo minimum pulse engages the magnet.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	m := cfg.Motion
	return Options{
		XMax:          cfg.Geometry.XMax,
		YMax:          cfg.Geometry.YMax,
		SlowPeriod:    m.SlowPeriod,
		FastPeriod:    m.FastPeriod,
		SettleDelay:   m.SettleDelay,
		InvertMotor1:  m.InvertMotor1,
		InvertMotor2:  m.InvertMotor2,
		EngagePulse:   m.ServoMinPulse,
		ReleasePulse:  m.ServoMaxPulse,
		HomingMagnet:  domain.MagnetState(m.HomingMagnet),
		BackoffSteps:  m.BackoffSteps,
		ReleaseSteps:  m.ReleaseSteps,
		HomingTimeout: m.HomingTimeout,
		PollDelay:     m.LimitPollDelay,
	}
}

// Gantry tracks the carriage pose in step units and owns both motors, the limit switches and
// the magnet servo. Motion calls are not safe for concurrent use; the readers (Pose, Magnet,
// State) are.
type Gantry struct {
	m1, m2         Motor
	limit1, limit2 gpio.Input
	servo          gpio.PWM
	opts           Options
	logger         *zap.Logger

	mu      sync.Mutex
	pose    domain.Point
	homed   bool
	magnet  domain.MagnetState
	state   HomingState
	onState func(HomingState)
}

func New(m1, m2 Motor, limit1, limit2 gpio.Input, servo gpio.PWM, opts Options, logger *zap.Logger) *Gantry {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.PollDelay <= 0 {
		opts.PollDelay = time.Millisecond
	}
	if opts.HomingMagnet == domain.MagnetUnknown {
		opts.HomingMagnet = domain.MagnetEngaged
	}
	return &Gantry{
		m1:     m1,
		m2:     m2,
		limit1: limit1,
		limit2: limit2,
		servo:  servo,
		opts:   opts,
		logger: obslog.Or(logger),
		state:  Unhomed,
	}
}

// Pose returns the committed carriage position and whether it is authoritative.
func (g *Gantry) Pose() (domain.Point, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pose, g.homed
}

func (g *Gantry) Magnet() domain.MagnetState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.magnet
}

// InEnvelope reports whether p lies inside [0, XMax] x [0, YMax].
func (g *Gantry) InEnvelope(p domain.Point) bool {
	return p.X >= 0 && p.X <= g.opts.XMax && p.Y >= 0 && p.Y <= g.opts.YMax
}

func (g *Gantry) period(speed domain.Speed) time.Duration {
	if speed == domain.Slow {
		return g.opts.SlowPeriod
	}
	return g.opts.FastPeriod
}

// MoveTo drives the carriage in a straight line to (x, y) and blocks until both motors are done.
// A target outside the envelope means a corrupted plan or pose: the pose is dropped and MoveTo panics.
func (g *Gantry) MoveTo(x, y int, speed domain.Speed) error {
	target := domain.Point{X: x, Y: y}

	g.mu.Lock()
	from, homed := g.pose, g.homed
	g.mu.Unlock()
	if !homed {
		return fmt.Errorf("move to %s: %w", target, ErrNotHomed)
	}
	if !g.InEnvelope(target) {
		g.drop()
		panic(fmt.Sprintf("hbot: target %s outside envelope [0,%d]x[0,%d]", target, g.opts.XMax, g.opts.YMax))
	}

	s1, s2 := MotorSteps(target.X-from.X, target.Y-from.Y)
	sched := NewSchedule(g.sign1(s1), g.sign2(s2), g.period(speed))
	g.dispatch(sched)

	g.mu.Lock()
	g.pose = target
	g.mu.Unlock()

	g.logger.Debug("gantry_move",
		zap.Stringer("from", from),
		zap.Stringer("to", target),
		zap.Stringer("speed", speed),
		zap.Int("s1", sched.Steps1),
		zap.Int("s2", sched.Steps2),
		zap.Duration("duration", sched.Duration()))
	return nil
}

// dispatch starts both motors back to back and joins on both.
func (g *Gantry) dispatch(s Schedule) {
	if s.Steps1 != 0 {
		g.m1.TurnSteps(s.Period1, s.Steps1)
	}
	if s.Steps2 != 0 {
		g.m2.TurnSteps(s.Period2, s.Steps2)
	}
	if s.Steps1 != 0 {
		g.m1.Wait()
	}
	if s.Steps2 != 0 {
		g.m2.Wait()
	}
}

func (g *Gantry) sign1(steps int) int {
	if g.opts.InvertMotor1 {
		return -steps
	}
	return steps
}

func (g *Gantry) sign2(steps int) int {
	if g.opts.InvertMotor2 {
		return -steps
	}
	return steps
}

// Engage lowers the magnet onto the piece above it and waits for the servo to settle.
func (g *Gantry) Engage() error {
	return g.setMagnet(domain.MagnetEngaged)
}

// Disengage releases the piece and waits for the servo to settle.
func (g *Gantry) Disengage() error {
	return g.setMagnet(domain.MagnetDisengaged)
}

func (g *Gantry) setMagnet(state domain.MagnetState) error {
	pulse := g.opts.ReleasePulse
	if state == domain.MagnetEngaged {
		pulse = g.opts.EngagePulse
	}
	if err := g.servo.SetPulse(pulse); err != nil {
		g.drop()
		return fmt.Errorf("servo %s: %w", state, err)
	}
	g.mu.Lock()
	g.magnet = state
	g.mu.Unlock()
	g.Settle()
	return nil
}

// Settle waits the fixed mechanical settle delay.
func (g *Gantry) Settle() {
	if g.opts.SettleDelay > 0 {
		g.opts.Sleep(g.opts.SettleDelay)
	}
}

// Halt stops both motors immediately and drops the pose. The gantry stays UNHOMED until the
// next successful Home.
func (g *Gantry) Halt() {
	g.m1.Stop()
	g.m2.Stop()
	g.drop()
}

func (g *Gantry) drop() {
	g.invalidate()
	if g.State() != Unhomed {
		g.setState(Unhomed)
	}
}

func (g *Gantry) invalidate() {
	g.mu.Lock()
	g.homed = false
	g.mu.Unlock()
}

// waitActive polls sw until it reports active. HomingTimeout bounds the wait when set.
func (g *Gantry) waitActive(ctx context.Context, sw gpio.Input) error {
	parent := ctx
	if g.opts.HomingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.HomingTimeout)
		defer cancel()
	}
	tick := time.NewTicker(g.opts.PollDelay)
	defer tick.Stop()
	for {
		if sw.Active() {
			return nil
		}
		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return err
			}
			return ErrHomingTimeout
		case <-tick.C:
		}
	}
}
