// Package stepper drives a step/direction stepper motor driver from a background goroutine.
package stepper

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/gpio"
	"github.com/paga2004/robochess/internal/obslog"
)

// Driver emits step pulses for one motor. A new schedule replaces the running one.
// Each pulse is a rising edge on the step pin; the direction pin is high for positive counts.
type Driver struct {
	name      string
	step      gpio.Output
	dir       gpio.Output
	minPeriod time.Duration
	logger    *zap.Logger

	mu  sync.Mutex
	cur *run
}

type run struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (r *run) cancel() { r.once.Do(func() { close(r.stop) }) }

// New returns a driver for the given pins. Periods shorter than minPeriod are raised to it.
func New(name string, step, dir gpio.Output, minPeriod time.Duration, logger *zap.Logger) *Driver {
	return &Driver{name: name, step: step, dir: dir, minPeriod: minPeriod, logger: obslog.Or(logger)}
}

func (d *Driver) Name() string { return d.name }

// TurnSteps emits |steps| pulses, one per period, in the direction of the sign.
// A zero count schedules nothing; any running schedule is still cancelled.
func (d *Driver) TurnSteps(period time.Duration, steps int) {
	forward := steps >= 0
	if steps < 0 {
		steps = -steps
	}
	d.start(period, forward, steps, false)
}

// TurnContinuous pulses until Stop or the next schedule.
func (d *Driver) TurnContinuous(forward bool, period time.Duration) {
	d.start(period, forward, 0, true)
}

// Stop cancels the running schedule and returns once the step pin is low again.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
}

// Wait blocks until the current finite schedule has emitted all its pulses.
// It returns immediately when nothing is scheduled.
func (d *Driver) Wait() {
	d.mu.Lock()
	r := d.cur
	d.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

func (d *Driver) halt() {
	if d.cur == nil {
		return
	}
	d.cur.cancel()
	<-d.cur.done
	d.step.Low()
}

func (d *Driver) start(period time.Duration, forward bool, count int, unbounded bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	d.cur = nil
	if !unbounded && count == 0 {
		return
	}
	if period < d.minPeriod {
		d.logger.Warn("stepper_period_clamped",
			zap.String("motor", d.name),
			zap.Duration("period", period),
			zap.Duration("min", d.minPeriod))
		period = d.minPeriod
	}
	if period <= 0 {
		d.logger.Warn("stepper_bad_period", zap.String("motor", d.name), zap.Duration("period", period))
		return
	}
	if forward {
		d.dir.High()
	} else {
		d.dir.Low()
	}
	r := &run{stop: make(chan struct{}), done: make(chan struct{})}
	d.cur = r
	go d.pulse(r, period, count, unbounded)
}

// pulse emits the train. Edges are scheduled against the start time so that
// timer latency does not accumulate over long moves.
func (d *Driver) pulse(r *run, period time.Duration, count int, unbounded bool) {
	defer close(r.done)
	half := period / 2
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	wait := func(edge int) bool {
		timer.Reset(time.Until(start.Add(time.Duration(edge) * half)))
		select {
		case <-timer.C:
			return true
		case <-r.stop:
			return false
		}
	}

	for i := 0; unbounded || i < count; i++ {
		d.step.High()
		if !wait(2*i + 1) {
			d.step.Low()
			return
		}
		d.step.Low()
		if !wait(2*i + 2) {
			return
		}
	}
}
