// Package gpio exposes the three pin primitives the robot needs (digital output,
// digital input, hardware PWM) over go-rpio, plus in-memory pins for simulation and tests.
package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// Output is a push-pull digital output.
type Output interface {
	High()
	Low()
}

// Input is a digital input that reports whether its device is active.
type Input interface {
	Active() bool
}

// PWM drives a servo with a pulse of the given width once per frame.
type PWM interface {
	SetPulse(width time.Duration) error
}

var (
	openMu   sync.Mutex
	openRefs int
)

// Chip is the memory-mapped GPIO block of the Raspberry Pi.
type Chip struct {
	closed bool
}

// Open maps the GPIO registers. Every Open must be paired with Close.
func Open() (*Chip, error) {
	openMu.Lock()
	defer openMu.Unlock()
	if openRefs == 0 {
		if err := rpio.Open(); err != nil {
			return nil, fmt.Errorf("open gpio: %w", err)
		}
	}
	openRefs++
	return &Chip{}, nil
}

func (c *Chip) Close() error {
	openMu.Lock()
	defer openMu.Unlock()
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	openRefs--
	if openRefs == 0 {
		return rpio.Close()
	}
	return nil
}

// Output configures pin (BCM numbering) as an output driven low.
func (c *Chip) Output(pin int) Output {
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return p
}

// Input configures pin as an input with a pull-down; the device is active when the line reads high.
func (c *Chip) Input(pin int) Input {
	p := rpio.Pin(pin)
	p.Input()
	p.PullDown()
	return activeHigh{pin: p}
}

type activeHigh struct {
	pin rpio.Pin
}

func (a activeHigh) Active() bool { return a.pin.Read() == rpio.High }

// pwmClock is the PWM clock rate; one tick is one microsecond.
const pwmClock = 1_000_000

// Servo configures pin for hardware PWM with the given frame length (20ms for hobby servos).
// Only the PWM capable pins (12, 13, 18, 19) work.
func (c *Chip) Servo(pin int, frame time.Duration) (PWM, error) {
	switch pin {
	case 12, 13, 18, 19:
	default:
		return nil, fmt.Errorf("pin %d has no hardware pwm", pin)
	}
	cycle := uint32(frame / time.Microsecond)
	if cycle == 0 {
		return nil, fmt.Errorf("servo frame too short: %s", frame)
	}
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(pwmClock)
	p.DutyCycle(0, cycle)
	return &hwServo{pin: p, cycle: cycle}, nil
}

type hwServo struct {
	pin   rpio.Pin
	cycle uint32
}

func (s *hwServo) SetPulse(width time.Duration) error {
	duty := uint32(width / time.Microsecond)
	if duty > s.cycle {
		return fmt.Errorf("pulse %s longer than frame", width)
	}
	s.pin.DutyCycle(duty, s.cycle)
	return nil
}
