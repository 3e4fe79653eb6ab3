package gpio

import (
	"sync"
	"time"
)

// SimPin is an in-memory pin usable as Output and Input. Rising edges are counted and
// reported to an optional hook, which is how the simulated gantry observes step pulses.
type SimPin struct {
	mu     sync.Mutex
	level  bool
	rises  int
	onRise func()
}

func NewSimPin() *SimPin { return &SimPin{} }

func (p *SimPin) High() {
	p.mu.Lock()
	rising := !p.level
	p.level = true
	if rising {
		p.rises++
	}
	hook := p.onRise
	p.mu.Unlock()
	if rising && hook != nil {
		hook()
	}
}

func (p *SimPin) Low() {
	p.mu.Lock()
	p.level = false
	p.mu.Unlock()
}

func (p *SimPin) Set(level bool) {
	if level {
		p.High()
		return
	}
	p.Low()
}

func (p *SimPin) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) Active() bool { return p.Level() }

// Rises returns the number of low-to-high transitions seen so far.
func (p *SimPin) Rises() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rises
}

// OnRise installs a hook called (outside the pin lock) on every rising edge.
func (p *SimPin) OnRise(fn func()) {
	p.mu.Lock()
	p.onRise = fn
	p.mu.Unlock()
}

// SimServo records the last pulse width.
type SimServo struct {
	mu    sync.Mutex
	pulse time.Duration
	count int
}

func (s *SimServo) SetPulse(width time.Duration) error {
	s.mu.Lock()
	s.pulse = width
	s.count++
	s.mu.Unlock()
	return nil
}

func (s *SimServo) Pulse() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulse
}

func (s *SimServo) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
