package gpio

import (
	"testing"
	"time"
)

func TestSimPinCountsRisingEdges(t *testing.T) {
	p := NewSimPin()
	hooks := 0
	p.OnRise(func() { hooks++ })

	p.High()
	p.High() // already high, not an edge
	p.Low()
	p.Set(true)
	p.Set(false)

	if got := p.Rises(); got != 2 {
		t.Fatalf("rises = %d, want 2", got)
	}
	if hooks != 2 {
		t.Fatalf("hook calls = %d, want 2", hooks)
	}
	if p.Active() {
		t.Fatalf("pin should be low")
	}
}

func TestSimServoRecordsPulse(t *testing.T) {
	var s SimServo
	if err := s.SetPulse(1500 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	if s.Pulse() != 1500*time.Microsecond || s.Count() != 1 {
		t.Fatalf("unexpected servo state: %s x%d", s.Pulse(), s.Count())
	}
}
