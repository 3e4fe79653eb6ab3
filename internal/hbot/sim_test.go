package hbot

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/stepper"
)

func TestSimRigHomesAndTracksMoves(t *testing.T) {
	rig := NewSimRig(domain.Point{X: 30, Y: 20})
	m1 := stepper.New("m1", rig.Motor1Step, rig.Motor1Dir, 0, zap.NewNop())
	m2 := stepper.New("m2", rig.Motor2Step, rig.Motor2Dir, 0, zap.NewNop())

	opts := testOptions()
	opts.SlowPeriod = 100 * time.Microsecond
	opts.FastPeriod = 50 * time.Microsecond
	opts.SettleDelay = 0
	opts.PollDelay = 20 * time.Microsecond
	opts.HomingTimeout = 5 * time.Second
	g := New(m1, m2, rig.Limit1(), rig.Limit2(), rig.Servo, opts, zap.NewNop())

	if err := g.Home(context.Background()); err != nil {
		t.Fatalf("Home: %v", err)
	}
	home := rig.Position()
	if home.X <= 0 || home.Y <= 0 || home.X > 40 || home.Y > 40 {
		t.Fatalf("carriage rests at %v after homing, want within one back-off of the stops", home)
	}

	for _, p := range []domain.Point{{X: 200, Y: 100}, {X: 50, Y: 180}, {X: 0, Y: 0}} {
		if err := g.MoveTo(p.X, p.Y, domain.Fast); err != nil {
			t.Fatal(err)
		}
		got := rig.Position()
		if got.X-home.X != p.X || got.Y-home.Y != p.Y {
			t.Fatalf("rig at %v (home %v), want offset %v", got, home, p)
		}
	}
}
