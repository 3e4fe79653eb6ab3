package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paga2004/robochess/internal/domain"
)

var (
	ErrPlanOutOfBounds = errors.New("plan leaves the work envelope")
	ErrInvalidMove     = errors.New("move cannot be planned")
)

// StepKind is one gantry primitive.
type StepKind int

const (
	// Travel moves fast with the magnet released.
	Travel StepKind = iota
	// Carry moves slowly with a piece attached.
	Carry
	Engage
	Release
	Settle
)

func (k StepKind) String() string {
	switch k {
	case Travel:
		return "travel"
	case Carry:
		return "carry"
	case Engage:
		return "engage"
	case Release:
		return "release"
	case Settle:
		return "settle"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

type Step struct {
	Kind StepKind     `json:"kind"`
	To   domain.Point `json:"to"`
}

func (s Step) String() string {
	if s.Kind == Travel || s.Kind == Carry {
		return s.Kind.String() + " " + s.To.String()
	}
	return s.Kind.String()
}

// Plan is the ordered motion for one chess move.
type Plan struct {
	Move  string
	Steps []Step
}

func (p Plan) String() string {
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = s.String()
	}
	return p.Move + ": " + strings.Join(parts, ", ")
}

// Targets lists the coordinates the plan visits, in order.
func (p Plan) Targets() []domain.Point {
	var out []domain.Point
	for _, s := range p.Steps {
		if s.Kind == Travel || s.Kind == Carry {
			out = append(out, s.To)
		}
	}
	return out
}

// Validate rejects a plan that would leave the envelope before any motor turns.
func (p Plan) Validate(g Geometry) error {
	for i, s := range p.Steps {
		if (s.Kind == Travel || s.Kind == Carry) && !g.Contains(s.To) {
			return fmt.Errorf("%s step %d to %s: %w", p.Move, i, s.To, ErrPlanOutOfBounds)
		}
	}
	return nil
}

// Gantry is the motion surface a plan runs against. *hbot.Gantry implements it.
type Gantry interface {
	MoveTo(x, y int, speed domain.Speed) error
	Engage() error
	Disengage() error
	Settle()
}

// Execute runs the plan step by step. ctx is only consulted before the first step: once the
// carriage has started moving the plan runs to completion.
func Execute(ctx context.Context, g Gantry, p Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, s := range p.Steps {
		var err error
		switch s.Kind {
		case Travel:
			err = g.MoveTo(s.To.X, s.To.Y, domain.Fast)
		case Carry:
			err = g.MoveTo(s.To.X, s.To.Y, domain.Slow)
		case Engage:
			err = g.Engage()
		case Release:
			err = g.Disengage()
		case Settle:
			g.Settle()
		}
		if err != nil {
			return fmt.Errorf("%s step %d (%s): %w", p.Move, i, s, err)
		}
	}
	return nil
}

type builder struct {
	steps []Step
}

func (b *builder) travel(p domain.Point) { b.steps = append(b.steps, Step{Kind: Travel, To: p}) }

func (b *builder) carry(points ...domain.Point) {
	for _, p := range points {
		b.steps = append(b.steps, Step{Kind: Carry, To: p})
	}
}

func (b *builder) engage()  { b.steps = append(b.steps, Step{Kind: Engage}) }
func (b *builder) release() { b.steps = append(b.steps, Step{Kind: Release}) }
func (b *builder) settle()  { b.steps = append(b.steps, Step{Kind: Settle}) }
