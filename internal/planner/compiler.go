package planner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/obslog"
)

// Compiler turns a legal move into a Plan. Pieces only travel along the gaps between
// squares, so a carried piece never brushes its neighbours.
type Compiler struct {
	geom   Geometry
	logger *zap.Logger
}

func NewCompiler(geom Geometry, logger *zap.Logger) *Compiler {
	return &Compiler{geom: geom, logger: obslog.Or(logger)}
}

func (c *Compiler) Geometry() Geometry { return c.geom }

// Compile returns the plan for mv and the bins as they will be once the plan has run.
// The bins passed in are not modified.
//
// Order of work: the captured piece is removed first; a promotion then places the promoted
// piece and finally clears the pawn from its origin.
func (c *Compiler) Compile(mv domain.MoveSpec, bins Bins) (Plan, Bins, error) {
	if !mv.From.Valid() || !mv.To.Valid() || mv.Piece.IsEmpty() {
		return Plan{}, bins, fmt.Errorf("%s: %w", mv.UCI, ErrInvalidMove)
	}
	next := bins.Clone()
	b := &builder{}

	if mv.Capture {
		sq := mv.To
		if mv.EnPassant {
			sq = mv.CaptureSquare
		}
		captured := mv.Captured
		if captured.IsEmpty() {
			captured = domain.Piece{Color: mv.Mover().Other(), Type: domain.Pawn}
		}
		c.removeToBin(b, &next, sq, captured, captured.Color)
	}

	switch {
	case mv.Castle != domain.CastleNone:
		if err := c.castle(b, mv); err != nil {
			return Plan{}, bins, err
		}
	case mv.Promotion != domain.NoPieceType:
		c.promote(b, &next, mv)
	case mv.Piece.Type == domain.Knight:
		c.knight(b, mv.From, mv.To)
	default:
		c.slide(b, mv.From, mv.To)
	}

	return Plan{Move: mv.UCI, Steps: b.steps}, next, nil
}

// slide picks the piece up and carries it straight to the target.
func (c *Compiler) slide(b *builder, from, to domain.Square) {
	b.travel(c.geom.Center(from))
	b.engage()
	b.carry(c.geom.Placement(to))
	b.release()
}

// knight rides the gaps in an L: half a square onto the gap line, the long leg along it,
// then into the target. On a tie the rank gap is used.
func (c *Compiler) knight(b *builder, from, to domain.Square) {
	o := c.geom.Center(from)
	t := c.geom.Center(to)
	dx, dy := t.X-o.X, t.Y-o.Y

	b.travel(o)
	b.engage()
	if abs(dx) < abs(dy) {
		b.carry(domain.Point{X: o.X + dx/2, Y: o.Y})
		b.settle()
		b.carry(domain.Point{X: o.X + dx/2, Y: o.Y + dy})
		b.settle()
	} else {
		b.carry(domain.Point{X: o.X, Y: o.Y + dy/2})
		b.settle()
		b.carry(domain.Point{X: o.X + dx, Y: o.Y + dy/2})
		b.settle()
	}
	b.carry(c.geom.Placement(to))
	b.release()
}

// removeToBin lifts the piece on sq off the board into the next slot of the bin of binColor.
// White-bound pieces leave through the gap above their square, black-bound ones through the gap below.
func (c *Compiler) removeToBin(b *builder, bins *Bins, sq domain.Square, piece domain.Piece, binColor domain.Color) {
	half := c.geom.SquareSize / 2
	p := c.geom.Center(sq)
	slot := bins.push(binColor, piece)
	dest := c.geom.Slot(binColor, slot)

	b.travel(p)
	b.engage()
	if binColor == domain.White {
		p.Y += half
	} else {
		p.Y -= half
	}
	b.carry(p, domain.Point{X: dest.X, Y: p.Y}, dest)
	b.release()

	c.logger.Debug("plan_capture",
		zap.String("square", sq.String()),
		zap.Stringer("piece", piece),
		zap.String("bin", string(binColor)),
		zap.Int("slot", slot))
}

// castle moves the king behind its rank to its destination, brings the rook over the same
// corridor, then nudges the king to its resting spot.
func (c *Compiler) castle(b *builder, mv domain.MoveSpec) error {
	rank := mv.From.Rank
	var rookFrom, rookTo, kingTo domain.Square
	switch mv.Castle {
	case domain.CastleKing:
		kingTo = domain.Square{File: 6, Rank: rank}
		rookFrom = domain.Square{File: 7, Rank: rank}
		rookTo = domain.Square{File: 5, Rank: rank}
	case domain.CastleQueen:
		kingTo = domain.Square{File: 2, Rank: rank}
		rookFrom = domain.Square{File: 0, Rank: rank}
		rookTo = domain.Square{File: 3, Rank: rank}
	default:
		return fmt.Errorf("%s: castle side %q: %w", mv.UCI, mv.Castle, ErrInvalidMove)
	}
	if mv.From.File != 4 || mv.To != kingTo {
		return fmt.Errorf("%s: not a castling king move: %w", mv.UCI, ErrInvalidMove)
	}

	lane := c.geom.BackRankCorridor(mv.Mover())
	kingFrom := c.geom.Center(mv.From)
	kingDest := c.geom.Center(kingTo)

	b.travel(kingFrom)
	b.engage()
	b.carry(
		domain.Point{X: kingFrom.X, Y: lane},
		domain.Point{X: kingDest.X, Y: lane},
		kingDest,
	)
	b.release()

	rook := c.geom.Center(rookFrom)
	rookDest := c.geom.Center(rookTo)
	b.travel(rook)
	b.engage()
	b.carry(
		domain.Point{X: rook.X, Y: lane},
		domain.Point{X: rookDest.X, Y: lane},
		c.geom.Placement(rookTo),
	)
	b.release()

	b.travel(kingDest)
	b.engage()
	b.carry(c.geom.Placement(kingTo))
	b.release()
	return nil
}

// promote fetches a spare piece of the promoted type from the mover's bin, brings it round the
// board edge to the target, and then removes the pawn into the opposing bin. Without a spare
// the pawn itself stands in for the promoted piece.
func (c *Compiler) promote(b *builder, bins *Bins, mv domain.MoveSpec) {
	mover := mv.Mover()
	slot, ok := bins.take(mover, mv.Promotion)
	if !ok {
		c.logger.Warn("promotion_no_spare",
			zap.String("move", mv.UCI),
			zap.String("color", string(mover)),
			zap.String("piece", string(mv.Promotion)))
		c.slide(b, mv.From, mv.To)
		return
	}

	src := c.geom.Slot(mover, slot)
	edge := c.geom.EdgeColumn(mover)
	far := c.geom.FarEdge(mover)
	dest := c.geom.Placement(mv.To)

	b.travel(src)
	b.engage()
	b.carry(
		domain.Point{X: edge, Y: src.Y},
		domain.Point{X: edge, Y: far},
		domain.Point{X: dest.X, Y: far},
		dest,
	)
	b.release()

	c.removeToBin(b, bins, mv.From, mv.Piece, mover.Other())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
