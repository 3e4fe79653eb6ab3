// Package planner compiles chess moves into gantry motion plans.
package planner

import (
	"github.com/paga2004/robochess/internal/config"
	"github.com/paga2004/robochess/internal/domain"
)

// Geometry is the board layout in step units.
type Geometry struct {
	SquareSize      int
	XOffset         int
	YOffset         int
	PlacementOffset int
	XMax            int
	YMax            int
}

func GeometryFromConfig(g config.Geometry) Geometry {
	return Geometry{
		SquareSize:      g.SquareSize,
		XOffset:         g.XOffset,
		YOffset:         g.YOffset,
		PlacementOffset: g.PlacementOffset,
		XMax:            g.XMax,
		YMax:            g.YMax,
	}
}

// Center is the middle of sq. Files are mirrored: the a-file sits at high x.
func (g Geometry) Center(sq domain.Square) domain.Point {
	p := g.SquareSize
	return domain.Point{
		X: g.XOffset + (7-sq.File)*p + p/2,
		Y: g.YOffset + sq.Rank*p + p/2,
	}
}

// Placement is where the carriage releases a piece set down on sq.
func (g Geometry) Placement(sq domain.Square) domain.Point {
	c := g.Center(sq)
	c.Y += g.PlacementOffset
	return c
}

// BinX is the x of the slot column of the given bin.
func (g Geometry) BinX(c domain.Color) int {
	if c == domain.White {
		return g.XOffset - g.SquareSize/4
	}
	return g.XOffset + 33*g.SquareSize/4
}

// Slot is the position of slot i of a bin. White slots grow upwards from the first rank,
// black slots grow downwards from the eighth.
func (g Geometry) Slot(c domain.Color, i int) domain.Point {
	p := g.SquareSize
	if c == domain.White {
		return domain.Point{X: g.BinX(c), Y: i*p/2 + p/4}
	}
	return domain.Point{X: g.BinX(c), Y: 8*p - i*p/2 + p/4}
}

// BackRankCorridor is the y of the gap behind the home rank of c.
func (g Geometry) BackRankCorridor(c domain.Color) int {
	if c == domain.White {
		return g.YOffset
	}
	return g.YOffset + 8*g.SquareSize
}

// EdgeColumn is the free column beside the bin of c, used to carry promoted pieces.
func (g Geometry) EdgeColumn(c domain.Color) int {
	if c == domain.White {
		return 0
	}
	return g.XMax
}

// FarEdge is the y beyond the promotion rank of c.
func (g Geometry) FarEdge(c domain.Color) int {
	if c == domain.White {
		return g.YMax
	}
	return 0
}

func (g Geometry) Contains(p domain.Point) bool {
	return p.X >= 0 && p.X <= g.XMax && p.Y >= 0 && p.Y <= g.YMax
}
