package planner

import "github.com/paga2004/robochess/internal/domain"

// Bins are the captured pieces parked beside the board, one column per color.
// A promoted piece taken from a bin leaves domain.NoPiece in its slot.
type Bins struct {
	White []domain.Piece `json:"white"`
	Black []domain.Piece `json:"black"`
}

func (b Bins) Clone() Bins {
	return Bins{
		White: append([]domain.Piece(nil), b.White...),
		Black: append([]domain.Piece(nil), b.Black...),
	}
}

func (b Bins) Of(c domain.Color) []domain.Piece {
	if c == domain.White {
		return b.White
	}
	return b.Black
}

func (b *Bins) set(c domain.Color, pieces []domain.Piece) {
	if c == domain.White {
		b.White = pieces
		return
	}
	b.Black = pieces
}

// push appends p to the bin of c and returns its slot index.
func (b *Bins) push(c domain.Color, p domain.Piece) int {
	pieces := append(b.Of(c), p)
	b.set(c, pieces)
	return len(pieces) - 1
}

// take finds the first piece of type t in the bin of c and replaces it with the empty sentinel.
func (b *Bins) take(c domain.Color, t domain.PieceType) (int, bool) {
	pieces := b.Of(c)
	for i, p := range pieces {
		if p.Type == t && p.Color == c {
			pieces[i] = domain.NoPiece
			return i, true
		}
	}
	return -1, false
}
