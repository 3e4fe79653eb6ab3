package domain

import (
	"fmt"
	"strings"
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// PieceType is the kind of a chess piece. The zero value means no piece.
type PieceType string

const (
	NoPieceType PieceType = ""
	King        PieceType = "king"
	Queen       PieceType = "queen"
	Rook        PieceType = "rook"
	Bishop      PieceType = "bishop"
	Knight      PieceType = "knight"
	Pawn        PieceType = "pawn"
)

// Letter returns the lowercase coordinate-notation letter of the piece type.
func (t PieceType) Letter() string {
	switch t {
	case King:
		return "k"
	case Queen:
		return "q"
	case Rook:
		return "r"
	case Bishop:
		return "b"
	case Knight:
		return "n"
	case Pawn:
		return "p"
	default:
		return ""
	}
}

// Piece is a colored piece. NoPiece doubles as the EMPTY sentinel of a capture bin slot.
type Piece struct {
	Color Color     `json:"color,omitempty"`
	Type  PieceType `json:"type,omitempty"`
}

var NoPiece = Piece{}

func (p Piece) IsEmpty() bool { return p.Type == NoPieceType }

func (p Piece) String() string {
	if p.IsEmpty() {
		return "empty"
	}
	return string(p.Color) + " " + string(p.Type)
}

// Square is indexed by file (0 = a) and rank (0 = first rank).
type Square struct {
	File int `json:"file"`
	Rank int `json:"rank"`
}

func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return fmt.Sprintf("%c%d", 'a'+s.File, s.Rank+1)
}

// ParseSquare parses algebraic coordinates such as "e2".
func ParseSquare(text string) (Square, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) != 2 || t[0] < 'a' || t[0] > 'h' || t[1] < '1' || t[1] > '8' {
		return Square{}, fmt.Errorf("invalid square %q", text)
	}
	return Square{File: int(t[0] - 'a'), Rank: int(t[1] - '1')}, nil
}

// CastleSide marks a castling move.
type CastleSide string

const (
	CastleNone  CastleSide = ""
	CastleKing  CastleSide = "king"
	CastleQueen CastleSide = "queen"
)

// MoveSpec is a legal move together with everything the path planner needs to
// relocate the pieces: what moves, what gets captured and where, and special flags.
type MoveSpec struct {
	UCI       string
	From      Square
	To        Square
	Piece     Piece
	Capture   bool
	EnPassant bool
	// CaptureSquare differs from To only on en passant.
	CaptureSquare Square
	Captured      Piece
	Castle        CastleSide
	Promotion     PieceType
}

// Mover is the side making the move.
func (m MoveSpec) Mover() Color { return m.Piece.Color }
