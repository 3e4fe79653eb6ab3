// Package board wraps the rules engine: it owns the position, checks legality and
// describes a legal move in the terms the path planner needs.
package board

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/paga2004/robochess/internal/domain"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrUnparseableMove = errors.New("unparseable move")
	ErrIllegalMove     = errors.New("illegal move")
	ErrGameOver        = errors.New("game is over")
	ErrInvalidFEN      = errors.New("invalid fen")
)

var coordPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// State summarises the position for the client.
type State string

const (
	StateCheckmate   State = "checkmate"
	StateDraw        State = "draw"
	StateWhiteToMove State = "white"
	StateBlackToMove State = "black"
)

// Tag is the protocol message announcing the state.
func (s State) Tag() string { return "!" + string(s) }

// Board is one game. It is not safe for concurrent use.
type Board struct {
	game     *nchess.Game
	startFEN string
	movesUCI []string
	movesSAN []string
}

func New() *Board {
	b, _ := FromFEN(StartFEN)
	return b
}

// FromFEN starts a game from an arbitrary position.
func FromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Board{game: nchess.NewGame(option), startFEN: fen}, nil
}

// Restore rebuilds a game from its start position and the moves played since.
func Restore(startFEN string, moves []string) (*Board, error) {
	if strings.TrimSpace(startFEN) == "" {
		startFEN = StartFEN
	}
	b, err := FromFEN(startFEN)
	if err != nil {
		return nil, err
	}
	for _, mv := range moves {
		if _, err := b.Apply(mv); err != nil {
			return nil, fmt.Errorf("replay %s: %w", mv, err)
		}
	}
	return b, nil
}

// Parse checks the coordinate-notation grammar only.
func Parse(text string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if !coordPattern.MatchString(t) {
		return "", fmt.Errorf("%q: %w", text, ErrUnparseableMove)
	}
	return t, nil
}

// Resolve validates text against the position and describes the move. The position is
// not changed; call Apply once the pieces have been moved.
func (b *Board) Resolve(text string) (domain.MoveSpec, error) {
	uci, err := Parse(text)
	if err != nil {
		return domain.MoveSpec{}, err
	}
	if b.Over() {
		return domain.MoveSpec{}, fmt.Errorf("%s: %w", uci, ErrGameOver)
	}
	pos := b.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return domain.MoveSpec{}, fmt.Errorf("%s: %w", uci, ErrIllegalMove)
	}
	if err := b.game.Clone().Move(mv, nil); err != nil {
		return domain.MoveSpec{}, fmt.Errorf("%s: %w", uci, ErrIllegalMove)
	}
	return describe(pos.Board(), uci, mv), nil
}

// Apply plays the move on the position and returns its SAN.
func (b *Board) Apply(text string) (string, error) {
	uci, err := Parse(text)
	if err != nil {
		return "", err
	}
	pos := b.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return "", fmt.Errorf("%s: %w", uci, ErrIllegalMove)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := b.game.Move(mv, nil); err != nil {
		return "", fmt.Errorf("%s: %w", uci, ErrIllegalMove)
	}
	b.movesUCI = append(b.movesUCI, uci)
	b.movesSAN = append(b.movesSAN, san)
	return san, nil
}

func (b *Board) FEN() string      { return b.game.FEN() }
func (b *Board) StartFEN() string { return b.startFEN }

func (b *Board) MovesUCI() []string { return append([]string(nil), b.movesUCI...) }
func (b *Board) MovesSAN() []string { return append([]string(nil), b.movesSAN...) }

func (b *Board) Turn() domain.Color {
	if b.game.Position().Turn() == nchess.Black {
		return domain.Black
	}
	return domain.White
}

func (b *Board) Over() bool { return b.game.Outcome() != nchess.NoOutcome }

func (b *Board) State() State {
	switch b.game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		return StateCheckmate
	case nchess.Draw:
		return StateDraw
	}
	if b.Turn() == domain.Black {
		return StateBlackToMove
	}
	return StateWhiteToMove
}

// Result is the PGN result token: "1-0", "0-1", "1/2-1/2" or "*".
func (b *Board) Result() string { return string(b.game.Outcome()) }

// Method names how the game ended, empty while it is running.
func (b *Board) Method() string {
	if !b.Over() {
		return ""
	}
	return strings.ToLower(b.game.Method().String())
}

// Opening returns the ECO code and title of the deepest book line the game follows. Games
// set up from a custom FEN have no opening.
func (b *Board) Opening() (string, string) {
	if b.startFEN != StartFEN || len(b.movesUCI) == 0 {
		return "", ""
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(b.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// PieceAt returns the piece on sq or domain.NoPiece.
func (b *Board) PieceAt(sq domain.Square) domain.Piece {
	return convertPiece(b.game.Position().Board().Piece(toSquare(sq)))
}

// Pieces lists every occupied square.
func (b *Board) Pieces() map[domain.Square]domain.Piece {
	out := make(map[domain.Square]domain.Piece, 32)
	board := b.game.Position().Board()
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			sq := domain.Square{File: f, Rank: r}
			if p := convertPiece(board.Piece(toSquare(sq))); !p.IsEmpty() {
				out[sq] = p
			}
		}
	}
	return out
}

func describe(board *nchess.Board, uci string, mv *nchess.Move) domain.MoveSpec {
	from, to := fromSquare(mv.S1()), fromSquare(mv.S2())
	ms := domain.MoveSpec{
		UCI:           uci,
		From:          from,
		To:            to,
		Piece:         convertPiece(board.Piece(mv.S1())),
		CaptureSquare: to,
		Promotion:     convertType(mv.Promo()),
	}

	if target := convertPiece(board.Piece(mv.S2())); !target.IsEmpty() {
		ms.Capture = true
		ms.Captured = target
	} else if ms.Piece.Type == domain.Pawn && from.File != to.File {
		behind := domain.Square{File: to.File, Rank: from.Rank}
		ms.Capture = true
		ms.EnPassant = true
		ms.CaptureSquare = behind
		ms.Captured = convertPiece(board.Piece(toSquare(behind)))
	}

	if ms.Piece.Type == domain.King {
		switch to.File - from.File {
		case 2:
			ms.Castle = domain.CastleKing
		case -2:
			ms.Castle = domain.CastleQueen
		}
	}
	return ms
}

func toSquare(sq domain.Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File), nchess.Rank(sq.Rank))
}

func fromSquare(sq nchess.Square) domain.Square {
	return domain.Square{File: int(sq.File()), Rank: int(sq.Rank())}
}

func convertPiece(p nchess.Piece) domain.Piece {
	if p == nchess.NoPiece {
		return domain.NoPiece
	}
	c := domain.White
	if p.Color() == nchess.Black {
		c = domain.Black
	}
	return domain.Piece{Color: c, Type: convertType(p.Type())}
}

func convertType(t nchess.PieceType) domain.PieceType {
	switch t {
	case nchess.King:
		return domain.King
	case nchess.Queen:
		return domain.Queen
	case nchess.Rook:
		return domain.Rook
	case nchess.Bishop:
		return domain.Bishop
	case nchess.Knight:
		return domain.Knight
	case nchess.Pawn:
		return domain.Pawn
	default:
		return domain.NoPieceType
	}
}
