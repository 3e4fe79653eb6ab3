// Package gamestore keeps the running game across restarts: position, move list and bins.
// The carriage pose is never stored; homing always runs again after a restart.
package gamestore

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"

    "github.com/paga2004/robochess/internal/domain"
)

var ErrNoSnapshot = errors.New("no saved game")

// Snapshot is the persisted state of the current game.
type Snapshot struct {
    ID       string         `json:"id"`
    StartFEN string         `json:"start_fen"`
    FEN      string         `json:"fen"`
    MovesUCI []string       `json:"moves_uci"`
    MovesSAN []string       `json:"moves_san"`
    WhiteBin []domain.Piece `json:"white_bin"`
    BlackBin []domain.Piece `json:"black_bin"`

    // Captures and EngineMoves feed the archive record once the game ends.
    Captures    int       `json:"captures,omitempty"`
    EngineMoves int       `json:"engine_moves,omitempty"`
    StartedAt   time.Time `json:"started_at"`
    UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists a single snapshot. Load returns ErrNoSnapshot when nothing was saved.
type Store interface {
    Load(ctx context.Context) (*Snapshot, error)
    Save(ctx context.Context, snap *Snapshot) error
    Clear(ctx context.Context) error
    Close() error
}

// NewID returns a fresh game identifier.
func NewID() string { return uuid.NewString() }
