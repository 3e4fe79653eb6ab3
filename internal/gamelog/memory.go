package gamelog

import (
    "context"
    "sync"

    "github.com/paga2004/robochess/internal/domain"
)

// MemoryArchive keeps finished games in process; used without a database.
type MemoryArchive struct {
    mu    sync.RWMutex
    games map[string]*domain.ChessGame
    order []string
}

func NewMemoryArchive() *MemoryArchive {
    return &MemoryArchive{games: make(map[string]*domain.ChessGame)}
}

func (m *MemoryArchive) SaveGame(ctx context.Context, g *domain.ChessGame) error {
    if g == nil {
        return nil
    }
    if g.PGN == "" {
        g.PGN = BuildPGN(g)
    }
    cp := *g
    cp.MovesUCI = append([]string(nil), g.MovesUCI...)
    cp.MovesSAN = append([]string(nil), g.MovesSAN...)

    m.mu.Lock()
    defer m.mu.Unlock()
    if _, exists := m.games[g.ID]; !exists {
        m.order = append(m.order, g.ID)
    }
    m.games[g.ID] = &cp
    return nil
}

// Games returns the archived games in insertion order.
func (m *MemoryArchive) Games() []*domain.ChessGame {
    m.mu.RLock()
    defer m.mu.RUnlock()
    out := make([]*domain.ChessGame, 0, len(m.order))
    for _, id := range m.order {
        out = append(out, m.games[id])
    }
    return out
}

func (m *MemoryArchive) Recent(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
    if limit <= 0 {
        limit = DefaultRecent
    }
    m.mu.RLock()
    defer m.mu.RUnlock()
    out := make([]*domain.ChessGame, 0, min(limit, len(m.order)))
    for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
        cp := *m.games[m.order[i]]
        out = append(out, &cp)
    }
    return out, nil
}
