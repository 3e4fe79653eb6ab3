// Package gamelog archives finished games in Postgres.
package gamelog

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    _ "github.com/lib/pq"

    "github.com/paga2004/robochess/internal/domain"
)

// Archive stores finished games. Recent lists them newest first.
type Archive interface {
    SaveGame(ctx context.Context, g *domain.ChessGame) error
    Recent(ctx context.Context, limit int) ([]*domain.ChessGame, error)
}

// DefaultRecent is the page size when a caller asks for no particular limit.
const DefaultRecent = 10

const schema = `
CREATE TABLE IF NOT EXISTS robochess_games (
    game_id      TEXT PRIMARY KEY,
    result       TEXT NOT NULL,
    result_method TEXT NOT NULL DEFAULT '',
    start_fen    TEXT NOT NULL,
    final_fen    TEXT NOT NULL,
    moves_uci    JSONB NOT NULL,
    moves_san    JSONB NOT NULL,
    pgn          TEXT NOT NULL,
    captured     INTEGER NOT NULL DEFAULT 0,
    engine_moves INTEGER NOT NULL DEFAULT 0,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL DEFAULT 0
)`

type Repository struct {
    db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// Open connects to DATABASE_URL, pings it and creates the table when missing.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, fmt.Errorf("open postgres: %w", err)
    }
    db.SetMaxOpenConns(4)
    db.SetMaxIdleConns(2)
    db.SetConnMaxLifetime(30 * time.Minute)

    pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := db.PingContext(pingCtx); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping postgres: %w", err)
    }
    r := NewRepository(db)
    if err := r.EnsureSchema(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return r, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
    if _, err := r.db.ExecContext(ctx, schema); err != nil {
        return fmt.Errorf("create robochess_games: %w", err)
    }
    return nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

// SaveGame upserts the game keyed by its ID. The PGN is built here when the caller left it empty.
func (r *Repository) SaveGame(ctx context.Context, g *domain.ChessGame) error {
    if r == nil || r.db == nil || g == nil {
        return nil
    }
    if g.PGN == "" {
        g.PGN = BuildPGN(g)
    }
    movesUCI, err := json.Marshal(nonNil(g.MovesUCI))
    if err != nil {
        return fmt.Errorf("marshal moves_uci: %w", err)
    }
    movesSAN, err := json.Marshal(nonNil(g.MovesSAN))
    if err != nil {
        return fmt.Errorf("marshal moves_san: %w", err)
    }

    const q = `INSERT INTO robochess_games (
        game_id, result, result_method, start_fen, final_fen,
        moves_uci, moves_san, pgn, captured, engine_moves,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6::jsonb,$7::jsonb,$8,$9,$10,$11,$12,$13
      ) ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        final_fen=EXCLUDED.final_fen,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        captured=EXCLUDED.captured,
        engine_moves=EXCLUDED.engine_moves,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

    _, err = r.db.ExecContext(ctx, q,
        g.ID, g.Result, g.Method, g.StartFEN, g.FinalFEN,
        string(movesUCI), string(movesSAN), g.PGN, g.Captured, g.Engine,
        g.StartedAt, g.EndedAt, g.Duration.Milliseconds(),
    )
    if err != nil {
        return fmt.Errorf("upsert robochess game: %w", err)
    }
    return nil
}

// Recent returns the latest finished games, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
    if limit <= 0 {
        limit = DefaultRecent
    }
    const q = `
        SELECT game_id, result, result_method, start_fen, final_fen,
               moves_uci, moves_san, pgn, captured, engine_moves,
               started_at, ended_at, duration_ms
        FROM robochess_games
        ORDER BY ended_at DESC
        LIMIT $1`

    rows, err := r.db.QueryContext(ctx, q, limit)
    if err != nil {
        return nil, fmt.Errorf("select robochess games: %w", err)
    }
    defer rows.Close()

    var out []*domain.ChessGame
    for rows.Next() {
        var (
            g          domain.ChessGame
            uciJSON    []byte
            sanJSON    []byte
            durationMS int64
        )
        if err := rows.Scan(
            &g.ID, &g.Result, &g.Method, &g.StartFEN, &g.FinalFEN,
            &uciJSON, &sanJSON, &g.PGN, &g.Captured, &g.Engine,
            &g.StartedAt, &g.EndedAt, &durationMS,
        ); err != nil {
            return nil, fmt.Errorf("scan robochess game: %w", err)
        }
        g.Duration = time.Duration(durationMS) * time.Millisecond
        if err := json.Unmarshal(uciJSON, &g.MovesUCI); err != nil {
            return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
        }
        if err := json.Unmarshal(sanJSON, &g.MovesSAN); err != nil {
            return nil, fmt.Errorf("unmarshal moves_san: %w", err)
        }
        out = append(out, &g)
    }
    return out, rows.Err()
}

func nonNil(s []string) []string {
    if s == nil {
        return []string{}
    }
    return s
}
