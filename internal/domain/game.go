package domain

import "time"

// ChessGame is a finished game as archived by the game log.
type ChessGame struct {
	ID        string        `json:"game_id"`
	Result    string        `json:"result"`
	Method    string        `json:"method"`
	StartFEN  string        `json:"start_fen"`
	FinalFEN  string        `json:"final_fen"`
	MovesUCI  []string      `json:"moves_uci"`
	MovesSAN  []string      `json:"moves_san"`
	PGN       string        `json:"pgn"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration_ns"`
	Captured  int           `json:"captured"`
	Engine    int           `json:"engine_moves"`
}
