// Package robochess ties the rules engine, the path planner and the gantry together: every
// client command goes through the Service, which serialises access to the physical board.
package robochess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/board"
	"github.com/paga2004/robochess/internal/chess/uci"
	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/gamelog"
	"github.com/paga2004/robochess/internal/gamestore"
	"github.com/paga2004/robochess/internal/hbot"
	"github.com/paga2004/robochess/internal/planner"
	"github.com/paga2004/robochess/internal/render"
)

const storeTimeout = 5 * time.Second

var (
	ErrNotHomed          = errors.New("gantry is not homed")
	ErrEngineUnavailable = errors.New("chess engine unavailable")
	ErrPlanRejected      = errors.New("motion plan rejected")
	ErrMoveAborted       = errors.New("move aborted, recalibrate")
)

// Gantry is what the service needs from the motion layer. *hbot.Gantry implements it.
type Gantry interface {
	planner.Gantry
	Home(ctx context.Context) error
	Pose() (domain.Point, bool)
	Magnet() domain.MagnetState
	State() hbot.HomingState
	Halt()
}

// Engine suggests a reply move.
type Engine interface {
	BestMove(ctx context.Context, fen string, moves []string, limits uci.Limits) (uci.Result, error)
}

type Config struct {
	EngineDepth int
	// EngineTimeout bounds a single engine search. Zero leaves it to the caller's context.
	EngineTimeout time.Duration
}

// Deps are the collaborators of a Service. Store, Archive and Engine are optional.
type Deps struct {
	Gantry   Gantry
	Compiler *planner.Compiler
	Store    gamestore.Store
	Archive  gamelog.Archive
	Engine   Engine
}

// Outcome is what the client is told after a command.
type Outcome struct {
	FEN   string
	State board.State
	UCI   string
	SAN   string
	Plan  planner.Plan
}

type Service struct {
	mu sync.Mutex

	board    *board.Board
	bins     planner.Bins
	compiler *planner.Compiler
	gantry   Gantry
	store    gamestore.Store
	archive  gamelog.Archive
	engine   Engine
	cfg      Config

	gameID      string
	startedAt   time.Time
	captures    int
	engineMoves int

	now    func() time.Time
	logger *zap.Logger
}

func New(deps Deps, cfg Config, logger *zap.Logger) (*Service, error) {
	if deps.Gantry == nil {
		return nil, errors.New("gantry is required")
	}
	if deps.Compiler == nil {
		return nil, errors.New("compiler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EngineDepth <= 0 {
		cfg.EngineDepth = 3
	}
	s := &Service{
		board:    board.New(),
		compiler: deps.Compiler,
		gantry:   deps.Gantry,
		store:    deps.Store,
		archive:  deps.Archive,
		engine:   deps.Engine,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
	s.resetGame()
	return s, nil
}

// Restore resumes the game saved by a previous run, if any. The carriage pose is not part
// of the snapshot; the gantry has to be homed again before any move.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx)
	if errors.Is(err, gamestore.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	b, err := board.Restore(snap.StartFEN, snap.MovesUCI)
	if err != nil {
		return fmt.Errorf("restore game %s: %w", snap.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = b
	s.bins = planner.Bins{White: snap.WhiteBin, Black: snap.BlackBin}.Clone()
	s.gameID = snap.ID
	s.startedAt = snap.StartedAt
	s.captures = snap.Captures
	s.engineMoves = snap.EngineMoves
	s.logger.Info("game_restored",
		zap.String("game_id", snap.ID),
		zap.String("fen", b.FEN()),
		zap.Int("moves", len(snap.MovesUCI)),
	)
	return nil
}

// Position returns the current FEN and state tag.
func (s *Service) Position() (string, board.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.FEN(), s.board.State()
}

// Calibrate runs the homing routine.
func (s *Service) Calibrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.now()
	if err := s.gantry.Home(ctx); err != nil {
		s.logger.Error("calibration_failed", zap.Error(err))
		return err
	}
	s.logger.Info("calibration_done", zap.Duration("elapsed", s.now().Sub(start)))
	return nil
}

// SetFEN replaces the game with a new one from fen. Both capture bins are emptied; the
// operator is expected to have set up the physical board to match.
func (s *Service) SetFEN(ctx context.Context, fen string) (Outcome, error) {
	b, err := board.FromFEN(fen)
	if err != nil {
		return Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = b
	s.resetGame()
	s.logger.Info("board_reset", zap.String("game_id", s.gameID), zap.String("fen", b.FEN()))
	s.persist(ctx)
	return s.outcome(), nil
}

// HandleMove plays a coordinate-notation move on the physical board. Errors wrapping
// board.ErrUnparseableMove, board.ErrIllegalMove and board.ErrGameOver leave everything
// unchanged; the returned Outcome still carries the current position for a resync.
func (s *Service) HandleMove(ctx context.Context, text string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.play(ctx, text, false)
}

// EngineMove asks the engine for a reply and plays it like a client move.
func (s *Service) EngineMove(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return s.outcome(), ErrEngineUnavailable
	}
	if s.board.Over() {
		return s.outcome(), board.ErrGameOver
	}
	if _, homed := s.gantry.Pose(); !homed {
		return s.outcome(), ErrNotHomed
	}

	searchCtx := ctx
	if s.cfg.EngineTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.EngineTimeout)
		defer cancel()
	}
	res, err := s.engine.BestMove(searchCtx, s.board.StartFEN(), s.board.MovesUCI(), uci.Limits{Depth: s.cfg.EngineDepth})
	if err != nil {
		s.logger.Warn("engine_search_failed", zap.Error(err))
		return s.outcome(), fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	s.logger.Info("engine_move",
		zap.String("move", res.BestMove),
		zap.Int("eval_cp", res.EvalCP),
		zap.Strings("pv", res.Principal),
	)
	return s.play(ctx, res.BestMove, true)
}

func (s *Service) play(ctx context.Context, text string, byEngine bool) (Outcome, error) {
	mv, err := s.board.Resolve(text)
	if err != nil {
		return s.outcome(), err
	}
	if _, homed := s.gantry.Pose(); !homed {
		return s.outcome(), fmt.Errorf("%s: %w", mv.UCI, ErrNotHomed)
	}

	plan, bins, err := s.compiler.Compile(mv, s.bins)
	if err != nil {
		return s.outcome(), fmt.Errorf("%w: %v", ErrPlanRejected, err)
	}
	if err := plan.Validate(s.compiler.Geometry()); err != nil {
		s.logger.Error("plan_rejected", zap.String("move", mv.UCI), zap.Stringer("plan", plan), zap.Error(err))
		return s.outcome(), fmt.Errorf("%w: %v", ErrPlanRejected, err)
	}

	start := s.now()
	if err := planner.Execute(ctx, s.gantry, plan); err != nil {
		// Part of the plan may already have run: pieces can be in transit or in a bin.
		// Nothing moves again until the operator recalibrates.
		s.gantry.Halt()
		s.logger.Error("robot_move_failed",
			zap.String("move", mv.UCI),
			zap.Stringer("plan", plan),
			zap.Error(err))
		return s.outcome(), fmt.Errorf("%w: %w", ErrMoveAborted, err)
	}

	san, err := s.board.Apply(mv.UCI)
	if err != nil {
		return s.outcome(), err
	}
	s.bins = bins
	if mv.Capture {
		s.captures++
	}
	if byEngine {
		s.engineMoves++
	}
	code, title := s.board.Opening()
	s.logger.Info("robot_move",
		zap.String("game_id", s.gameID),
		zap.String("move", mv.UCI),
		zap.String("san", san),
		zap.Int("steps", len(plan.Steps)),
		zap.Duration("elapsed", s.now().Sub(start)),
		zap.String("eco_code", code),
		zap.String("eco_title", title),
	)

	// The move is on the table now; its records are written even if the client has gone.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	s.persist(wctx)
	if s.board.Over() {
		s.finish(wctx)
	}

	out := s.outcome()
	out.UCI = mv.UCI
	out.SAN = san
	out.Plan = plan
	return out, nil
}

func (s *Service) outcome() Outcome {
	return Outcome{FEN: s.board.FEN(), State: s.board.State()}
}

func (s *Service) resetGame() {
	s.bins = planner.Bins{}
	s.gameID = gamestore.NewID()
	s.startedAt = s.now()
	s.captures = 0
	s.engineMoves = 0
}

// persist logs and swallows store errors.
func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	snap := &gamestore.Snapshot{
		ID:          s.gameID,
		StartFEN:    s.board.StartFEN(),
		FEN:         s.board.FEN(),
		MovesUCI:    s.board.MovesUCI(),
		MovesSAN:    s.board.MovesSAN(),
		WhiteBin:    s.bins.Clone().White,
		BlackBin:    s.bins.Clone().Black,
		Captures:    s.captures,
		EngineMoves: s.engineMoves,
		StartedAt:   s.startedAt,
		UpdatedAt:   s.now(),
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Warn("snapshot_save_failed", zap.String("game_id", s.gameID), zap.Error(err))
	}
}

func (s *Service) finish(ctx context.Context) {
	ended := s.now()
	record := &domain.ChessGame{
		ID:        s.gameID,
		Result:    s.board.Result(),
		Method:    s.board.Method(),
		StartFEN:  s.board.StartFEN(),
		FinalFEN:  s.board.FEN(),
		MovesUCI:  s.board.MovesUCI(),
		MovesSAN:  s.board.MovesSAN(),
		StartedAt: s.startedAt,
		EndedAt:   ended,
		Duration:  ended.Sub(s.startedAt),
		Captured:  s.captures,
		Engine:    s.engineMoves,
	}
	record.PGN = gamelog.BuildPGN(record)
	s.logger.Info("game_finished",
		zap.String("game_id", s.gameID),
		zap.String("result", record.Result),
		zap.String("method", record.Method),
		zap.Int("moves", len(record.MovesUCI)),
	)
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveGame(ctx, record); err != nil {
		s.logger.Warn("game_archive_failed", zap.String("game_id", s.gameID), zap.Error(err))
	}
}

// Status is a consistent snapshot of the game and the gantry.
type Status struct {
	GameID      string         `json:"game_id"`
	FEN         string         `json:"fen"`
	State       string         `json:"state"`
	Turn        domain.Color   `json:"turn"`
	MovesUCI    []string       `json:"moves_uci"`
	MovesSAN    []string       `json:"moves_san"`
	Result      string         `json:"result,omitempty"`
	Method      string         `json:"method,omitempty"`
	ECOCode     string         `json:"eco_code,omitempty"`
	ECOTitle    string         `json:"eco_title,omitempty"`
	WhiteBin    []domain.Piece `json:"white_bin"`
	BlackBin    []domain.Piece `json:"black_bin"`
	Captures    int            `json:"captures"`
	EngineMoves int            `json:"engine_moves"`
	Pose        domain.Point   `json:"pose"`
	Homed       bool           `json:"homed"`
	Homing      string         `json:"homing_state"`
	Magnet      string         `json:"magnet"`
	StartedAt   time.Time      `json:"started_at"`
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	pose, homed := s.gantry.Pose()
	bins := s.bins.Clone()
	st := Status{
		GameID:      s.gameID,
		FEN:         s.board.FEN(),
		State:       string(s.board.State()),
		Turn:        s.board.Turn(),
		MovesUCI:    s.board.MovesUCI(),
		MovesSAN:    s.board.MovesSAN(),
		WhiteBin:    bins.White,
		BlackBin:    bins.Black,
		Captures:    s.captures,
		EngineMoves: s.engineMoves,
		Pose:        pose,
		Homed:       homed,
		Homing:      string(s.gantry.State()),
		Magnet:      string(s.gantry.Magnet()),
		StartedAt:   s.startedAt,
	}
	if s.board.Over() {
		st.Result = s.board.Result()
		st.Method = s.board.Method()
	}
	st.ECOCode, st.ECOTitle = s.board.Opening()
	return st
}

// Scene is the current robot view for the renderer.
func (s *Service) Scene() render.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	pose, homed := s.gantry.Pose()
	bins := s.bins.Clone()
	return render.Scene{
		Geometry: s.compiler.Geometry(),
		Pieces:   s.board.Pieces(),
		WhiteBin: bins.White,
		BlackBin: bins.Black,
		Pose:     pose,
		Homed:    homed,
		Magnet:   s.gantry.Magnet(),
	}
}

// RecentGames lists archived games, newest first. It does not wait for a move in progress.
func (s *Service) RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.Recent(ctx, limit)
}
