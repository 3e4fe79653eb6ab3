package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/board"
	"github.com/paga2004/robochess/internal/service/robochess"
)

// dispatch handles one client line. Only transport errors are returned; everything else is
// answered on the wire or logged.
func (s *Server) dispatch(ctx context.Context, out *writer, line string, log *zap.Logger) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "!") {
		res, err := s.handler.HandleMove(ctx, line)
		return s.answerMove(ctx, out, line, res, err, log)
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "!calibrate":
		if err := s.handler.Calibrate(ctx); err != nil {
			log.Error("session_calibrate_failed", zap.Error(err))
		}
		return nil

	case "!fen":
		res, err := s.handler.SetFEN(ctx, arg)
		if err != nil {
			log.Warn("session_fen_rejected", zap.String("fen", arg), zap.Error(err))
			return s.resync(ctx, out)
		}
		return out.send(ctx, "!set "+res.FEN, res.State.Tag())

	case "!engine":
		res, err := s.handler.EngineMove(ctx)
		if errors.Is(err, robochess.ErrEngineUnavailable) {
			log.Warn("session_engine_unavailable", zap.Error(err))
			return nil
		}
		if err != nil {
			log.Warn("session_engine_move_failed", zap.Error(err))
			return s.resync(ctx, out)
		}
		return out.send(ctx, "!move "+res.UCI, "!set "+res.FEN, res.State.Tag())

	case "!status":
		return s.resync(ctx, out)

	default:
		log.Warn("session_unknown_command", zap.String("line", line))
		return nil
	}
}

func (s *Server) answerMove(ctx context.Context, out *writer, line string, res robochess.Outcome, err error, log *zap.Logger) error {
	switch {
	case err == nil:
		log.Info("session_move", zap.String("move", res.UCI), zap.String("san", res.SAN))
		return out.send(ctx, res.State.Tag())
	case errors.Is(err, board.ErrUnparseableMove):
		log.Debug("session_move_unparseable", zap.String("line", line))
		return nil
	case errors.Is(err, board.ErrIllegalMove), errors.Is(err, board.ErrGameOver):
		log.Info("session_move_illegal", zap.String("line", line), zap.Error(err))
	default:
		log.Error("session_move_failed", zap.String("line", line), zap.Error(err))
	}
	return out.send(ctx, "!set "+res.FEN, res.State.Tag())
}

func (s *Server) resync(ctx context.Context, out *writer) error {
	fen, state := s.handler.Position()
	return out.send(ctx, "!set "+fen, state.Tag())
}
