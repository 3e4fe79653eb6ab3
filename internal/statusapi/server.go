// Package statusapi serves read-only views of the robot over HTTP: the game status as JSON
// and a rendered picture of the table.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/render"
	"github.com/paga2004/robochess/internal/service/robochess"
)

// Source is where the views come from. *robochess.Service implements it.
type Source interface {
	Status() robochess.Status
	Scene() render.Scene
	RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error)
}

const maxGames = 100

type Server struct {
	src    Source
	logger *zap.Logger
	srv    *fasthttp.Server
}

func NewServer(src Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{src: src, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		Name:         "robochess",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve blocks until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()
	s.logger.Info("statusapi_listening", zap.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case "/status":
		s.status(ctx)
	case "/board.png":
		s.boardPNG(ctx)
	case "/games":
		s.games(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) status(ctx *fasthttp.RequestCtx) {
	body, err := json.Marshal(s.src.Status())
	if err != nil {
		s.logger.Error("statusapi_encode_failed", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (s *Server) boardPNG(ctx *fasthttp.RequestCtx) {
	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	img, err := render.PNG(rctx, s.src.Scene())
	if err != nil {
		s.logger.Error("statusapi_render_failed", zap.Error(err))
		ctx.Error("render failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetContentType("image/png")
	ctx.SetBody(img)
}

// games serves the archive, newest first. ?limit=N caps the page at maxGames.
func (s *Server) games(ctx *fasthttp.RequestCtx) {
	limit := 0
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 1 {
			ctx.Error("bad limit", fasthttp.StatusBadRequest)
			return
		}
		limit = min(n, maxGames)
	}

	qctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	games, err := s.src.RecentGames(qctx, limit)
	if err != nil {
		s.logger.Error("statusapi_games_failed", zap.Error(err))
		ctx.Error("archive unavailable", fasthttp.StatusServiceUnavailable)
		return
	}
	if games == nil {
		games = []*domain.ChessGame{}
	}
	body, err := json.Marshal(games)
	if err != nil {
		s.logger.Error("statusapi_encode_failed", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
