// Package session is the client-facing side of the robot: a websocket endpoint that speaks
// the line protocol (coordinate moves and !commands) and hands work to the game service.
package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/paga2004/robochess/internal/board"
	"github.com/paga2004/robochess/internal/service/robochess"
)

// Handler is the game side of a session. *robochess.Service implements it.
type Handler interface {
	Position() (string, board.State)
	HandleMove(ctx context.Context, text string) (robochess.Outcome, error)
	Calibrate(ctx context.Context) error
	SetFEN(ctx context.Context, fen string) (robochess.Outcome, error)
	EngineMove(ctx context.Context) (robochess.Outcome, error)
}

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 3 * time.Second
)

// Server owns at most one client at a time. A new connection supersedes the current one:
// the old reader is cancelled and the new session starts once the old one has returned,
// so a move in flight always completes first.
type Server struct {
	handler     Handler
	subprotocol string
	logger      *zap.Logger

	mu      sync.Mutex
	current *client
	seq     uint64

	pingInterval time.Duration
}

type client struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewServer(h Handler, subprotocol string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handler:      h,
		subprotocol:  subprotocol,
		logger:       logger,
		pingInterval: pingInterval,
	}
}

// ListenAndServe serves websocket clients on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("session_listening", zap.String("addr", ln.Addr().String()), zap.String("subprotocol", s.subprotocol))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.dropCurrent()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !offersSubprotocol(r, s.subprotocol) {
		s.logger.Warn("session_rejected",
			zap.String("remote", r.RemoteAddr),
			zap.String("offered", r.Header.Get("Sec-WebSocket-Protocol")))
		http.Error(w, "unsupported websocket subprotocol", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{s.subprotocol},
	})
	if err != nil {
		s.logger.Warn("session_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c, ctx := s.takeOver(r.Context())
	log := s.logger.With(zap.Uint64("session", c.id), zap.String("remote", r.RemoteAddr))
	log.Info("session_open")

	err = s.run(ctx, conn, log)
	// The next client may start while this one runs its close handshake.
	s.release(c)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		_ = conn.Close(websocket.StatusNormalClosure, "")
		log.Info("session_closed")
	case websocket.CloseStatus(err) != -1:
		log.Info("session_closed", zap.Int("status", int(websocket.CloseStatus(err))))
	default:
		_ = conn.Close(websocket.StatusInternalError, "transport error")
		log.Warn("session_dropped", zap.Error(err))
	}
}

// takeOver cancels the current client, waits for it to return and installs a new one.
func (s *Server) takeOver(parent context.Context) (*client, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev := s.current; prev != nil {
		s.logger.Info("session_superseded", zap.Uint64("session", prev.id))
		prev.cancel()
		<-prev.done
	}
	s.seq++
	ctx, cancel := context.WithCancel(parent)
	c := &client{id: s.seq, cancel: cancel, done: make(chan struct{})}
	s.current = c
	return c, ctx
}

func (s *Server) release(c *client) {
	c.cancel()
	close(c.done)
	s.mu.Lock()
	if s.current == c {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *Server) dropCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
}

func (s *Server) run(ctx context.Context, conn *websocket.Conn, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.pingLoop(ctx, conn, cancel, log)

	out := &writer{conn: conn}
	fen, state := s.handler.Position()
	if err := out.send(ctx, "!set "+fen, state.Tag()); err != nil {
		return err
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			log.Debug("session_binary_ignored", zap.Int("bytes", len(data)))
			continue
		}
		if err := s.dispatch(ctx, out, strings.TrimSpace(string(data)), log); err != nil {
			return err
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, log *zap.Logger) {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				log.Warn("session_ping_failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

type writer struct {
	conn *websocket.Conn
}

func (w *writer) send(ctx context.Context, msgs ...string) error {
	for _, m := range msgs {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := w.conn.Write(wctx, websocket.MessageText, []byte(m))
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func offersSubprotocol(r *http.Request, want string) bool {
	for _, v := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(v, ",") {
			if strings.TrimSpace(p) == want {
				return true
			}
		}
	}
	return false
}
