// Package uci talks to a UCI chess engine (Stockfish) over its stdin/stdout.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/obslog"
)

const (
	handshakeTimeout = 4 * time.Second
	// stopGrace is how long an aborted search may take to report its bestmove.
	stopGrace = time.Second
	mateScore = 30000
)

var (
	ErrNoBestMove = errors.New("engine returned no move")
	ErrClosed     = errors.New("engine output closed")
)

type Options struct {
	Threads    int
	SkillLevel int
	HashMB     int
}

func DefaultOptions() Options {
	return Options{Threads: 1, SkillLevel: 20, HashMB: 16}
}

func (o Options) validate() error {
	if o.SkillLevel < 0 || o.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", o.SkillLevel)
	}
	if o.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", o.HashMB)
	}
	return nil
}

func (o Options) setOptions() []string {
	threads := max(o.Threads, 1)
	return []string{
		"setoption name Threads value " + strconv.Itoa(threads),
		"setoption name Hash value " + strconv.Itoa(o.HashMB),
		"setoption name Skill Level value " + strconv.Itoa(o.SkillLevel),
	}
}

// Limits bound one search. At least one must be set.
type Limits struct {
	Depth          int
	MoveTimeMillis int
}

func (l Limits) goCommand() (string, error) {
	parts := []string{"go"}
	if l.Depth > 0 {
		parts = append(parts, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		parts = append(parts, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(parts) == 1 {
		return "", errors.New("no search limits specified")
	}
	return strings.Join(parts, " "), nil
}

// timeout is the longest a search under l may run before it is stopped.
func (l Limits) timeout() time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond*2 + 2*time.Second
	}
	return min(max(time.Duration(l.Depth)*300*time.Millisecond, 6*time.Second), 20*time.Second)
}

// Result is the engine's answer. EvalCP is from the side to move; mates are clamped to ±30000.
type Result struct {
	BestMove  string
	EvalCP    int
	Principal []string
}

// Session is one engine process. Searches are serialised; a single goroutine reads the
// engine output so no line is lost between searches.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	done   chan struct{}
	logger *zap.Logger

	writeMu   sync.Mutex
	search    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewSession starts the engine binary and performs the uci/isready handshake.
func NewSession(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Session, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	cmd := exec.Command(binaryPath)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %s: %w", binaryPath, err)
	}
	return open(ctx, cmd, stdin, stdout, opt, logger)
}

// NewSessionFromPipes runs the protocol over existing streams, for engines that are
// already running or for tests.
func NewSessionFromPipes(ctx context.Context, stdin io.WriteCloser, stdout io.Reader, opt Options, logger *zap.Logger) (*Session, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	return open(ctx, nil, stdin, stdout, opt, logger)
}

func open(ctx context.Context, cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, opt Options, logger *zap.Logger) (*Session, error) {
	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		logger: obslog.Or(logger),
	}
	go s.pump(stdout)

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := s.handshake(hctx, opt); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) pump(r io.Reader) {
	defer close(s.lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		select {
		case s.lines <- strings.TrimSpace(sc.Text()):
		case <-s.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.logger.Warn("uci_output_failed", zap.Error(err))
	}
}

func (s *Session) handshake(ctx context.Context, opt Options) error {
	if err := s.send("uci"); err != nil {
		return err
	}
	if _, err := s.expect(ctx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, c := range opt.setOptions() {
		if err := s.send(c); err != nil {
			return err
		}
	}
	return s.sync(ctx)
}

// EnsureReady waits until the engine has processed everything sent so far.
func (s *Session) EnsureReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	return s.sync(ctx)
}

// NewGame clears the engine's hash between games.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame"); err != nil {
		return err
	}
	return s.EnsureReady(ctx)
}

func (s *Session) sync(ctx context.Context) error {
	if err := s.send("isready"); err != nil {
		return err
	}
	if _, err := s.expect(ctx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// BestMove searches the position reached from fen by moves and returns the engine's choice.
// An empty fen means the standard start position.
func (s *Session) BestMove(ctx context.Context, fen string, moves []string, limits Limits) (Result, error) {
	goCmd, err := limits.goCommand()
	if err != nil {
		return Result{}, err
	}
	s.search.Lock()
	defer s.search.Unlock()

	position := positionCommand(fen, moves)
	if err := s.send(position); err != nil {
		return Result{}, err
	}
	if err := s.send(goCmd); err != nil {
		return Result{}, err
	}

	sctx, cancel := context.WithTimeout(ctx, limits.timeout())
	defer cancel()

	var res Result
	for {
		line, err := s.next(sctx)
		if err != nil {
			s.logger.Warn("uci_search_failed", zap.String("position", position), zap.String("go", goCmd), zap.Error(err))
			if sctx.Err() != nil {
				s.abort()
			}
			return Result{}, fmt.Errorf("search: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "info":
			if in, ok := parseInfo(fields); ok && in.multipv == 1 {
				res.EvalCP = in.score
				res.Principal = in.pv
			}
		case "bestmove":
			if len(fields) < 2 || fields[1] == "(none)" || fields[1] == "0000" {
				return Result{}, ErrNoBestMove
			}
			res.BestMove = fields[1]
			return res, nil
		}
	}
}

// abort stops a running search and swallows its late bestmove.
func (s *Session) abort() {
	if err := s.send("stop"); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if _, err := s.expect(ctx, "bestmove"); err != nil {
		s.logger.Warn("uci_stop_unanswered", zap.Error(err))
	}
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.send("quit")
		close(s.done)
		if s.stdin != nil {
			_ = s.stdin.Close()
		}
		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		exited := make(chan error, 1)
		go func() { exited <- s.cmd.Wait() }()
		select {
		case s.closeErr = <-exited:
		case <-time.After(2 * time.Second):
			_ = s.cmd.Process.Kill()
			s.closeErr = <-exited
		}
	})
	return s.closeErr
}

func (s *Session) send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

func (s *Session) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", ErrClosed
		}
		return line, nil
	}
}

// expect reads until a line starts with token.
func (s *Session) expect(ctx context.Context, token string) (string, error) {
	for {
		line, err := s.next(ctx)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, token) {
			return line, nil
		}
	}
}

func positionCommand(fen string, moves []string) string {
	cmd := "position startpos"
	if f := strings.TrimSpace(fen); f != "" && f != "startpos" {
		cmd = "position fen " + f
	}
	if len(moves) > 0 {
		cmd += " moves " + strings.Join(moves, " ")
	}
	return cmd
}

type info struct {
	multipv int
	score   int
	pv      []string
}

// parseInfo reads the fields of an "info" line. Lines without a principal variation are
// rejected.
func parseInfo(fields []string) (info, bool) {
	in := info{multipv: 1}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "multipv":
			if i+1 < len(fields) {
				if v, err := strconv.Atoi(fields[i+1]); err == nil {
					in.multipv = v
				}
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				continue
			}
			v, err := strconv.Atoi(fields[i+2])
			if err == nil {
				switch fields[i+1] {
				case "cp":
					in.score = v
				case "mate":
					in.score = mateScore
					if v < 0 {
						in.score = -mateScore
					}
				}
			}
			i += 2
		case "pv":
			if i+1 < len(fields) {
				in.pv = append([]string(nil), fields[i+1:]...)
			}
			return in, in.pv != nil
		}
	}
	return in, false
}
