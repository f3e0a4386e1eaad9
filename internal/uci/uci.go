// Package uci speaks the Universal Chess Interface over a pair of streams,
// running searches in the background so "stop" and "isready" stay responsive.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
)

// DefaultDepth is the fixed depth used for "go" without limits.
const DefaultDepth = 4

// Journal records finished searches.
type Journal interface {
	SaveAnalysis(storage.Analysis) error
}

// Option configures a UCI handler.
type Option func(*UCI)

// WithDefaultDepth sets the depth used when "go" carries no limits.
func WithDefaultDepth(d int) Option {
	return func(u *UCI) {
		if d > 0 {
			u.defaultDepth = d
		}
	}
}

// WithJournal records every finished search.
func WithJournal(j Journal) Option {
	return func(u *UCI) { u.journal = j }
}

// WithLogger sets the diagnostics logger. Protocol output never goes through it.
func WithLogger(l zerolog.Logger) Option {
	return func(u *UCI) { u.log = l }
}

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position board.Position

	in  io.Reader
	out io.Writer
	mu  sync.Mutex // guards out

	log          zerolog.Logger
	journal      Journal
	defaultDepth int

	// Search state
	searching  bool
	searchDone chan struct{}
	cancel     context.CancelFunc
	searchPos  board.Position
}

// New creates a new UCI protocol handler reading commands from in and writing
// responses to out.
func New(eng *engine.Engine, in io.Reader, out io.Writer, opts ...Option) *UCI {
	u := &UCI{
		engine:       eng,
		position:     board.NewPosition(),
		in:           in,
		out:          out,
		log:          zerolog.Nop(),
		defaultDepth: DefaultDepth,
	}
	for _, opt := range opts {
		opt(u)
	}
	eng.OnInfo = u.sendInfo
	return u
}

// Position returns the current position.
func (u *UCI) Position() board.Position {
	return u.position
}

func (u *UCI) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

// Run reads commands until "quit" or end of input. A running search is
// finished before Run returns.
func (u *UCI) Run() error {
	scanner := bufio.NewScanner(u.in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.printf("readyok\n")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleStop()
			return nil
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			u.printf("%s\n", u.position.String())
		case "eval":
			u.handleEval()
		case "perft":
			u.handlePerft(args)
		default:
			u.printf("info string Unknown command: %s\n", cmd)
		}
	}

	u.wait()
	return scanner.Err()
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	u.printf("id name ChessCore\n")
	u.printf("id author ChessPlay Team\n")
	u.printf("\n")
	u.printf("option name DefaultDepth type spin default %d min 1 max %d\n", u.defaultDepth, engine.MaxDepth)
	u.printf("uciok\n")
}

// handleNewGame resets the position for a new game.
func (u *UCI) handleNewGame() {
	u.handleStop()
	u.position = board.NewPosition()
}

// handlePosition parses and sets up a position. On error the previous
// position is kept.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	pos, err := parsePosition(args)
	if err != nil {
		u.log.Warn().Err(err).Strs("args", args).Msg("position rejected")
		u.printf("info string %v\n", err)
		return
	}
	u.position = pos
}

func parsePosition(args []string) (board.Position, error) {
	if len(args) == 0 {
		return board.Position{}, errors.New("position: missing startpos or fen")
	}

	movesAt := lo.IndexOf(args, "moves")
	spec := args
	var moves []string
	if movesAt >= 0 {
		spec, moves = args[:movesAt], args[movesAt+1:]
	}

	var pos board.Position
	switch spec[0] {
	case "startpos":
		pos = board.NewPosition()
	case "fen":
		p, err := board.ParseFEN(strings.Join(spec[1:], " "))
		if err != nil {
			return board.Position{}, err
		}
		pos = p
	default:
		return board.Position{}, fmt.Errorf("position: unknown keyword %q", spec[0])
	}

	return pos.ApplyUCI(moves...)
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth     int
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// handleGo starts a search with the given parameters.
func (u *UCI) handleGo(args []string) {
	u.handleStop()

	opts := parseGoOptions(args)
	limits := u.calculateLimits(opts)

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.searching = true
	u.searchDone = make(chan struct{})
	u.searchPos = u.position
	pos := u.position

	go func() {
		defer close(u.searchDone)
		defer cancel()

		res, err := u.engine.SearchWithLimits(ctx, pos, limits)
		if errors.Is(err, engine.ErrGameOver) {
			u.printf("info string Game over: %s\n", pos.Status())
			u.printf("bestmove 0000\n")
			return
		}

		// A budget too small for one iteration still owes the GUI a move.
		if res.Move == board.NoMove {
			u.log.Debug().Msg("no iteration completed, searching depth 1")
			res = u.engine.SearchDepth(pos, 1)
		}

		u.record(pos, strategyName(limits), res)
		u.printf("bestmove %s\n", res.Move)
	}()
}

func (u *UCI) record(pos board.Position, strategy string, res engine.Result) {
	if u.journal == nil {
		return
	}
	if err := u.journal.SaveAnalysis(storage.NewAnalysis(pos.FEN(), strategy, res)); err != nil {
		u.log.Error().Err(err).Msg("journal write failed")
	}
}

func strategyName(l engine.SearchLimits) string {
	switch {
	case l.Depth > 0:
		return "depth"
	case l.MoveTime > 0:
		return "time"
	case l.Infinite:
		return "infinite"
	case l.Clock.HasClock():
		return "clock"
	}
	return "depth"
}

// parseGoOptions parses "go" command arguments. Malformed numbers count as absent.
func parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	next := func(i *int) int {
		if *i+1 >= len(args) {
			return 0
		}
		*i++
		n, _ := strconv.Atoi(args[*i])
		return n
	}
	ms := func(i *int) time.Duration {
		return time.Duration(next(i)) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			opts.Depth = next(&i)
		case "movetime":
			opts.MoveTime = ms(&i)
		case "infinite":
			opts.Infinite = true
		case "wtime":
			opts.WTime = ms(&i)
		case "btime":
			opts.BTime = ms(&i)
		case "winc":
			opts.WInc = ms(&i)
		case "binc":
			opts.BInc = ms(&i)
		case "movestogo":
			opts.MovesToGo = next(&i)
		}
	}

	return opts
}

// calculateLimits converts GoOptions to engine.SearchLimits. Exactly one
// strategy is selected: depth, then movetime, then infinite, then the clock.
// Without any of them the default depth is used.
func (u *UCI) calculateLimits(opts GoOptions) engine.SearchLimits {
	switch {
	case opts.Depth > 0:
		return engine.SearchLimits{Depth: opts.Depth}
	case opts.MoveTime > 0:
		return engine.SearchLimits{MoveTime: opts.MoveTime}
	case opts.Infinite:
		return engine.SearchLimits{Infinite: true}
	case opts.WTime > 0 || opts.BTime > 0:
		var clock engine.ClockLimits
		clock.Time[board.White], clock.Time[board.Black] = opts.WTime, opts.BTime
		clock.Inc[board.White], clock.Inc[board.Black] = opts.WInc, opts.BInc
		clock.MovesToGo = opts.MovesToGo
		return engine.SearchLimits{Clock: clock, Ply: u.position.Ply()}
	}
	return engine.SearchLimits{Depth: u.defaultDepth}
}

// sendInfo outputs search info in UCI format. Scores are from the side to move.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	parts = append(parts, "score "+FormatScore(info.Score, u.searchPos.SideToMove()))
	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	// NPS
	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}

	if len(info.PV) > 0 {
		parts = append(parts, "pv "+strings.Join(lo.Map(info.PV, func(m board.Move, _ int) string {
			return m.String()
		}), " "))
	}

	u.printf("info %s\n", strings.Join(parts, " "))
}

// FormatScore renders a score as "cp X" or "mate N" from stm's point of view.
// N is in full moves and negative when stm is being mated.
func FormatScore(s engine.Score, stm board.Color) string {
	if s.IsMate() {
		n := s.MateMoves()
		if s.WhiteWins() != (stm == board.White) {
			n = -n
		}
		return fmt.Sprintf("mate %d", n)
	}
	cp := s.Centipawns()
	if stm == board.Black {
		cp = -cp
	}
	return fmt.Sprintf("cp %d", cp)
}

// handleStop ends an infinite search and waits for any search to finish.
// Depth and time searches run to completion.
func (u *UCI) handleStop() {
	if u.searching {
		u.cancel()
		u.wait()
	}
}

func (u *UCI) wait() {
	if u.searching {
		<-u.searchDone // Wait for search to finish
		u.searching = false
	}
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value []string
	var target *[]string

	for _, arg := range args {
		switch arg {
		case "name":
			target = &name
		case "value":
			target = &value
		default:
			if target != nil {
				*target = append(*target, arg)
			}
		}
	}

	switch strings.ToLower(strings.Join(name, " ")) {
	case "defaultdepth":
		d, err := strconv.Atoi(strings.Join(value, " "))
		if err != nil || d < 1 || d > engine.MaxDepth {
			u.printf("info string Invalid DefaultDepth: %s\n", strings.Join(value, " "))
			return
		}
		u.defaultDepth = d
	default:
		u.printf("info string Unknown option: %s\n", strings.Join(name, " "))
	}
}

// handleEval prints the static evaluation terms for both sides.
func (u *UCI) handleEval() {
	ev := u.engine.Evaluator()
	terms := ev.Breakdown(&u.position)
	w, b := terms[board.White], terms[board.Black]

	u.printf("%-10s %7s %7s\n", "Term", "White", "Black")
	rows := []struct {
		name string
		w, b int
	}{
		{"Material", w.Material, b.Material},
		{"Bishops", w.Bishops, b.Bishops},
		{"Rooks", w.Rooks, b.Rooks},
		{"Queens", w.Queens, b.Queens},
		{"Pawns", w.Pawns, b.Pawns},
		{"Structure", w.Structure, b.Structure},
		{"Total", w.Total(), b.Total()},
	}
	for _, r := range rows {
		u.printf("%-10s %7d %7d\n", r.name, r.w, r.b)
	}
	u.printf("Evaluation: %s (white side)\n", u.engine.Evaluate(u.position))
}

// handlePerft runs a perft test.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 0 {
			u.printf("info string Invalid perft depth: %s\n", args[0])
			return
		}
		depth = d
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	u.printf("Nodes: %d\n", nodes)
	u.printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		u.printf("NPS: %.0f\n", nps)
	}
}
