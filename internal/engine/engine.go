package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
)

// MaxDepth caps iterative deepening.
const MaxDepth = 64

// ErrGameOver is returned when a move is requested for a checkmated or stalemated position.
var ErrGameOver = errors.New("game over")

// SearchInfo contains information about one completed iteration.
type SearchInfo struct {
	Depth int
	Score Score
	Nodes uint64 // total for the request so far
	Time  time.Duration
	PV    []board.Move
}

// SearchLimits specifies constraints on the search. The first limit set
// selects the strategy: Depth, then MoveTime, then Infinite, then Clock.
type SearchLimits struct {
	Depth    int           // fixed depth
	MoveTime time.Duration // time budget for this move
	Infinite bool          // search until the context is cancelled
	Clock    ClockLimits   // game clock, converted into a time budget
	Ply      int           // game ply, used with Clock
}

// Result is the outcome of a search request.
type Result struct {
	Move    board.Move
	Score   Score
	Depth   int // deepest completed iteration, 0 if none
	Nodes   uint64
	Elapsed time.Duration
	PV      []board.Move
	Root    *Node // root of the last completed iteration
}

// Centipawns returns the numeric component of the score.
func (r Result) Centipawns() int {
	return r.Score.Centipawns()
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights sets the evaluator's coefficient table.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.eval = NewEvaluator(w) }
}

// WithEvaluator shares an existing evaluator.
func WithEvaluator(ev *Evaluator) Option {
	return func(e *Engine) { e.eval = ev }
}

// WithLogger sets the logger for iteration and request events.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRetainTree keeps every explored node reachable from Result.Root.
func WithRetainTree(retain bool) Option {
	return func(e *Engine) { e.retain = retain }
}

// WithMaxDepth caps iterative deepening below MaxDepth.
func WithMaxDepth(d int) Option {
	return func(e *Engine) {
		if d > 0 && d <= MaxDepth {
			e.maxDepth = d
		}
	}
}

// WithInfo sets the per-iteration callback.
func WithInfo(fn func(SearchInfo)) Option {
	return func(e *Engine) { e.OnInfo = fn }
}

// Engine runs searches. Every request uses its own tree and walker, so an
// Engine may serve concurrent requests as long as OnInfo is safe to call
// from several goroutines.
type Engine struct {
	eval     *Evaluator
	log      zerolog.Logger
	retain   bool
	maxDepth int

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates a new engine with default weights.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		eval:     NewEvaluator(DefaultWeights()),
		log:      zerolog.Nop(),
		maxDepth: MaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluator returns the engine's evaluator.
func (e *Engine) Evaluator() *Evaluator {
	return e.eval
}

// Evaluate returns the evaluation of a position, including terminal scores.
func (e *Engine) Evaluate(pos board.Position) Score {
	return e.eval.Evaluate(&pos)
}

// request tracks one search request across iterations.
type request struct {
	start  time.Time
	nodes  uint64
	result Result
}

func (e *Engine) newRequest() *request {
	return &request{start: time.Now(), result: Result{Score: Numeric(0)}}
}

// iterate runs one full search of pos at depth from a fresh root and makes it
// the request's result.
func (e *Engine) iterate(req *request, pos board.Position, depth int) {
	root := NewNode(pos, depth)
	w := NewWalker(e.eval, e.retain)
	score := w.Search(root, NegInfinity, Infinity)
	req.nodes += w.Nodes()

	elapsed := time.Since(req.start)
	req.result = Result{
		Move:    root.BestMove,
		Score:   score,
		Depth:   depth,
		Nodes:   req.nodes,
		Elapsed: elapsed,
		PV:      root.PV(),
		Root:    root,
	}

	e.log.Debug().
		Int("depth", depth).
		Stringer("score", score).
		Uint64("nodes", req.nodes).
		Dur("elapsed", elapsed).
		Msg("iteration complete")

	if e.OnInfo != nil {
		e.OnInfo(SearchInfo{
			Depth: depth,
			Score: score,
			Nodes: req.nodes,
			Time:  elapsed,
			PV:    root.PV(),
		})
	}
}

func (e *Engine) finish(req *request, strategy string) Result {
	req.result.Elapsed = time.Since(req.start)
	req.result.Nodes = req.nodes
	r := req.result
	e.log.Info().
		Str("strategy", strategy).
		Str("move", r.Move.String()).
		Stringer("score", r.Score).
		Int("depth", r.Depth).
		Uint64("nodes", r.Nodes).
		Dur("elapsed", r.Elapsed).
		Msg("search finished")
	return r
}

// SearchDepth searches pos once at the given depth. Depths outside
// 1..MaxDepth are clamped.
func (e *Engine) SearchDepth(pos board.Position, depth int) Result {
	depth = min(max(depth, 1), e.maxDepth)
	req := e.newRequest()
	e.iterate(req, pos, depth)
	return e.finish(req, "depth")
}

// SearchTime deepens one ply at a time while the budget allows. Before each
// iteration the cost of searching at depth d is estimated as budget/2.5^d;
// an estimate under MinIterationTime, or an exhausted budget, ends the search.
// An iteration in progress is never interrupted. With no completed iteration
// the result has NoMove.
func (e *Engine) SearchTime(pos board.Position, budget time.Duration) Result {
	req := e.newRequest()
	tm := NewTimeManager(budget)
	for depth := 1; depth <= e.maxDepth && tm.CanStartIteration(depth); depth++ {
		e.iterate(req, pos, depth)
	}
	return e.finish(req, "time")
}

// SearchInfinite deepens until ctx is done. Cancellation is polled between
// iterations only, so it takes effect once the current depth completes.
// Reaching the depth cap waits for cancellation before returning.
// If ctx is done before the first iteration the result has NoMove.
func (e *Engine) SearchInfinite(ctx context.Context, pos board.Position) Result {
	req := e.newRequest()
	for depth := 1; ; depth++ {
		select {
		case <-ctx.Done():
			return e.finish(req, "infinite")
		default:
		}
		if depth > e.maxDepth {
			<-ctx.Done()
			return e.finish(req, "infinite")
		}
		e.iterate(req, pos, depth)
	}
}

// SearchWithLimits checks that pos has a move to make and dispatches to the
// strategy selected by limits. Without any limit it searches to depth 1.
func (e *Engine) SearchWithLimits(ctx context.Context, pos board.Position, limits SearchLimits) (Result, error) {
	if st := pos.Status(); st.Terminal() {
		return Result{Score: e.eval.evaluateStatus(&pos, st)}, ErrGameOver
	}

	switch {
	case limits.Depth > 0:
		return e.SearchDepth(pos, limits.Depth), nil
	case limits.MoveTime > 0:
		return e.SearchTime(pos, limits.MoveTime), nil
	case limits.Infinite:
		return e.SearchInfinite(ctx, pos), nil
	case limits.Clock.HasClock():
		return e.SearchTime(pos, AllocateFromClock(limits.Clock, pos.SideToMove(), limits.Ply)), nil
	}
	return e.SearchDepth(pos, 1), nil
}

// Perft counts the leaf nodes of the legal move tree (for debugging move generation).
func (e *Engine) Perft(pos board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.LegalMoves()
	if depth == 1 {
		return uint64(len(moves))
	}

	var nodes uint64
	for _, m := range moves {
		nodes += e.Perft(pos.Apply(m), depth-1)
	}
	return nodes
}
