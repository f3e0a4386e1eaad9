package engine

import (
	"math"
	"time"

	"github.com/hailam/chesscore/internal/board"
)

// Iteration cost model for time-budgeted search.
const (
	// DepthGrowth is the assumed cost factor between consecutive depths.
	DepthGrowth = 2.5
	// MinIterationTime is the smallest estimated iteration worth starting.
	MinIterationTime = 100 * time.Millisecond
)

// ClockLimits contains UCI time control parameters.
type ClockLimits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
}

// HasClock reports whether any remaining time was given.
func (l ClockLimits) HasClock() bool {
	return l.Time[board.White] > 0 || l.Time[board.Black] > 0
}

// TimeManager gates iterations of a time-budgeted search.
type TimeManager struct {
	budget    time.Duration
	startTime time.Time
}

// NewTimeManager starts the clock for a search with the given budget.
func NewTimeManager(budget time.Duration) *TimeManager {
	return &TimeManager{budget: budget, startTime: time.Now()}
}

// Budget returns the total time for this search.
func (tm *TimeManager) Budget() time.Duration {
	return tm.budget
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// EstimateIteration returns the a-priori estimate budget / 2.5^i for iteration i.
func (tm *TimeManager) EstimateIteration(i int) time.Duration {
	return time.Duration(float64(tm.budget) / math.Pow(DepthGrowth, float64(i)))
}

// CanStartIteration reports whether iteration i may start: time is left and
// the estimate is not below MinIterationTime.
func (tm *TimeManager) CanStartIteration(i int) bool {
	if tm.Elapsed() >= tm.budget {
		return false
	}
	return tm.EstimateIteration(i) >= MinIterationTime
}

// AllocateFromClock converts a game clock into a budget for one move.
// ply is the current game ply (half-move number).
func AllocateFromClock(limits ClockLimits, us board.Color, ply int) time.Duration {
	timeLeft := limits.Time[us]
	inc := limits.Inc[us]
	if timeLeft <= 0 {
		return inc * 9 / 10
	}

	// Estimate moves to go
	mtg := limits.MovesToGo
	if mtg == 0 {
		// Sudden death: fewer moves expected as the game goes on
		mtg = min(max(50-ply/4, 10), 50)
	}

	budget := timeLeft/time.Duration(mtg) + inc*9/10

	// Slight reduction for very early moves
	if ply < 8 {
		budget = budget * 85 / 100
	}

	// Never use more than 80% of remaining time
	if limit := timeLeft * 8 / 10; budget > limit {
		budget = limit
	}
	return budget
}
