package engine

import (
	"cmp"
	"fmt"
)

// scoreKind orders the score classes from worst to best for White.
type scoreKind int8

const (
	kindNegInf    scoreKind = iota - 2 // window bound only
	kindMateBlack                      // Black mates in value plies
	kindNumeric                        // centipawns, White's perspective
	kindMateWhite                      // White mates in value plies
	kindPosInf                         // window bound only
)

// Score is the value of a position from White's perspective: either a numeric
// evaluation in centipawns or a forced mate at a ply distance for one side.
//
// Scores form a total order. Any mate for White is above every numeric score and
// any mate for Black is below every numeric score. Between two mates for the same
// side the shorter one is better for the winner, so MateWhite(1) > MateWhite(3)
// and MateBlack(1) < MateBlack(3).
type Score struct {
	kind  scoreKind
	value int32
}

// Window bounds. They compare below (above) every real score and are never the
// result of an evaluation.
var (
	NegInfinity = Score{kind: kindNegInf}
	Infinity    = Score{kind: kindPosInf}
)

// Numeric returns a plain evaluation score.
func Numeric(cp int) Score {
	return Score{kind: kindNumeric, value: int32(cp)}
}

// Mate returns a forced-mate score ply half-moves away, won by White if whiteWins.
func Mate(ply int, whiteWins bool) Score {
	if ply < 0 {
		ply = -ply
	}
	if whiteWins {
		return Score{kind: kindMateWhite, value: int32(ply)}
	}
	return Score{kind: kindMateBlack, value: int32(ply)}
}

// IsMate reports whether the score is a forced mate.
func (s Score) IsMate() bool {
	return s.kind == kindMateWhite || s.kind == kindMateBlack
}

// IsNumeric reports whether the score is a plain evaluation.
func (s Score) IsNumeric() bool {
	return s.kind == kindNumeric
}

// WhiteWins reports whether the mate is for White. It is false for non-mate scores.
func (s Score) WhiteWins() bool {
	return s.kind == kindMateWhite
}

// MatePly returns the distance to mate in plies, or 0 for non-mate scores.
func (s Score) MatePly() int {
	if !s.IsMate() {
		return 0
	}
	return int(s.value)
}

// MateMoves returns the distance to mate in full moves of the winning side.
func (s Score) MateMoves() int {
	return (s.MatePly() + 1) / 2
}

// Centipawns returns the numeric component: the evaluation for numeric scores, 0 otherwise.
func (s Score) Centipawns() int {
	if s.kind != kindNumeric {
		return 0
	}
	return int(s.value)
}

// Compare returns -1, 0 or +1 as s is worse than, equal to, or better than o for White.
func (s Score) Compare(o Score) int {
	if s.kind != o.kind {
		return cmp.Compare(s.kind, o.kind)
	}
	switch s.kind {
	case kindNumeric, kindMateBlack:
		return cmp.Compare(s.value, o.value)
	case kindMateWhite:
		return cmp.Compare(o.value, s.value)
	}
	return 0
}

// Equal reports whether the scores have the same class, side and value.
func (s Score) Equal(o Score) bool {
	return s.Compare(o) == 0
}

// Less reports whether s < o.
func (s Score) Less(o Score) bool {
	return s.Compare(o) < 0
}

// Greater reports whether s > o.
func (s Score) Greater(o Score) bool {
	return s.Compare(o) > 0
}

// addPly moves a mate score one ply further from the mate. Applied to a node's result
// on the way back to its parent; numeric scores and bounds are unchanged.
func (s Score) addPly() Score {
	if s.IsMate() {
		s.value++
	}
	return s
}

// subPly translates a parent's window bound into the frame of a node whose result
// will be passed through addPly, so that v <= bound.subPly() iff v.addPly() <= bound.
// A mate at distance 0 can never come back through addPly, so it maps past every
// reachable value.
func (s Score) subPly() Score {
	switch {
	case s.kind == kindMateWhite && s.value == 0:
		return Infinity
	case s.kind == kindMateBlack && s.value == 0:
		return NegInfinity
	case s.IsMate():
		s.value--
	}
	return s
}

// String formats the score for logs: "cp 25", "mate +3" (White mates) or "mate -3".
func (s Score) String() string {
	switch s.kind {
	case kindNegInf:
		return "-inf"
	case kindPosInf:
		return "+inf"
	case kindMateWhite:
		return fmt.Sprintf("mate +%d", s.value)
	case kindMateBlack:
		return fmt.Sprintf("mate -%d", s.value)
	}
	return fmt.Sprintf("cp %d", s.value)
}
