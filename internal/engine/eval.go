// Package engine implements the chess search: the Score type, the static
// evaluator, the alpha-beta walker and the depth, time and infinite drivers.
package engine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hailam/chesscore/internal/board"
)

// Weights is the coefficient table of the static evaluator. All bonuses are
// positive and penalties negative, from the point of view of the side that owns
// the pieces.
type Weights struct {
	Pawn   int `json:"pawn"`
	Knight int `json:"knight"`
	Bishop int `json:"bishop"`
	Rook   int `json:"rook"`
	Queen  int `json:"queen"`
	King   int `json:"king"`

	BishopPair int `json:"bishop_pair"`

	RookOpenFile     int `json:"rook_open_file"`
	RookSemiOpenFile int `json:"rook_semi_open_file"`
	RookOn7th        int `json:"rook_on_7th"`
	RookOn8th        int `json:"rook_on_8th"`
	QueenOn7th       int `json:"queen_on_7th"`
	QueenOn8th       int `json:"queen_on_8th"`

	IsolatedPawn int `json:"isolated_pawn"`
	DoubledPawn  int `json:"doubled_pawn"`
	PassedPawn   int `json:"passed_pawn"`
	PawnOn7th    int `json:"pawn_on_7th"`
	CenterPawn   int `json:"center_pawn"`
}

// DefaultWeights returns the standard table.
func DefaultWeights() Weights {
	return Weights{
		Pawn:   100,
		Knight: 320,
		Bishop: 330,
		Rook:   500,
		Queen:  900,
		King:   20000,

		BishopPair: 50,

		RookOpenFile:     10,
		RookSemiOpenFile: 5,
		RookOn7th:        20,
		RookOn8th:        30,

		IsolatedPawn: -10,
		DoubledPawn:  -10,
		PassedPawn:   10,
		PawnOn7th:    10,
		CenterPawn:   5,
	}
}

// MaterialWeights returns a table with piece values only.
func MaterialWeights() Weights {
	d := DefaultWeights()
	return Weights{Pawn: d.Pawn, Knight: d.Knight, Bishop: d.Bishop, Rook: d.Rook, Queen: d.Queen, King: d.King}
}

// LoadWeights decodes a JSON weight table. Fields missing from the input keep
// their default values.
func LoadWeights(r io.Reader) (Weights, error) {
	w := DefaultWeights()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	return w, nil
}

// pieceValue returns the material value of a piece type.
func (w *Weights) pieceValue(pt board.PieceType) int {
	switch pt {
	case board.Pawn:
		return w.Pawn
	case board.Knight:
		return w.Knight
	case board.Bishop:
		return w.Bishop
	case board.Rook:
		return w.Rook
	case board.Queen:
		return w.Queen
	case board.King:
		return w.King
	}
	return 0
}

// Evaluator scores positions with a fixed weight table. It holds no mutable
// state and may be shared between goroutines.
type Evaluator struct {
	w Weights
}

// NewEvaluator creates an evaluator over the given weights.
func NewEvaluator(w Weights) *Evaluator {
	return &Evaluator{w: w}
}

// Weights returns the evaluator's coefficient table.
func (e *Evaluator) Weights() Weights {
	return e.w
}

// Evaluate returns the score of pos from White's perspective.
// A checkmated position is a mate at distance 0 for the side not to move,
// a stalemate is a numeric 0.
func (e *Evaluator) Evaluate(pos *board.Position) Score {
	return e.evaluateStatus(pos, pos.Status())
}

// evaluateStatus is Evaluate with the terminal classification already known.
func (e *Evaluator) evaluateStatus(pos *board.Position, st board.Status) Score {
	switch st {
	case board.Checkmate:
		return Mate(0, pos.SideToMove() == board.Black)
	case board.Stalemate:
		return Numeric(0)
	}
	return Numeric(e.Static(pos))
}

// Static returns the heuristic evaluation in centipawns from White's
// perspective without checking for terminal positions.
func (e *Evaluator) Static(pos *board.Position) int {
	return e.side(pos, board.White) - e.side(pos, board.Black)
}

// Terms is a per-side breakdown of the static evaluation.
type Terms struct {
	Material  int `json:"material"`
	Bishops   int `json:"bishops"`
	Rooks     int `json:"rooks"`
	Queens    int `json:"queens"`
	Pawns     int `json:"pawns"`
	Structure int `json:"structure"`
}

// Total sums the terms.
func (t Terms) Total() int {
	return t.Material + t.Bishops + t.Rooks + t.Queens + t.Pawns + t.Structure
}

// Breakdown returns the terms for both sides, indexed by color.
func (e *Evaluator) Breakdown(pos *board.Position) [2]Terms {
	return [2]Terms{e.terms(pos, board.White), e.terms(pos, board.Black)}
}

// side returns c's share of the evaluation, always as a positive-is-good number for c.
func (e *Evaluator) side(pos *board.Position, c board.Color) int {
	return e.terms(pos, c).Total()
}

func (e *Evaluator) terms(pos *board.Position, c board.Color) Terms {
	var t Terms
	w := &e.w

	for _, pt := range board.PieceTypes {
		t.Material += pos.Pieces(c, pt).PopCount() * w.pieceValue(pt)
	}

	if pos.Pieces(c, board.Bishop).PopCount() == 2 {
		t.Bishops += w.BishopPair
	}

	ownPawns := pos.Pieces(c, board.Pawn)
	enemyPawns := pos.Pieces(c.Other(), board.Pawn)
	allPawns := ownPawns | enemyPawns

	// Rooks on open and semi-open files, once per file
	rooks := pos.Pieces(c, board.Rook)
	for file := 0; file < 8; file++ {
		mask := board.FileMask[file]
		if rooks&mask == 0 || ownPawns&mask != 0 {
			continue
		}
		if allPawns&mask == 0 {
			t.Rooks += w.RookOpenFile
		} else {
			t.Rooks += w.RookSemiOpenFile
		}
	}

	seventh := board.RelativeRankMask(c, 6)
	eighth := board.RelativeRankMask(c, 7)
	if rooks&seventh != 0 {
		t.Rooks += w.RookOn7th
	}
	if rooks&eighth != 0 {
		t.Rooks += w.RookOn8th
	}

	queens := pos.Pieces(c, board.Queen)
	if queens&seventh != 0 {
		t.Queens += w.QueenOn7th
	}
	if queens&eighth != 0 {
		t.Queens += w.QueenOn8th
	}

	// Pawn structure
	for file := 0; file < 8; file++ {
		onFile := ownPawns & board.FileMask[file]
		n := onFile.PopCount()
		if n == 0 {
			continue
		}
		if n > 1 {
			t.Structure += w.DoubledPawn
		}
		if ownPawns&board.AdjacentFiles(file) == 0 {
			t.Structure += w.IsolatedPawn
		}
	}

	ownPawns.ForEach(func(sq board.Square) {
		span := board.SquareBB(sq).FrontSpan(c)
		span |= span.Sideways()
		if enemyPawns&span == 0 {
			t.Pawns += w.PassedPawn
		}
	})
	if ownPawns&seventh != 0 {
		t.Pawns += w.PawnOn7th
	}
	t.Pawns += (ownPawns & board.Center).PopCount() * w.CenterPawn

	return t
}
