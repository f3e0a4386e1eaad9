package engine

import (
	"testing"

	"github.com/hailam/chesscore/internal/board"
)

// minimax is a full-width search without pruning, used as the reference for the walker.
func minimax(ev *Evaluator, pos board.Position, depth int, nodes *int) (board.Move, Score) {
	*nodes++
	if depth == 0 {
		return board.NoMove, ev.Evaluate(&pos)
	}
	succ := pos.Successors()
	if len(succ) == 0 {
		return board.NoMove, ev.Evaluate(&pos)
	}

	white := pos.SideToMove() == board.White
	best, move := Infinity, board.NoMove
	if white {
		best = NegInfinity
	}
	for _, s := range succ {
		_, v := minimax(ev, s.Position, depth-1, nodes)
		if (white && v.Greater(best)) || (!white && v.Less(best)) {
			best, move = v, s.Move
		}
	}
	return move, best.addPly()
}

func search(ev *Evaluator, pos board.Position, depth int, retain bool) (*Node, *Walker) {
	root := NewNode(pos, depth)
	w := NewWalker(ev, retain)
	w.Search(root, NegInfinity, Infinity)
	return root, w
}

func TestPruningMatchesMinimax(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		depth int
	}{
		{"start", board.StartFEN, 3},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", 2},
		{"endgame", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1", 4},
		{"back rank white", "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", 3},
		{"back rank black", "r5k1/8/8/8/8/8/5PPP/6K1 b - - 0 1", 3},
		{"mate in two", "k7/8/2K5/8/8/8/8/7R w - - 0 1", 4},
		{"promotion race", "8/P6k/8/8/8/8/6Kp/8 w - - 0 1", 4},
	}

	for _, ev := range []*Evaluator{NewEvaluator(DefaultWeights()), NewEvaluator(MaterialWeights())} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				pos := mustFEN(t, tt.fen)
				for depth := 1; depth <= tt.depth; depth++ {
					var full int
					wantMove, wantScore := minimax(ev, pos, depth, &full)
					root, w := search(ev, pos, depth, false)

					if root.BestMove != wantMove || !root.Best.Equal(wantScore) {
						t.Errorf("depth %d: alpha-beta %s %v, minimax %s %v",
							depth, root.BestMove, root.Best, wantMove, wantScore)
					}
					if w.Nodes() > uint64(full) {
						t.Errorf("depth %d: alpha-beta visited %d nodes, minimax %d", depth, w.Nodes(), full)
					}
					t.Logf("depth %d: %s %v nodes %d/%d", depth, root.BestMove, root.Best, w.Nodes(), full)
				}
			})
		}
	}
}

func TestMateInOne(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		move string
		want Score
	}{
		{"white", "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", "a1a8", Mate(1, true)},
		{"black", "r5k1/8/8/8/8/8/5PPP/6K1 b - - 0 1", "a8a1", Mate(1, false)},
	}
	ev := NewEvaluator(DefaultWeights())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := mustFEN(t, tt.fen)
			for depth := 1; depth <= 4; depth++ {
				root, _ := search(ev, pos, depth, false)
				if root.BestMove.String() != tt.move {
					t.Errorf("depth %d: move %s, want %s", depth, root.BestMove, tt.move)
				}
				if !root.Best.Equal(tt.want) {
					t.Errorf("depth %d: score %v, want %v", depth, root.Best, tt.want)
				}
				if root.Best.MateMoves() != 1 {
					t.Errorf("depth %d: mate in %d moves, want 1", depth, root.Best.MateMoves())
				}
			}
		})
	}
}

func TestMateDistancePropagates(t *testing.T) {
	// Kb6 forces Kb8, then Rh8 mates.
	pos := mustFEN(t, "k7/8/2K5/8/8/8/8/7R w - - 0 1")
	ev := NewEvaluator(DefaultWeights())

	root, _ := search(ev, pos, 2, false)
	if root.Best.IsMate() {
		t.Errorf("depth 2 sees no mate, got %v", root.Best)
	}
	for depth := 3; depth <= 5; depth++ {
		root, _ := search(ev, pos, depth, false)
		if !root.Best.Equal(Mate(3, true)) {
			t.Errorf("depth %d: score %v, want mate +3", depth, root.Best)
		}
		if pv := root.PV(); len(pv) != 3 {
			t.Errorf("depth %d: pv %v, want 3 moves", depth, pv)
		}
	}
}

func TestKingsOnly(t *testing.T) {
	ev := NewEvaluator(DefaultWeights())
	for _, fen := range []string{"8/8/4k3/8/8/8/8/4K3 w - - 0 1", "8/8/4k3/8/8/8/8/4K3 b - - 0 1"} {
		pos := mustFEN(t, fen)
		for depth := 1; depth <= 3; depth++ {
			root, _ := search(ev, pos, depth, false)
			if !root.Best.Equal(Numeric(0)) {
				t.Errorf("%s depth %d: %v, want cp 0", fen, depth, root.Best)
			}
			if root.BestMove == board.NoMove {
				t.Errorf("%s depth %d: no move", fen, depth)
			}
		}
	}
}

func TestStartPositionDepthOne(t *testing.T) {
	pos := board.NewPosition()

	root, _ := search(NewEvaluator(MaterialWeights()), pos, 1, false)
	if !root.Best.Equal(Numeric(0)) {
		t.Errorf("material only: %v, want cp 0", root.Best)
	}
	if _, err := pos.ParseMove(root.BestMove.String()); err != nil {
		t.Errorf("best move %s is not legal: %v", root.BestMove, err)
	}

	// Central pawn pushes earn their bonus with the full table.
	root, _ = search(NewEvaluator(DefaultWeights()), pos, 1, false)
	if root.Best.Centipawns() <= 0 {
		t.Errorf("default weights: %v, want a small plus for White", root.Best)
	}
	t.Logf("depth 1: %s %v", root.BestMove, root.Best)
}

func TestTerminalRoot(t *testing.T) {
	ev := NewEvaluator(DefaultWeights())
	pos := mustFEN(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	root, w := search(ev, pos, 3, true)
	if root.BestMove != board.NoMove || !root.Best.Equal(Numeric(0)) || len(root.Children) != 0 {
		t.Errorf("stalemate root: move %s score %v children %d", root.BestMove, root.Best, len(root.Children))
	}
	if w.Nodes() != 1 {
		t.Errorf("nodes = %d, want 1", w.Nodes())
	}
}

func TestRetainTree(t *testing.T) {
	ev := NewEvaluator(DefaultWeights())
	pos := board.NewPosition()

	root, _ := search(ev, pos, 2, true)
	if len(root.Children) != 20 {
		t.Fatalf("root children = %d, want 20", len(root.Children))
	}
	var found bool
	for _, c := range root.Children {
		if c.Depth != 1 {
			t.Errorf("child %s depth %d, want 1", c.Move, c.Depth)
		}
		if len(c.Children) == 0 {
			t.Errorf("child %s has no children", c.Move)
		}
		if c.Move == root.BestMove {
			found = true
		}
	}
	if !found {
		t.Error("best move is not among the children")
	}

	light, _ := search(ev, pos, 2, false)
	if light.Children != nil {
		t.Error("children kept without retain")
	}
	if light.BestMove != root.BestMove || !light.Best.Equal(root.Best) {
		t.Errorf("retain changed the result: %s %v vs %s %v", light.BestMove, light.Best, root.BestMove, root.Best)
	}
}

func TestPVIsPlayable(t *testing.T) {
	ev := NewEvaluator(DefaultWeights())
	pos := mustFEN(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	root, _ := search(ev, pos, 3, false)

	pv := root.PV()
	if len(pv) != 3 || pv[0] != root.BestMove {
		t.Fatalf("pv %v, best %s", pv, root.BestMove)
	}
	cur := pos
	for _, m := range pv {
		next, err := cur.ApplyUCI(m.String())
		if err != nil {
			t.Fatalf("pv move %s: %v", m, err)
		}
		cur = next
	}
}

func TestSearchIdempotent(t *testing.T) {
	ev := NewEvaluator(DefaultWeights())
	pos := mustFEN(t, "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1")
	a, _ := search(ev, pos, 3, false)
	b, _ := search(ev, pos, 3, false)
	if a.BestMove != b.BestMove || !a.Best.Equal(b.Best) {
		t.Errorf("first %s %v, second %s %v", a.BestMove, a.Best, b.BestMove, b.Best)
	}
}
