package engine

import (
	"github.com/hailam/chesscore/internal/board"
)

// Node is one position in the search tree.
type Node struct {
	Position board.Position
	Depth    int        // remaining depth
	Move     board.Move // move that led here from the parent, NoMove at the root

	BestMove board.Move
	Best     Score

	// Children holds the explored children in generation order. It is only
	// filled when the walker retains the tree.
	Children []*Node

	pv []board.Move
}

// NewNode creates a root node for pos with the given depth budget.
func NewNode(pos board.Position, depth int) *Node {
	return &Node{Position: pos, Depth: depth}
}

// PV returns the principal variation found below the node, starting with BestMove.
func (n *Node) PV() []board.Move {
	return n.pv
}

// Walker runs a full-width alpha-beta search over Nodes. White maximizes and
// Black minimizes; there is no move ordering, so children are visited in the
// order the position source generates them.
type Walker struct {
	eval   *Evaluator
	retain bool
	nodes  uint64
}

// NewWalker creates a walker. With retain set, every node keeps its explored
// children; otherwise only the principal variation survives the search.
func NewWalker(eval *Evaluator, retain bool) *Walker {
	return &Walker{eval: eval, retain: retain}
}

// Nodes returns the number of nodes visited since the walker was created.
func (w *Walker) Nodes() uint64 {
	return w.nodes
}

// Search searches n within the window (alpha, beta), records the best move and
// score on n, and returns the score. Mate distances grow by one ply per level:
// a checkmate found one move below n is reported as a mate in 1 ply.
func (w *Walker) Search(n *Node, alpha, beta Score) Score {
	w.nodes++

	if n.Depth <= 0 {
		n.Best = w.eval.Evaluate(&n.Position)
		return n.Best
	}

	succ := n.Position.Successors()
	if len(succ) == 0 {
		st := board.Stalemate
		if n.Position.InCheck() {
			st = board.Checkmate
		}
		n.Best = w.eval.evaluateStatus(&n.Position, st)
		return n.Best
	}

	// The window arrives in the parent's frame; children answer in ours.
	alpha, beta = alpha.subPly(), beta.subPly()

	white := n.Position.SideToMove() == board.White
	best := Infinity
	if white {
		best = NegInfinity
	}

	if w.retain {
		n.Children = make([]*Node, 0, len(succ))
	}

	for _, s := range succ {
		child := &Node{Position: s.Position, Depth: n.Depth - 1, Move: s.Move}
		v := w.Search(child, alpha, beta)
		if w.retain {
			n.Children = append(n.Children, child)
		}

		if white {
			if v.Greater(best) {
				best = v
				n.setBest(child)
			}
			if best.Greater(alpha) {
				alpha = best
			}
		} else {
			if v.Less(best) {
				best = v
				n.setBest(child)
			}
			if best.Less(beta) {
				beta = best
			}
		}

		if !alpha.Less(beta) {
			break
		}
	}

	n.Best = best.addPly()
	return n.Best
}

func (n *Node) setBest(child *Node) {
	n.BestMove = child.Move
	n.pv = append(n.pv[:0], child.Move)
	n.pv = append(n.pv, child.pv...)
}
