package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// ErrIllegalMove is returned when a move string does not name a legal move.
var ErrIllegalMove = errors.New("illegal move")

// Move is a move as encoded by the move generator:
// bits 0-5 from square, bits 6-11 to square, bits 12-14 promotion piece.
type Move dragontoothmg.Move

// NoMove represents an absent move. It is never legal (a1a1).
const NoMove Move = 0

// From returns the origin square.
func (m Move) From() Square {
	dm := dragontoothmg.Move(m)
	return Square(dm.From())
}

// To returns the destination square.
func (m Move) To() Square {
	dm := dragontoothmg.Move(m)
	return Square(dm.To())
}

// Promotion returns the promotion piece type, or NoPieceType.
func (m Move) Promotion() PieceType {
	dm := dragontoothmg.Move(m)
	return fromDragon(dm.Promote())
}

// IsPromotion returns true if the move promotes a pawn.
func (m Move) IsPromotion() bool {
	return m.Promotion() != NoPieceType
}

// String returns the move in UCI long algebraic notation (e.g. "e2e4", "e7e8q").
// NoMove renders as the UCI null move "0000".
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	dm := dragontoothmg.Move(m)
	return dm.String()
}

// ParseMove resolves a UCI move string against the legal moves of the position.
func (p *Position) ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("%w: %q", ErrIllegalMove, s)
	}
	if _, err := ParseSquare(s[0:2]); err != nil {
		return NoMove, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if _, err := ParseSquare(s[2:4]); err != nil {
		return NoMove, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	for _, m := range p.LegalMoves() {
		if m.String() == s {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("%w: %s in %s", ErrIllegalMove, s, p.FEN())
}

// ApplyUCI parses and applies a sequence of UCI moves, returning the final position.
func (p *Position) ApplyUCI(moves ...string) (Position, error) {
	cur := *p
	for _, s := range moves {
		m, err := cur.ParseMove(s)
		if err != nil {
			return cur, err
		}
		cur = cur.Apply(m)
	}
	return cur, nil
}
