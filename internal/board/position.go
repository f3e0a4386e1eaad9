package board

import (
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// Position is an immutable board snapshot: placement, side to move, castling and
// en passant rights. Applying a move yields a new Position; the receiver is unchanged.
type Position struct {
	b dragontoothmg.Board
}

// Successor pairs a legal move with the position it produces.
type Successor struct {
	Move     Move
	Position Position
}

// NewPosition returns the standard starting position.
func NewPosition() Position {
	return Position{b: dragontoothmg.ParseFen(StartFEN)}
}

// SideToMove returns the color to move.
func (p *Position) SideToMove() Color {
	if p.b.Wtomove {
		return White
	}
	return Black
}

func (p *Position) bitboards(c Color) *dragontoothmg.Bitboards {
	if c == White {
		return &p.b.White
	}
	return &p.b.Black
}

// Ply returns the game ply derived from the full move number: 0 for White's first move.
func (p *Position) Ply() int {
	ply := max(int(p.b.Fullmoveno)-1, 0) * 2
	if !p.b.Wtomove {
		ply++
	}
	return ply
}

// Pieces returns the squares holding pieces of the given color and type.
func (p *Position) Pieces(c Color, pt PieceType) Bitboard {
	bb := p.bitboards(c)
	switch pt {
	case Pawn:
		return Bitboard(bb.Pawns)
	case Knight:
		return Bitboard(bb.Knights)
	case Bishop:
		return Bitboard(bb.Bishops)
	case Rook:
		return Bitboard(bb.Rooks)
	case Queen:
		return Bitboard(bb.Queens)
	case King:
		return Bitboard(bb.Kings)
	}
	return 0
}

// Occupied returns all squares holding pieces of the given color.
func (p *Position) Occupied(c Color) Bitboard {
	return Bitboard(p.bitboards(c).All)
}

// AllOccupied returns all occupied squares.
func (p *Position) AllOccupied() Bitboard {
	return Bitboard(p.b.White.All | p.b.Black.All)
}

// PieceAt returns the piece on sq, or NoPieceType if the square is empty.
func (p *Position) PieceAt(sq Square) (PieceType, Color) {
	for _, c := range [2]Color{White, Black} {
		if !p.Occupied(c).IsSet(sq) {
			continue
		}
		for _, pt := range PieceTypes {
			if p.Pieces(c, pt).IsSet(sq) {
				return pt, c
			}
		}
	}
	return NoPieceType, White
}

// LegalMoves returns the legal moves in generator order.
func (p *Position) LegalMoves() []Move {
	b := p.b
	raw := b.GenerateLegalMoves()
	moves := make([]Move, len(raw))
	for i, m := range raw {
		moves[i] = Move(m)
	}
	return moves
}

// Apply returns the position after the move. The move must be legal.
func (p *Position) Apply(m Move) Position {
	next := *p
	next.b.Apply(dragontoothmg.Move(m))
	return next
}

// Successors enumerates the legal moves together with the positions they lead to,
// in generator order.
func (p *Position) Successors() []Successor {
	moves := p.LegalMoves()
	succ := make([]Successor, len(moves))
	for i, m := range moves {
		succ[i] = Successor{Move: m, Position: p.Apply(m)}
	}
	return succ
}

// InCheck returns true if the side to move is in check.
func (p *Position) InCheck() bool {
	b := p.b
	return b.OurKingInCheck()
}

// Status classifies the position as ongoing, checkmate or stalemate.
func (p *Position) Status() Status {
	if len(p.LegalMoves()) > 0 {
		return Ongoing
	}
	if p.InCheck() {
		return Checkmate
	}
	return Stalemate
}

// FEN returns the position in Forsyth-Edwards Notation.
func (p *Position) FEN() string {
	b := p.b
	return b.ToFen()
}

// Mirror returns the color-flipped position: ranks reversed, colors swapped,
// side to move swapped. Evaluations of p and p.Mirror() are negatives of each other.
func (p *Position) Mirror() (Position, error) {
	return ParseFEN(MirrorFEN(p.FEN()))
}

// String returns a diagram of the position followed by its FEN.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteByte(byte('1' + rank))
		sb.WriteByte(' ')
		for file := 0; file < 8; file++ {
			pt, c := p.PieceAt(NewSquare(file, rank))
			ch := byte('.')
			if pt != NoPieceType {
				ch = pt.Char()
				if c == White {
					ch -= 'a' - 'A'
				}
			}
			sb.WriteByte(ch)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	sb.WriteString("Fen: ")
	sb.WriteString(p.FEN())
	return sb.String()
}
