package board

import "github.com/dylhunn/dragontoothmg"

// Color represents the color of a piece or player.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "NoColor"
	}
}

// PieceType represents the type of a chess piece.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NoPieceType PieceType = 6
)

// PieceTypes lists every real piece type in material order.
var PieceTypes = [6]PieceType{Pawn, Knight, Bishop, Rook, Queen, King}

// String returns the piece type name.
func (pt PieceType) String() string {
	switch pt {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return "None"
	}
}

// Char returns the FEN character for the piece type (lowercase).
func (pt PieceType) Char() byte {
	chars := []byte{'p', 'n', 'b', 'r', 'q', 'k', ' '}
	if pt > NoPieceType {
		return ' '
	}
	return chars[pt]
}

// fromDragon maps a dragontoothmg piece to a PieceType.
func fromDragon(p dragontoothmg.Piece) PieceType {
	switch p {
	case dragontoothmg.Pawn:
		return Pawn
	case dragontoothmg.Knight:
		return Knight
	case dragontoothmg.Bishop:
		return Bishop
	case dragontoothmg.Rook:
		return Rook
	case dragontoothmg.Queen:
		return Queen
	case dragontoothmg.King:
		return King
	default:
		return NoPieceType
	}
}

// Status classifies a position as ongoing or terminal.
type Status uint8

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "ongoing"
	}
}

// Terminal reports whether the game is over.
func (s Status) Terminal() bool {
	return s != Ongoing
}
