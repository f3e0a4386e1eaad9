package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN is returned for malformed or unplayable FEN strings.
var ErrInvalidFEN = errors.New("invalid FEN")

// ParseFEN parses a FEN string and returns a Position.
// The half-move clock and full-move number are optional.
func ParseFEN(fen string) (pos Position, err error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return Position{}, fmt.Errorf("%w: need at least 4 fields, got %d", ErrInvalidFEN, len(parts))
	}
	if len(parts) > 6 {
		return Position{}, fmt.Errorf("%w: too many fields (%d)", ErrInvalidFEN, len(parts))
	}

	// Parse piece placement (field 0)
	if err := checkPlacement(parts[0]); err != nil {
		return Position{}, err
	}

	// Parse side to move (field 1)
	if parts[1] != "w" && parts[1] != "b" {
		return Position{}, fmt.Errorf("%w: invalid side to move: %s", ErrInvalidFEN, parts[1])
	}

	// Parse castling rights (field 2)
	if err := checkCastling(parts[2]); err != nil {
		return Position{}, err
	}

	// Parse en passant square (field 3)
	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil || (sq.Rank() != 2 && sq.Rank() != 5) {
			return Position{}, fmt.Errorf("%w: invalid en passant square: %s", ErrInvalidFEN, parts[3])
		}
	}

	// Half-move clock and full-move number (fields 4 and 5, optional)
	clocks := []string{"0", "1"}
	for i := 4; i < len(parts); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return Position{}, fmt.Errorf("%w: invalid move counter: %s", ErrInvalidFEN, parts[i])
		}
		clocks[i-4] = parts[i]
	}

	normalized := strings.Join(append(parts[:4:4], clocks...), " ")

	// dragontoothmg does not report parse errors; anything it chokes on is still invalid
	defer func() {
		if r := recover(); r != nil {
			pos = Position{}
			err = fmt.Errorf("%w: %v", ErrInvalidFEN, r)
		}
	}()
	pos = Position{b: dragontoothmg.ParseFen(normalized)}
	if err := pos.checkLegal(parts[2], parts[3]); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// checkLegal rejects placements the move generator cannot play from: the side
// not to move in check, castling rights without the king and rook at home, and
// an en passant square with no pawn that just made the double step.
func (p *Position) checkLegal(castling, ep string) error {
	other := p.b
	other.Wtomove = !other.Wtomove
	if other.OurKingInCheck() {
		return fmt.Errorf("%w: %s to move can capture the king", ErrInvalidFEN, p.SideToMove())
	}

	for _, ch := range castling {
		if ch == '-' {
			break
		}
		c, rank := White, 0
		if ch == 'k' || ch == 'q' {
			c, rank = Black, 7
		}
		rookFile := 7
		if ch == 'Q' || ch == 'q' {
			rookFile = 0
		}
		if !p.Pieces(c, King).IsSet(NewSquare(4, rank)) || !p.Pieces(c, Rook).IsSet(NewSquare(rookFile, rank)) {
			return fmt.Errorf("%w: castling right %c without king and rook on their home squares", ErrInvalidFEN, ch)
		}
	}

	if ep == "-" {
		return nil
	}
	sq, _ := ParseSquare(ep)
	mover, behind := Black, sq.Rank()-1
	if sq.Rank() == 2 {
		mover, behind = White, sq.Rank()+1
	}
	if p.SideToMove() != mover.Other() ||
		!p.Pieces(mover, Pawn).IsSet(NewSquare(sq.File(), behind)) ||
		p.AllOccupied().IsSet(sq) {
		return fmt.Errorf("%w: no double pawn step behind en passant square %s", ErrInvalidFEN, ep)
	}
	return nil
}

// checkPlacement validates the piece placement field: eight ranks of eight squares,
// exactly one king per side and no pawns on the back ranks.
func checkPlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: need 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}

	kings := map[byte]int{}
	for i, rank := range ranks {
		width := 0
		for j := 0; j < len(rank); j++ {
			ch := rank[j]
			switch {
			case ch >= '1' && ch <= '8':
				width += int(ch - '0')
			case strings.IndexByte("pnbrqkPNBRQK", ch) >= 0:
				width++
				if ch == 'k' || ch == 'K' {
					kings[ch]++
				}
				if (ch == 'p' || ch == 'P') && (i == 0 || i == 7) {
					return fmt.Errorf("%w: pawn on back rank", ErrInvalidFEN)
				}
			default:
				return fmt.Errorf("%w: invalid piece character %q", ErrInvalidFEN, ch)
			}
		}
		if width != 8 {
			return fmt.Errorf("%w: rank %d has %d squares", ErrInvalidFEN, 8-i, width)
		}
	}

	if kings['K'] != 1 || kings['k'] != 1 {
		return fmt.Errorf("%w: need exactly one king per side", ErrInvalidFEN)
	}
	return nil
}

func checkCastling(castling string) error {
	if castling == "-" {
		return nil
	}
	seen := map[rune]bool{}
	for _, ch := range castling {
		if !strings.ContainsRune("KQkq", ch) || seen[ch] {
			return fmt.Errorf("%w: invalid castling rights: %s", ErrInvalidFEN, castling)
		}
		seen[ch] = true
	}
	return nil
}

// MirrorFEN flips a FEN vertically and swaps the colors: ranks are reversed,
// piece case is swapped, the side to move, castling rights and en passant square
// are mirrored. Move counters are kept. The input is assumed to be well formed.
func MirrorFEN(fen string) string {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return fen
	}

	ranks := strings.Split(parts[0], "/")
	for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
		ranks[i], ranks[j] = ranks[j], ranks[i]
	}
	parts[0] = swapCase(strings.Join(ranks, "/"))

	if parts[1] == "w" {
		parts[1] = "b"
	} else {
		parts[1] = "w"
	}

	if parts[2] != "-" {
		var sb strings.Builder
		mirrored := swapCase(parts[2])
		for _, ch := range "KQkq" {
			if strings.ContainsRune(mirrored, ch) {
				sb.WriteRune(ch)
			}
		}
		parts[2] = sb.String()
	}

	if parts[3] != "-" {
		if sq, err := ParseSquare(parts[3]); err == nil {
			parts[3] = sq.Mirror().String()
		}
	}

	return strings.Join(parts, " ")
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		}
		return r
	}, s)
}
