package board

import (
	"fmt"
	"strings"
)

const sanPieces = "PNBRQK"

// isCastling reports whether m is a king move of two files.
func (p *Position) isCastling(m Move) bool {
	pt, _ := p.PieceAt(m.From())
	d := m.To().File() - m.From().File()
	return pt == King && (d == 2 || d == -2)
}

// isCapture reports whether m captures, en passant included.
func (p *Position) isCapture(m Move) bool {
	if pt, _ := p.PieceAt(m.To()); pt != NoPieceType {
		return true
	}
	pt, _ := p.PieceAt(m.From())
	return pt == Pawn && m.From().File() != m.To().File()
}

// SAN converts a legal move to Standard Algebraic Notation.
func (p *Position) SAN(m Move) string {
	if m == NoMove {
		return "-"
	}

	from, to := m.From(), m.To()
	pt, _ := p.PieceAt(from)
	if pt == NoPieceType {
		return m.String()
	}

	var sb strings.Builder
	switch {
	case p.isCastling(m) && to.File() > from.File():
		sb.WriteString("O-O")
	case p.isCastling(m):
		sb.WriteString("O-O-O")
	default:
		if pt != Pawn {
			sb.WriteByte(sanPieces[pt])
			sb.WriteString(p.disambiguation(m, pt))
		}
		if p.isCapture(m) {
			if pt == Pawn {
				sb.WriteByte('a' + byte(from.File()))
			}
			sb.WriteByte('x')
		}
		sb.WriteString(to.String())
		if m.IsPromotion() {
			sb.WriteByte('=')
			sb.WriteByte(sanPieces[m.Promotion()])
		}
	}

	next := p.Apply(m)
	if next.Status() == Checkmate {
		sb.WriteByte('#')
	} else if next.InCheck() {
		sb.WriteByte('+')
	}
	return sb.String()
}

// disambiguation returns the origin file, rank, or square needed to tell m
// apart from other moves of the same piece type to the same square.
func (p *Position) disambiguation(m Move, pt PieceType) string {
	from := m.From()
	sameFile, sameRank, ambiguous := false, false, false
	for _, other := range p.LegalMoves() {
		if other.To() != m.To() || other.From() == from {
			continue
		}
		if opt, _ := p.PieceAt(other.From()); opt != pt {
			continue
		}
		ambiguous = true
		sameFile = sameFile || other.From().File() == from.File()
		sameRank = sameRank || other.From().Rank() == from.Rank()
	}

	switch {
	case !ambiguous:
		return ""
	case !sameFile:
		return string(rune('a' + from.File()))
	case !sameRank:
		return string(rune('1' + from.Rank()))
	}
	return from.String()
}

// ParseSAN resolves a SAN string against the legal moves of the position.
func (p *Position) ParseSAN(s string) (Move, error) {
	orig := s
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "+#!?")
	s = strings.ReplaceAll(s, "0", "O")

	moves := p.LegalMoves()
	if s == "O-O" || s == "O-O-O" {
		for _, m := range moves {
			if p.isCastling(m) && (m.To().File() > m.From().File()) == (s == "O-O") {
				return m, nil
			}
		}
		return NoMove, fmt.Errorf("%w: %s in %s", ErrIllegalMove, orig, p.FEN())
	}

	promo := NoPieceType
	if i := strings.IndexByte(s, '='); i >= 0 && i+1 < len(s) {
		promo = PieceType(strings.IndexByte(sanPieces, s[i+1]))
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "x", "")

	pt := Pawn
	if len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' {
		i := strings.IndexByte(sanPieces, s[0])
		if i < 0 {
			return NoMove, fmt.Errorf("%w: %q", ErrIllegalMove, orig)
		}
		pt = PieceType(i)
		s = s[1:]
	}
	if len(s) < 2 {
		return NoMove, fmt.Errorf("%w: %q", ErrIllegalMove, orig)
	}
	dest, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return NoMove, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	file, rank := -1, -1
	for _, c := range s[:len(s)-2] {
		switch {
		case c >= 'a' && c <= 'h':
			file = int(c - 'a')
		case c >= '1' && c <= '8':
			rank = int(c - '1')
		}
	}

	for _, m := range moves {
		if m.To() != dest || m.Promotion() != promo {
			continue
		}
		if mpt, _ := p.PieceAt(m.From()); mpt != pt {
			continue
		}
		if (file >= 0 && m.From().File() != file) || (rank >= 0 && m.From().Rank() != rank) {
			continue
		}
		return m, nil
	}
	return NoMove, fmt.Errorf("%w: %s in %s", ErrIllegalMove, orig, p.FEN())
}

// SANLine converts a line of moves played from p to SAN.
func (p *Position) SANLine(moves []Move) []string {
	out := make([]string, len(moves))
	cur := *p
	for i, m := range moves {
		out[i] = cur.SAN(m)
		cur = cur.Apply(m)
	}
	return out
}
