package board

import (
	"math/bits"
	"strings"
)

// Bitboard is a set of squares, one bit per square.
// Bit 0 = A1, Bit 7 = H1, Bit 56 = A8, Bit 63 = H8, the same layout dragontoothmg uses.
type Bitboard uint64

// File masks
const (
	FileA Bitboard = 0x0101010101010101
	FileB Bitboard = FileA << 1
	FileC Bitboard = FileA << 2
	FileD Bitboard = FileA << 3
	FileE Bitboard = FileA << 4
	FileF Bitboard = FileA << 5
	FileG Bitboard = FileA << 6
	FileH Bitboard = FileA << 7
)

// Rank masks
const (
	Rank1 Bitboard = 0x00000000000000FF
	Rank2 Bitboard = Rank1 << (8 * 1)
	Rank3 Bitboard = Rank1 << (8 * 2)
	Rank4 Bitboard = Rank1 << (8 * 3)
	Rank5 Bitboard = Rank1 << (8 * 4)
	Rank6 Bitboard = Rank1 << (8 * 5)
	Rank7 Bitboard = Rank1 << (8 * 6)
	Rank8 Bitboard = Rank1 << (8 * 7)
)

// Center is d4, e4, d5 and e5.
const Center Bitboard = (FileD | FileE) & (Rank4 | Rank5)

const (
	notFileA Bitboard = ^FileA
	notFileH Bitboard = ^FileH
)

// FileMask returns the file mask for a given file (0-7).
var FileMask = [8]Bitboard{FileA, FileB, FileC, FileD, FileE, FileF, FileG, FileH}

// RankMask returns the rank mask for a given rank (0-7).
var RankMask = [8]Bitboard{Rank1, Rank2, Rank3, Rank4, Rank5, Rank6, Rank7, Rank8}

// RelativeRankMask returns the mask of the n-th rank (0-7) as seen from c's side of the board.
func RelativeRankMask(c Color, n int) Bitboard {
	if c == White {
		return RankMask[n]
	}
	return RankMask[7-n]
}

// AdjacentFiles returns the files directly left and right of file (0-7).
func AdjacentFiles(file int) Bitboard {
	var adj Bitboard
	if file > 0 {
		adj |= FileMask[file-1]
	}
	if file < 7 {
		adj |= FileMask[file+1]
	}
	return adj
}

// SquareBB returns a bitboard with only the given square set.
func SquareBB(sq Square) Bitboard {
	return 1 << sq
}

// IsSet returns true if the bit at the given square is set.
func (b Bitboard) IsSet(sq Square) bool {
	return b&(1<<sq) != 0
}

// PopCount returns the number of set bits.
func (b Bitboard) PopCount() int {
	return bits.OnesCount64(uint64(b))
}

// Empty returns true if no bits are set.
func (b Bitboard) Empty() bool {
	return b == 0
}

// PopLSB removes and returns the least significant bit.
func (b *Bitboard) PopLSB() Square {
	if *b == 0 {
		return NoSquare
	}
	sq := Square(bits.TrailingZeros64(uint64(*b)))
	*b &= *b - 1
	return sq
}

// Flip mirrors the bitboard vertically (rank 1 <-> rank 8).
func (b Bitboard) Flip() Bitboard {
	return Bitboard(bits.ReverseBytes64(uint64(b)))
}

// NorthFill fills all squares north of the set bits, including the bits themselves.
func (b Bitboard) NorthFill() Bitboard {
	b |= b << 8
	b |= b << 16
	b |= b << 32
	return b
}

// SouthFill fills all squares south of the set bits, including the bits themselves.
func (b Bitboard) SouthFill() Bitboard {
	b |= b >> 8
	b |= b >> 16
	b |= b >> 32
	return b
}

// FrontSpan returns the squares strictly ahead of b on the same files, from c's point of view.
func (b Bitboard) FrontSpan(c Color) Bitboard {
	if c == White {
		return (b << 8).NorthFill()
	}
	return (b >> 8).SouthFill()
}

// Sideways returns the squares one file left and right of b.
func (b Bitboard) Sideways() Bitboard {
	return ((b << 1) & notFileA) | ((b >> 1) & notFileH)
}

// ForEach calls the function for each set square, lowest first.
func (b Bitboard) ForEach(f func(Square)) {
	for b != 0 {
		f(b.PopLSB())
	}
}

// String renders the bitboard as an 8x8 grid, rank 8 on top.
func (b Bitboard) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteByte(byte('1' + rank))
		sb.WriteByte(' ')
		for file := 0; file < 8; file++ {
			if b.IsSet(NewSquare(file, rank)) {
				sb.WriteString("1 ")
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}
