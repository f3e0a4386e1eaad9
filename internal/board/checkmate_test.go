package board

import (
	"errors"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want Status
	}{
		// Back rank mate, Black to move and mated
		{"back rank mate", "R6k/6pp/8/8/8/8/8/K7 b - - 0 1", Checkmate},
		// King can capture the checking rook
		{"escape by capture", "6Rk/8/8/8/8/8/8/K7 b - - 0 1", Ongoing},
		// Fool's mate, White is mated
		{"fools mate", "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", Checkmate},
		// Queen smothers the cornered king without check
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", Stalemate},
		{"kings only", "4k3/8/8/8/8/8/8/4K3 w - - 0 1", Ongoing},
		{"start", StartFEN, Ongoing},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatal("Error parsing FEN:", err)
			}
			if got := pos.Status(); got != tc.want {
				t.Errorf("Status() = %v, want %v", got, tc.want)
			}
			if tc.want == Checkmate && !pos.InCheck() {
				t.Error("Checkmated side should be in check")
			}
		})
	}
}

func TestParseFENRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",           // 7 ranks
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",  // rank too wide
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",  // side to move
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQxq - 0 1",  // castling
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e5 0 1", // en passant rank
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - x 1",  // clock
		"rnbq1bnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",  // missing king
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNP w KQkq - 0 1",  // pawn on back rank
		"4k3/8/8/8/8/8/3q4/4K3 b - - 0 1",                           // white king capturable
		"k7/8/8/8/R7/8/8/R3K3 w - - 0 1",                            // black king capturable
		"4k3/8/8/8/8/8/8/4K3 w KQkq - 0 1",                          // castling without rooks
		"4k3/8/8/8/8/8/8/R3K2R w KQk - 0 1",                         // black castling without a rook
		"r3k2r/8/8/8/8/8/8/R2K3R w KQkq - 0 1",                      // white king off e1
		"4k3/8/8/8/8/8/8/4K3 w - d6 0 1",                            // en passant with no pawn
		"4k3/8/8/3pP3/8/8/8/4K3 b - d6 0 2",                         // en passant, wrong side to move
		"4k3/8/8/3pP3/8/8/8/4K3 w - e6 0 2",                         // en passant behind own pawn
		"4k3/8/8/8/3Pp3/8/8/4K3 w - d3 0 2",                         // white double step, white to move
	}
	for _, fen := range bad {
		if _, err := ParseFEN(fen); !errors.Is(err, ErrInvalidFEN) {
			t.Errorf("ParseFEN(%q) error = %v, want ErrInvalidFEN", fen, err)
		}
	}
}

func TestParseFENAcceptsPlayableRights(t *testing.T) {
	good := []string{
		StartFEN,
		"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1",
		"4k2r/8/8/8/8/8/8/R3K3 b Qk - 0 1",
		"4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2",
		"4k3/8/8/8/3Pp3/8/8/4K3 b - d3 0 2",
		// White to move and in check is fine; only the side that just moved may not be.
		"4k3/8/8/8/8/8/3q4/4K3 w - - 0 1",
	}
	for _, fen := range good {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Errorf("ParseFEN(%q): %v", fen, err)
			continue
		}
		if len(pos.LegalMoves()) == 0 {
			t.Errorf("%s: no legal moves", fen)
		}
	}
}

func TestParseFENOptionalCounters(t *testing.T) {
	short, err := ParseFEN("4k3/8/8/8/8/8/8/4K3 w - -")
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	full, err := ParseFEN("4k3/8/8/8/8/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	if short.FEN() != full.FEN() {
		t.Errorf("Expected identical positions, got %s and %s", short.FEN(), full.FEN())
	}
}

func TestFENRoundTrip(t *testing.T) {
	for _, fen := range []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	} {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		again, err := ParseFEN(pos.FEN())
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", pos.FEN(), err)
		}
		if again.FEN() != pos.FEN() {
			t.Errorf("Round trip changed FEN: %s -> %s", pos.FEN(), again.FEN())
		}
	}
}

func TestMirrorFEN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{StartFEN, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1"},
		{"6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", "r5k1/8/8/8/8/8/5PPP/6K1 b - - 0 1"},
		{"r3k3/8/8/3pP3/8/8/8/4K2R w Kq d6 0 3", "4k2r/8/8/8/3Pp3/8/8/R3K3 b Qk d3 0 3"},
	}
	for _, tc := range tests {
		if got := MirrorFEN(tc.in); got != tc.want {
			t.Errorf("MirrorFEN(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if back := MirrorFEN(MirrorFEN(tc.in)); back != tc.in {
			t.Errorf("Double mirror of %q = %q", tc.in, back)
		}
	}
}

func TestParseMove(t *testing.T) {
	pos := NewPosition()

	m, err := pos.ParseMove("e2e4")
	if err != nil {
		t.Fatalf("ParseMove(e2e4): %v", err)
	}
	if m.String() != "e2e4" {
		t.Errorf("Expected e2e4, got %s", m)
	}
	if m.From().String() != "e2" || m.To().String() != "e4" {
		t.Errorf("Wrong squares: %s -> %s", m.From(), m.To())
	}

	for _, s := range []string{"e2e5", "e7e5", "z9z9", "e2", ""} {
		if _, err := pos.ParseMove(s); !errors.Is(err, ErrIllegalMove) {
			t.Errorf("ParseMove(%q) error = %v, want ErrIllegalMove", s, err)
		}
	}

	after, err := pos.ApplyUCI("e2e4", "e7e5", "g1f3")
	if err != nil {
		t.Fatalf("ApplyUCI: %v", err)
	}
	if after.SideToMove() != Black {
		t.Errorf("Expected Black to move after three plies")
	}
	if !after.Pieces(White, Knight).IsSet(NewSquare(5, 2)) {
		t.Errorf("Expected a white knight on f3")
	}
}

func TestPromotionMoveString(t *testing.T) {
	pos, err := ParseFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m, err := pos.ParseMove("a7a8q")
	if err != nil {
		t.Fatalf("ParseMove(a7a8q): %v", err)
	}
	if !m.IsPromotion() || m.Promotion() != Queen {
		t.Errorf("Expected queen promotion, got %v", m.Promotion())
	}
	if NoMove.String() != "0000" {
		t.Errorf("NoMove should render as 0000")
	}
}
