package engine

import "testing"

// sampleScores is ordered from worst to best for White.
var sampleScores = []Score{
	NegInfinity,
	Mate(0, false),
	Mate(1, false),
	Mate(4, false),
	Mate(9, false),
	Numeric(-20000),
	Numeric(-35),
	Numeric(0),
	Numeric(35),
	Numeric(20000),
	Mate(9, true),
	Mate(4, true),
	Mate(1, true),
	Mate(0, true),
	Infinity,
}

func TestScoreTotalOrder(t *testing.T) {
	for i, a := range sampleScores {
		for j, b := range sampleScores {
			n := 0
			if a.Less(b) {
				n++
			}
			if a.Equal(b) {
				n++
			}
			if a.Greater(b) {
				n++
			}
			if n != 1 {
				t.Fatalf("%v vs %v: %d of <, =, > hold", a, b, n)
			}

			want := 0
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			if got := a.Compare(b); got != want {
				t.Errorf("Compare(%v, %v) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestScoreTransitive(t *testing.T) {
	for _, a := range sampleScores {
		for _, b := range sampleScores {
			for _, c := range sampleScores {
				if a.Less(b) && b.Less(c) && !a.Less(c) {
					t.Fatalf("%v < %v < %v but not %v < %v", a, b, c, a, c)
				}
			}
		}
	}
}

func TestMateDominance(t *testing.T) {
	numerics := []Score{Numeric(-1 << 30), Numeric(-1), Numeric(0), Numeric(1), Numeric(1 << 30)}
	for ply := 0; ply < 20; ply++ {
		for _, n := range numerics {
			if !Mate(ply, true).Greater(n) {
				t.Errorf("Mate(%d, white) should beat %v", ply, n)
			}
			if !Mate(ply, false).Less(n) {
				t.Errorf("Mate(%d, black) should lose to %v", ply, n)
			}
		}
	}
}

func TestScoreEquality(t *testing.T) {
	if !Mate(3, true).Equal(Mate(3, true)) {
		t.Error("identical mates should be equal")
	}
	if Mate(3, true).Equal(Mate(3, false)) {
		t.Error("mates for different sides should differ")
	}
	if Mate(0, true).Equal(Numeric(0)) {
		t.Error("a mate is never equal to a numeric score")
	}
	if Mate(-2, false) != Mate(2, false) {
		t.Error("negative ply distance should be normalized")
	}
}

func TestScoreAccessors(t *testing.T) {
	s := Mate(3, true)
	if !s.IsMate() || s.IsNumeric() || !s.WhiteWins() || s.MatePly() != 3 || s.MateMoves() != 2 {
		t.Errorf("unexpected accessors for %v", s)
	}
	if s.Centipawns() != 0 {
		t.Errorf("mate centipawns = %d, want 0", s.Centipawns())
	}
	n := Numeric(-42)
	if n.IsMate() || n.Centipawns() != -42 || n.MatePly() != 0 {
		t.Errorf("unexpected accessors for %v", n)
	}
}

func TestScoreString(t *testing.T) {
	tests := []struct {
		s    Score
		want string
	}{
		{Numeric(25), "cp 25"},
		{Numeric(-7), "cp -7"},
		{Mate(3, true), "mate +3"},
		{Mate(2, false), "mate -2"},
		{NegInfinity, "-inf"},
		{Infinity, "+inf"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// A node's result v leaves it as v.addPly(); bounds handed to it must be
// translated with subPly so that comparisons give the same answer in both frames.
func TestWindowTranslation(t *testing.T) {
	var values []Score
	for _, s := range sampleScores {
		if s != NegInfinity && s != Infinity {
			values = append(values, s)
		}
	}
	for _, v := range values {
		up := v.addPly()
		for _, b := range sampleScores {
			down := b.subPly()
			below, upBelow := v.Compare(down) <= 0, up.Compare(b) <= 0
			if below != upBelow {
				t.Errorf("v=%v b=%v: v<=b.subPly is %v, v.addPly<=b is %v", v, b, below, upBelow)
			}
			above, upAbove := v.Compare(down) >= 0, up.Compare(b) >= 0
			if above != upAbove {
				t.Errorf("v=%v b=%v: v>=b.subPly is %v, v.addPly>=b is %v", v, b, above, upAbove)
			}
		}
	}
}

func TestAddPly(t *testing.T) {
	if got := Mate(0, true).addPly(); !got.Equal(Mate(1, true)) {
		t.Errorf("Mate(0, white).addPly() = %v", got)
	}
	if got := Mate(2, false).addPly(); !got.Equal(Mate(3, false)) {
		t.Errorf("Mate(2, black).addPly() = %v", got)
	}
	if got := Numeric(15).addPly(); !got.Equal(Numeric(15)) {
		t.Errorf("Numeric(15).addPly() = %v", got)
	}
}
