package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
)

func openMemory(t *testing.T) *Storage {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestAnalysisJournal(t *testing.T) {
	s := openMemory(t)
	start := board.StartFEN
	other := "8/8/4k3/8/8/8/8/4K3 w - - 0 1"
	// Shares a prefix with other but is a different position.
	longer := "8/8/4k3/8/8/8/8/4K3 w - - 0 10"

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	records := []Analysis{
		{FEN: start, Strategy: "depth", Move: "e2e4", Depth: 1, Nodes: 21, CreatedAt: base},
		{FEN: other, Strategy: "time", Move: "e1d1", Depth: 3, Nodes: 100, CreatedAt: base.Add(time.Second)},
		{FEN: start, Strategy: "depth", Move: "d2d4", Depth: 2, Nodes: 60, CreatedAt: base.Add(2 * time.Second)},
		{FEN: longer, Strategy: "infinite", Move: "e1e2", Depth: 5, Nodes: 900, MatePly: 3, CreatedAt: base.Add(3 * time.Second)},
	}
	for _, a := range records {
		if err := s.SaveAnalysis(a); err != nil {
			t.Fatalf("SaveAnalysis: %v", err)
		}
	}

	t.Run("ByPosition", func(t *testing.T) {
		list, err := s.ListAnalyses(start, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 || list[0].Move != "d2d4" || list[1].Move != "e2e4" {
			t.Errorf("start position analyses: %+v", list)
		}

		list, err = s.ListAnalyses(other, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Move != "e1d1" {
			t.Errorf("other position analyses: %+v", list)
		}
	})

	t.Run("All", func(t *testing.T) {
		list, err := s.ListAnalyses("", 3)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"e1e2", "d2d4", "e1d1"}
		if len(list) != len(want) {
			t.Fatalf("got %d analyses, want %d", len(list), len(want))
		}
		for i, a := range list {
			if a.Move != want[i] {
				t.Errorf("analysis %d: %s, want %s", i, a.Move, want[i])
			}
		}
	})

	t.Run("Latest", func(t *testing.T) {
		a, err := s.LatestAnalysis(start)
		if err != nil {
			t.Fatal(err)
		}
		if a.Move != "d2d4" || !a.CreatedAt.Equal(base.Add(2*time.Second)) {
			t.Errorf("latest: %+v", a)
		}
		if _, err := s.LatestAnalysis("8/8/8/8/8/8/8/k6K w - - 0 1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("unknown position: err %v, want ErrNotFound", err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := s.LoadStats()
		if err != nil {
			t.Fatal(err)
		}
		if stats.Requests != 4 || stats.Nodes != 1081 || stats.MatesFound != 1 || stats.MaxDepth != 5 {
			t.Errorf("stats: %+v", stats)
		}
		if stats.ByStrategy["depth"] != 2 || stats.ByStrategy["time"] != 1 {
			t.Errorf("by strategy: %v", stats.ByStrategy)
		}
	})

	if err := s.SaveAnalysis(Analysis{}); err == nil {
		t.Error("expected error for analysis without position")
	}
}

func TestConcurrentSaves(t *testing.T) {
	s := openMemory(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.SaveAnalysis(Analysis{FEN: board.StartFEN, Strategy: "depth", Move: fmt.Sprint(i), Nodes: 1})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("SaveAnalysis: %v", err)
		}
	}

	list, err := s.ListAnalyses(board.StartFEN, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 8 {
		t.Errorf("got %d analyses, want 8", len(list))
	}
	stats, err := s.LoadStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Requests != 8 {
		t.Errorf("stats requests = %d, want 8", stats.Requests)
	}
}

func TestNewAnalysis(t *testing.T) {
	eng := engine.NewEngine()
	pos, err := board.ParseFEN("r5k1/8/8/8/8/8/5PPP/6K1 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	res := eng.SearchDepth(pos, 2)

	a := NewAnalysis(pos.FEN(), "depth", res)
	if a.Move != "a8a1" || a.MatePly != -1 || a.Depth != 2 || a.Score != "mate -1" {
		t.Errorf("analysis: %+v", a)
	}
	if len(a.PV) != 1 || a.PV[0] != "a8a1" {
		t.Errorf("pv: %v", a.PV)
	}
}

func TestWeightProfiles(t *testing.T) {
	s := openMemory(t)

	if _, err := s.LoadWeights("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing profile: err %v, want ErrNotFound", err)
	}

	w := engine.DefaultWeights()
	w.CenterPawn = 12
	w.QueenOn7th = 15
	if err := s.SaveWeights("aggressive", w); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveWeights("material", engine.MaterialWeights()); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadWeights("aggressive")
	if err != nil {
		t.Fatal(err)
	}
	if got != w {
		t.Errorf("loaded %+v, want %+v", got, w)
	}

	names, err := s.ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "aggressive" || names[1] != "material" {
		t.Errorf("profiles: %v", names)
	}

	if err := s.DeleteWeights("aggressive"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteWeights("aggressive"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err %v, want ErrNotFound", err)
	}

	for _, bad := range []string{"", "a/b"} {
		if err := s.SaveWeights(bad, w); err == nil {
			t.Errorf("SaveWeights(%q): expected error", bad)
		}
	}
}

func TestStatsNodesPerSecond(t *testing.T) {
	stats := NewStats()
	if stats.NodesPerSecond() != 0 {
		t.Errorf("empty stats: %v", stats.NodesPerSecond())
	}
	stats.add(Analysis{Strategy: "depth", Nodes: 5000, Elapsed: 2 * time.Second})
	if got := stats.NodesPerSecond(); got != 2500 {
		t.Errorf("NodesPerSecond = %v, want 2500", got)
	}
}

func TestOpenConfigured(t *testing.T) {
	s, err := OpenConfigured("")
	if err != nil || s != nil {
		t.Fatalf("empty dir: %v %v", s, err)
	}

	dir := t.TempDir()
	s, err = OpenConfigured(dir)
	if err != nil {
		t.Fatal(err)
	}
	a := Analysis{FEN: board.StartFEN, Strategy: "depth", Move: "e2e4", Depth: 1, CreatedAt: time.Now()}
	if err := s.SaveAnalysis(a); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Records survive a reopen.
	s, err = OpenConfigured(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.LatestAnalysis(board.StartFEN)
	if err != nil || got.Move != "e2e4" {
		t.Errorf("after reopen: %+v %v", got, err)
	}
}
