package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/config"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/logging"
)

var defaultPositions = []string{
	board.StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"rn1qkb1r/pp2pppp/5n2/3p1b2/3P4/2N1P3/PP3PPP/R1BQKBNR w KQkq - 0 1",
	"r1bqk2r/ppp2ppp/2n5/4P3/2Bp2n1/5N1P/PP1N1PP1/R2Q1RK1 b kq - 1 10",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
}

func main() {
	budget := flag.Duration("time", 2*time.Second, "time budget per position")
	parallel := flag.Int("parallel", 1, "positions searched at once")
	positions := flag.String("positions", "", "file with one FEN per line (default: built-in list)")
	growth := flag.Bool("growth", false, "measure the search time growth per depth instead")
	growthDepth := flag.Int("growth-depth", 5, "deepest depth timed by -growth")
	trials := flag.Int("trials", 3, "searches averaged per depth by -growth")
	weightsFile := flag.String("weights", "", "evaluation weights JSON file")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to this directory")
	flag.Parse()

	log := logging.Must(config.LogConfig{Style: "console", Level: "info"})

	if *cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuprofile), profile.Quiet).Stop()
	}

	ec := config.EngineConfig{WeightsFile: *weightsFile}
	weights, err := ec.LoadWeights()
	if err != nil {
		log.Fatal().Err(err).Msg("load weights")
	}
	eng := engine.NewEngine(engine.WithWeights(weights))

	if *growth {
		timings := measureGrowth(eng, board.NewPosition(), *growthDepth, *trials, log)
		printGrowth(os.Stdout, timings)
		return
	}

	fens := defaultPositions
	if *positions != "" {
		if fens, err = readPositions(*positions); err != nil {
			log.Fatal().Err(err).Msg("read positions")
		}
	}

	results, err := runBench(context.Background(), eng, fens, *budget, *parallel)
	if err != nil {
		log.Fatal().Err(err).Msg("bench")
	}
	printBench(os.Stdout, results)
}

type benchResult struct {
	FEN    string
	Result engine.Result
}

// runBench gives every position a time-budgeted search.
func runBench(ctx context.Context, eng *engine.Engine, fens []string, budget time.Duration, parallel int) ([]benchResult, error) {
	positions := make([]board.Position, len(fens))
	for i, fen := range fens {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			return nil, err
		}
		positions[i] = pos
	}

	results := make([]benchResult, len(fens))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i := range positions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = benchResult{FEN: fens[i], Result: eng.SearchTime(positions[i], budget)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printBench(w io.Writer, results []benchResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "depth\tmove\tscore\tnodes\ttime\tfen")
	var nodes uint64
	var elapsed time.Duration
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%v\t%s\n",
			r.Result.Depth, r.Result.Move, r.Result.Score, r.Result.Nodes, r.Result.Elapsed.Round(time.Millisecond), r.FEN)
		nodes += r.Result.Nodes
		elapsed += r.Result.Elapsed
	}
	tw.Flush()
	if elapsed > 0 {
		fmt.Fprintf(w, "total nodes %d, %.0f nodes/s\n", nodes, float64(nodes)/elapsed.Seconds())
	}
}

type depthTiming struct {
	Depth   int
	Average time.Duration
	Growth  float64 // Average relative to the previous depth, 0 for depth 1
}

// measureGrowth times fixed-depth searches of pos and reports how much each
// depth costs relative to the one before.
func measureGrowth(eng *engine.Engine, pos board.Position, maxDepth, trials int, log zerolog.Logger) []depthTiming {
	trials = max(trials, 1)
	var timings []depthTiming
	for depth := 1; depth <= maxDepth; depth++ {
		var total time.Duration
		for range trials {
			start := time.Now()
			eng.SearchDepth(pos, depth)
			total += time.Since(start)
		}
		t := depthTiming{Depth: depth, Average: total / time.Duration(trials)}
		if n := len(timings); n > 0 && timings[n-1].Average > 0 {
			t.Growth = float64(t.Average) / float64(timings[n-1].Average)
		}
		log.Info().Int("depth", depth).Dur("average", t.Average).Float64("growth", t.Growth).Msg("depth timed")
		timings = append(timings, t)
	}
	return timings
}

func printGrowth(w io.Writer, timings []depthTiming) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "depth\taverage\tgrowth")
	var sum float64
	var n int
	for _, t := range timings {
		fmt.Fprintf(tw, "%d\t%v\t%.2f\n", t.Depth, t.Average, t.Growth)
		if t.Growth > 0 {
			sum += t.Growth
			n++
		}
	}
	tw.Flush()
	if n > 0 {
		fmt.Fprintf(w, "mean growth %.2f (estimate uses %.1f)\n", sum/float64(n), engine.DepthGrowth)
	}
}

func readPositions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fens = append(fens, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(fens) == 0 {
		return nil, fmt.Errorf("%s: no positions", path)
	}
	return fens, nil
}
