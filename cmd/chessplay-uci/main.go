package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/profile"
	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/config"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/logging"
	"github.com/hailam/chesscore/internal/storage"
	"github.com/hailam/chesscore/internal/uci"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logging.Must(config.Default().Logs)
		log.Fatal().Err(err).Msg("load configuration")
	}

	cpuprofile := flag.String("cpuprofile", os.Getenv("CPUPROFILE"), "write cpu profile to this directory")
	flag.IntVar(&cfg.Engine.Depth, "depth", cfg.Engine.Depth, "default search depth")
	flag.IntVar(&cfg.Engine.MaxDepth, "max-depth", cfg.Engine.MaxDepth, "iterative deepening cap")
	flag.BoolVar(&cfg.Engine.RetainTree, "retain-tree", cfg.Engine.RetainTree, "keep the full search tree")
	flag.StringVar(&cfg.Engine.WeightsFile, "weights", cfg.Engine.WeightsFile, "evaluation weights JSON file")
	flag.StringVar(&cfg.Engine.Profile, "profile", cfg.Engine.Profile, "stored weight profile name")
	flag.StringVar(&cfg.Storage.Dir, "storage", cfg.Storage.Dir, `analysis journal directory ("auto" for the data directory)`)
	flag.StringVar(&cfg.Logs.Level, "log-level", cfg.Logs.Level, "log level")
	flag.Parse()

	log := logging.Must(cfg.Logs)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := run(cfg, log, *cpuprofile, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("uci")
	}
}

// run serves the protocol on in and out until "quit" or end of input.
// Deferred cleanup runs on every return path, errors included.
func run(cfg *config.Config, log zerolog.Logger, cpuprofile string, in io.Reader, out io.Writer) error {
	if cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cpuprofile), profile.Quiet).Stop()
		log.Info().Str("dir", cpuprofile).Msg("CPU profiling enabled")
	}

	store, err := storage.OpenConfigured(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var profiles config.ProfileStore
	if store != nil {
		defer store.Close()
		profiles = store
	}
	weights, err := cfg.Engine.ResolveWeights(profiles)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	eng := engine.NewEngine(
		engine.WithWeights(weights),
		engine.WithLogger(log),
		engine.WithRetainTree(cfg.Engine.RetainTree),
		engine.WithMaxDepth(cfg.Engine.MaxDepth),
	)

	opts := []uci.Option{uci.WithDefaultDepth(cfg.Engine.Depth), uci.WithLogger(log)}
	if store != nil {
		opts = append(opts, uci.WithJournal(store))
	}

	if err := uci.New(eng, in, out, opts...).Run(); err != nil {
		return fmt.Errorf("protocol loop: %w", err)
	}
	return nil
}
