package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesscore/internal/config"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/logging"
	"github.com/hailam/chesscore/internal/server"
	"github.com/hailam/chesscore/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logging.Must(config.Default().Logs)
		log.Fatal().Err(err).Msg("load configuration")
	}

	flag.StringVar(&cfg.HTTP.Addr, "addr", cfg.HTTP.Addr, "listen address")
	flag.DurationVar(&cfg.HTTP.MaxMoveTime, "max-move-time", cfg.HTTP.MaxMoveTime, "upper bound for client search budgets")
	flag.IntVar(&cfg.Engine.Depth, "depth", cfg.Engine.Depth, "default search depth")
	flag.IntVar(&cfg.Engine.MaxDepth, "max-depth", cfg.Engine.MaxDepth, "iterative deepening cap")
	flag.StringVar(&cfg.Engine.WeightsFile, "weights", cfg.Engine.WeightsFile, "evaluation weights JSON file")
	flag.StringVar(&cfg.Engine.Profile, "profile", cfg.Engine.Profile, "stored weight profile name")
	flag.StringVar(&cfg.Storage.Dir, "storage", cfg.Storage.Dir, `analysis journal directory ("auto" for the data directory)`)
	flag.StringVar(&cfg.Logs.Level, "log-level", cfg.Logs.Level, "log level")
	flag.Parse()

	log := logging.Must(cfg.Logs)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		stop()
		log.Fatal().Err(err).Msg("server error")
	}
}

// run serves HTTP until ctx is cancelled. The journal is closed on every
// return path.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := storage.OpenConfigured(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	var (
		profiles config.ProfileStore
		opts     = []server.Option{
			server.WithLogger(log),
			server.WithDefaultDepth(cfg.Engine.Depth),
			server.WithMaxDepth(cfg.Engine.MaxDepth),
		}
	)
	if store != nil {
		defer store.Close()
		profiles = store
		opts = append(opts, server.WithJournal(store))
	}

	weights, err := cfg.Engine.ResolveWeights(profiles)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.New(engine.NewEvaluator(weights), cfg.HTTP, opts...).Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
			return srv.Close()
		}
		return nil
	})
	return g.Wait()
}
