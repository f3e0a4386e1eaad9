// Package config loads settings from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hailam/chesscore/internal/engine"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "CHESSPLAY_"

// StorageAuto selects the platform data directory for the database.
const StorageAuto = "auto"

type Config struct {
	Logs    LogConfig
	Engine  EngineConfig
	Storage StorageConfig
	HTTP    HTTPConfig
}

type LogConfig struct {
	Style string // "console" or "json"
	Level string
}

type EngineConfig struct {
	Depth       int           // default search depth for requests without limits
	MaxDepth    int           // cap for iterative deepening
	MoveTime    time.Duration // default budget for time searches, 0 = unused
	RetainTree  bool
	WeightsFile string // JSON weight table
	Profile     string // stored weight profile name
}

type StorageConfig struct {
	Dir string // "" disables the journal, "auto" uses the platform data directory
}

type HTTPConfig struct {
	Addr            string
	MaxMoveTime     time.Duration // upper bound for client supplied budgets
	ShutdownTimeout time.Duration
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Logs: LogConfig{Style: "console", Level: "info"},
		Engine: EngineConfig{
			Depth:    4,
			MaxDepth: engine.MaxDepth,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			MaxMoveTime:     30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Missing files are skipped. Variables already set in the
// environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a configuration from a variable lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	r := reader{getenv: getenv}

	cfg.Logs.Style = r.str("LOG_STYLE", cfg.Logs.Style)
	cfg.Logs.Level = r.str("LOG_LEVEL", cfg.Logs.Level)

	cfg.Engine.Depth = r.int("ENGINE_DEPTH", cfg.Engine.Depth)
	cfg.Engine.MaxDepth = r.int("ENGINE_MAX_DEPTH", cfg.Engine.MaxDepth)
	cfg.Engine.MoveTime = r.duration("ENGINE_MOVE_TIME", cfg.Engine.MoveTime)
	cfg.Engine.RetainTree = r.bool("ENGINE_RETAIN_TREE", cfg.Engine.RetainTree)
	cfg.Engine.WeightsFile = r.str("ENGINE_WEIGHTS_FILE", cfg.Engine.WeightsFile)
	cfg.Engine.Profile = r.str("ENGINE_PROFILE", cfg.Engine.Profile)

	cfg.Storage.Dir = r.str("STORAGE_DIR", cfg.Storage.Dir)

	cfg.HTTP.Addr = r.str("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.MaxMoveTime = r.duration("HTTP_MAX_MOVE_TIME", cfg.HTTP.MaxMoveTime)
	cfg.HTTP.ShutdownTimeout = r.duration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	if r.err != nil {
		return nil, r.err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Engine.Depth < 1 || c.Engine.Depth > engine.MaxDepth {
		return fmt.Errorf("engine depth %d out of range 1..%d", c.Engine.Depth, engine.MaxDepth)
	}
	if c.Engine.MaxDepth < c.Engine.Depth || c.Engine.MaxDepth > engine.MaxDepth {
		return fmt.Errorf("engine max depth %d out of range %d..%d", c.Engine.MaxDepth, c.Engine.Depth, engine.MaxDepth)
	}
	if c.Engine.MoveTime < 0 || c.HTTP.MaxMoveTime < 0 {
		return errors.New("negative move time")
	}
	switch c.Logs.Style {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log style %q", c.Logs.Style)
	}
	return nil
}

// LoadWeights returns the weight table named by WeightsFile, or the defaults.
func (c *EngineConfig) LoadWeights() (engine.Weights, error) {
	if c.WeightsFile == "" {
		return engine.DefaultWeights(), nil
	}
	f, err := os.Open(c.WeightsFile)
	if err != nil {
		return engine.Weights{}, err
	}
	defer f.Close()
	return engine.LoadWeights(f)
}

// ProfileStore loads named weight profiles.
type ProfileStore interface {
	LoadWeights(name string) (engine.Weights, error)
}

// ResolveWeights returns the stored profile when Profile is set, otherwise
// the weights file or the defaults. A profile requires a store.
func (c *EngineConfig) ResolveWeights(store ProfileStore) (engine.Weights, error) {
	if c.Profile == "" {
		return c.LoadWeights()
	}
	if store == nil {
		return engine.Weights{}, fmt.Errorf("weight profile %q requires storage", c.Profile)
	}
	w, err := store.LoadWeights(c.Profile)
	if err != nil {
		return engine.Weights{}, fmt.Errorf("weight profile %q: %w", c.Profile, err)
	}
	return w, nil
}

// reader parses prefixed variables and keeps the first error.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) lookup(name string) (string, bool) {
	v := strings.TrimSpace(r.getenv(EnvPrefix + name))
	return v, v != ""
}

func (r *reader) fail(name, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("parse %s%s=%q: %w", EnvPrefix, name, v, err)
	}
}

func (r *reader) str(name, def string) string {
	if v, ok := r.lookup(name); ok {
		return v
	}
	return def
}

func (r *reader) int(name string, def int) int {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, err)
		return def
	}
	return n
}

func (r *reader) bool(name string, def bool) bool {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v, err)
		return def
	}
	return b
}

// duration accepts Go durations ("750ms") or plain milliseconds ("750").
func (r *reader) duration(name string, def time.Duration) time.Duration {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(name, v, err)
		return def
	}
	return d
}
