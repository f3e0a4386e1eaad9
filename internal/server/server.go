// Package server exposes the search engine over HTTP and a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/config"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Journal records finished requests and serves them back.
// *storage.Storage implements it.
type Journal interface {
	SaveAnalysis(a storage.Analysis) error
	ListAnalyses(fen string, limit int) ([]storage.Analysis, error)
	LoadStats() (*storage.Stats, error)
}

// Server holds the shared evaluator and serves search requests.
type Server struct {
	eval         *engine.Evaluator
	cfg          config.HTTPConfig
	journal      Journal
	log          zerolog.Logger
	defaultDepth int
	maxDepth     int
	upgrader     websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithJournal records every finished search.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the request and search logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithDefaultDepth sets the depth used when a request names no limit.
func WithDefaultDepth(d int) Option {
	return func(s *Server) {
		if d > 0 {
			s.defaultDepth = d
		}
	}
}

// WithMaxDepth caps iterative deepening for every request.
func WithMaxDepth(d int) Option {
	return func(s *Server) { s.maxDepth = d }
}

// New creates a server. Every request gets its own engine sharing eval.
func New(eval *engine.Evaluator, cfg config.HTTPConfig, opts ...Option) *Server {
	s := &Server{
		eval:         eval,
		cfg:          cfg,
		log:          zerolog.Nop(),
		defaultDepth: 4,
		maxDepth:     engine.MaxDepth,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/bestmove", s.handleBestMove)
	r.Get("/evaluate", s.handleEvaluate)
	r.Get("/analyses", s.handleAnalyses)
	r.Get("/stats", s.handleStats)
	r.Get("/ws/analyse", s.handleAnalyse)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) newEngine(opts ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithEvaluator(s.eval),
		engine.WithLogger(s.log),
		engine.WithMaxDepth(s.maxDepth),
	}
	return engine.NewEngine(append(base, opts...)...)
}

// capBudget limits a client supplied budget to MaxMoveTime. A zero request
// asks for the maximum.
func (s *Server) capBudget(d time.Duration) time.Duration {
	if s.cfg.MaxMoveTime <= 0 {
		return d
	}
	if d <= 0 || d > s.cfg.MaxMoveTime {
		return s.cfg.MaxMoveTime
	}
	return d
}

// bestMoveRequest is the body of POST /bestmove. The first limit set wins:
// depth, then movetime_ms, then infinite (ended by timeout_ms).
type bestMoveRequest struct {
	FEN        string   `json:"fen"`
	Moves      []string `json:"moves"`
	Depth      int      `json:"depth"`
	MoveTimeMS int      `json:"movetime_ms"`
	Infinite   bool     `json:"infinite"`
	TimeoutMS  int      `json:"timeout_ms"`
}

type gameOverResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Score  string `json:"score"`
}

func (s *Server) handleBestMove(w http.ResponseWriter, r *http.Request) {
	var req bestMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	pos, err := resolvePosition(req.FEN, req.Moves)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var limits engine.SearchLimits
	ctx := r.Context()
	switch {
	case req.Depth > 0:
		limits.Depth = req.Depth
	case req.MoveTimeMS > 0:
		limits.MoveTime = s.capBudget(time.Duration(req.MoveTimeMS) * time.Millisecond)
	case req.Infinite:
		limits.Infinite = true
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.capBudget(time.Duration(req.TimeoutMS)*time.Millisecond))
		defer cancel()
	default:
		limits.Depth = s.defaultDepth
	}

	eng := s.newEngine()
	res, err := eng.SearchWithLimits(ctx, pos, limits)
	if errors.Is(err, engine.ErrGameOver) {
		writeJSON(w, http.StatusConflict, gameOverResponse{
			Error:  err.Error(),
			Status: pos.Status().String(),
			Score:  res.Score.String(),
		})
		return
	}
	if res.Move == board.NoMove {
		res = eng.SearchDepth(pos, 1)
	}

	a := storage.NewAnalysis(pos.FEN(), strategyName(limits), res)
	s.record(a)
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) record(a storage.Analysis) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveAnalysis(a); err != nil {
		s.log.Warn().Err(err).Str("fen", a.FEN).Msg("journal write failed")
	}
}

type evaluateResponse struct {
	FEN        string       `json:"fen"`
	Status     string       `json:"status"`
	Score      string       `json:"score"`
	Centipawns int          `json:"centipawns"`
	White      engine.Terms `json:"white"`
	Black      engine.Terms `json:"black"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := resolvePosition(q.Get("fen"), strings.Fields(q.Get("moves")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	score := s.eval.Evaluate(&pos)
	terms := s.eval.Breakdown(&pos)
	writeJSON(w, http.StatusOK, evaluateResponse{
		FEN:        pos.FEN(),
		Status:     pos.Status().String(),
		Score:      score.String(),
		Centipawns: score.Centipawns(),
		White:      terms[board.White],
		Black:      terms[board.Black],
	})
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("journal disabled"))
		return
	}
	q := r.URL.Query()
	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = min(n, maxListLimit)
	}

	fen := q.Get("fen")
	if fen != "" {
		// Normalise so that records match regardless of spacing.
		pos, err := board.ParseFEN(fen)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		fen = pos.FEN()
	}

	list, err := s.journal.ListAnalyses(fen, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []storage.Analysis{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("journal disabled"))
		return
	}
	stats, err := s.journal.LoadStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// resolvePosition parses fen (the start position when empty) and plays moves
// on it. Moves may be given in UCI or SAN notation.
func resolvePosition(fen string, moves []string) (board.Position, error) {
	pos := board.NewPosition()
	if fen != "" && fen != "startpos" {
		var err error
		if pos, err = board.ParseFEN(fen); err != nil {
			return board.Position{}, err
		}
	}
	for _, s := range moves {
		m, err := pos.ParseMove(s)
		if err != nil {
			var sanErr error
			if m, sanErr = pos.ParseSAN(s); sanErr != nil {
				return board.Position{}, err
			}
		}
		pos = pos.Apply(m)
	}
	return pos, nil
}

func strategyName(l engine.SearchLimits) string {
	switch {
	case l.Depth > 0:
		return "depth"
	case l.MoveTime > 0:
		return "time"
	case l.Infinite:
		return "infinite"
	}
	return "depth"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
