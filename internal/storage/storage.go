package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/config"
	"github.com/hailam/chesscore/internal/engine"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage keys
const (
	keyStats       = "stats"
	keySequence    = "seq/analysis"
	prefixAnalysis = "analysis/"
	prefixWeights  = "weights/"
)

const (
	sequenceBandwidth = 100
	maxConflictRetry  = 32
)

// Analysis is one recorded search request.
type Analysis struct {
	FEN        string        `json:"fen"`
	Strategy   string        `json:"strategy"`
	Move       string        `json:"move"`
	Score      string        `json:"score"`
	Centipawns int           `json:"centipawns"`
	MatePly    int           `json:"mate_ply,omitempty"` // negative when Black mates
	Depth      int           `json:"depth"`
	Nodes      uint64        `json:"nodes"`
	Elapsed    time.Duration `json:"elapsed"`
	PV         []string      `json:"pv,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewAnalysis builds a journal record from a search result.
func NewAnalysis(fen, strategy string, r engine.Result) Analysis {
	a := Analysis{
		FEN:        fen,
		Strategy:   strategy,
		Move:       r.Move.String(),
		Score:      r.Score.String(),
		Centipawns: r.Centipawns(),
		Depth:      r.Depth,
		Nodes:      r.Nodes,
		Elapsed:    r.Elapsed,
		PV:         lo.Map(r.PV, func(m board.Move, _ int) string { return m.String() }),
		CreatedAt:  time.Now(),
	}
	if r.Score.IsMate() {
		a.MatePly = r.Score.MatePly()
		if !r.Score.WhiteWins() {
			a.MatePly = -a.MatePly
		}
	}
	return a
}

// Stats aggregates all recorded analyses.
type Stats struct {
	Requests   int            `json:"requests"`
	Nodes      uint64         `json:"nodes"`
	SearchTime time.Duration  `json:"search_time"`
	ByStrategy map[string]int `json:"by_strategy"`
	MatesFound int            `json:"mates_found"`
	MaxDepth   int            `json:"max_depth"`
}

// NewStats returns empty statistics
func NewStats() *Stats {
	return &Stats{ByStrategy: make(map[string]int)}
}

// NodesPerSecond returns the average search speed.
func (s *Stats) NodesPerSecond() float64 {
	if s.SearchTime <= 0 {
		return 0
	}
	return float64(s.Nodes) / s.SearchTime.Seconds()
}

func (s *Stats) add(a Analysis) {
	s.Requests++
	s.Nodes += a.Nodes
	s.SearchTime += a.Elapsed
	s.ByStrategy[a.Strategy]++
	if a.MatePly != 0 {
		s.MatesFound++
	}
	s.MaxDepth = max(s.MaxDepth, a.Depth)
}

// Storage wraps BadgerDB for the analysis journal and weight profiles.
type Storage struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewStorage opens the database in the platform data directory.
func NewStorage() (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dbDir)
}

// OpenConfigured opens the database named by a configured directory.
// An empty dir disables storage and returns nil; config.StorageAuto
// selects the platform data directory.
func OpenConfigured(dir string) (*Storage, error) {
	switch dir {
	case "":
		return nil, nil
	case config.StorageAuto:
		return NewStorage()
	}
	return Open(dir)
}

// Open opens the database in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	seq, err := db.GetSequence([]byte(keySequence), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sequence: %w", err)
	}

	return &Storage{db: db, seq: seq}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			s.db.Close()
			return err
		}
	}
	return s.db.Close()
}

func analysisPrefix(fen string) []byte {
	if fen == "" {
		return []byte(prefixAnalysis)
	}
	// The terminator keeps one FEN from matching a longer one ("... 0 1" vs "... 0 10").
	return []byte(prefixAnalysis + fen + "\x00")
}

// SaveAnalysis appends a to the journal and updates the statistics.
func (s *Storage) SaveAnalysis(a Analysis) error {
	if a.FEN == "" {
		return errors.New("analysis without position")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	key := analysisPrefix(a.FEN)
	key = binary.BigEndian.AppendUint64(key, uint64(a.CreatedAt.UnixNano()))
	key = binary.BigEndian.AppendUint64(key, n)

	// Concurrent saves conflict on the stats record; the loser retries.
	for attempt := 0; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(key, data); err != nil {
				return err
			}

			stats := NewStats()
			if err := getJSON(txn, []byte(keyStats), stats); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			stats.add(a)
			return setJSON(txn, []byte(keyStats), stats)
		})
		if !errors.Is(err, badger.ErrConflict) || attempt == maxConflictRetry {
			return err
		}
	}
}

// ListAnalyses returns recorded analyses of fen, newest first. An empty fen
// lists every position. limit <= 0 means no limit.
func (s *Storage) ListAnalyses(fen string, limit int) ([]Analysis, error) {
	if fen == "" {
		all, err := s.scanAnalyses(analysisPrefix(""), false, 0)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(all, func(a, b Analysis) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}
	return s.scanAnalyses(analysisPrefix(fen), true, limit)
}

func (s *Storage) scanAnalyses(prefix []byte, reverse bool, limit int) ([]Analysis, error) {
	var out []Analysis
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if reverse {
			// Past every key under prefix: timestamp and sequence take 16 bytes.
			start = append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, 17)...)
		}
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			var a Analysis
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			out = append(out, a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// LatestAnalysis returns the most recent analysis of fen.
func (s *Storage) LatestAnalysis(fen string) (Analysis, error) {
	if fen == "" {
		return Analysis{}, ErrNotFound
	}
	list, err := s.ListAnalyses(fen, 1)
	if err != nil {
		return Analysis{}, err
	}
	if len(list) == 0 {
		return Analysis{}, fmt.Errorf("analysis of %q: %w", fen, ErrNotFound)
	}
	return list[0], nil
}

// LoadStats loads the journal statistics, returns empty stats if nothing was recorded
func (s *Storage) LoadStats() (*Stats, error) {
	stats := NewStats()
	err := s.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, []byte(keyStats), stats)
		if errors.Is(err, ErrNotFound) {
			return nil // Use empty stats
		}
		return err
	})
	return stats, err
}

func validProfileName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("invalid profile name %q", name)
	}
	return nil
}

// SaveWeights stores an evaluator weight table under name.
func (s *Storage) SaveWeights(name string, w engine.Weights) error {
	if err := validProfileName(name); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(prefixWeights+name), w)
	})
}

// LoadWeights loads the weight table stored under name.
func (s *Storage) LoadWeights(name string) (engine.Weights, error) {
	if err := validProfileName(name); err != nil {
		return engine.Weights{}, err
	}
	w := engine.DefaultWeights()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(prefixWeights+name), &w)
	})
	if err != nil {
		return engine.Weights{}, fmt.Errorf("weights %q: %w", name, err)
	}
	return w, nil
}

// DeleteWeights removes a stored profile.
func (s *Storage) DeleteWeights(name string) error {
	if err := validProfileName(name); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixWeights + name)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("weights %q: %w", name, ErrNotFound)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ListProfiles returns the names of stored weight profiles in key order.
func (s *Storage) ListProfiles() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixWeights)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixWeights)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), prefixWeights))
		}
		return nil
	})
	return names, err
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
