package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
)

const wsIdlePingInterval = 30 * time.Second

// wsMessage is the envelope for every websocket frame in both directions.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type infoPayload struct {
	Depth      int      `json:"depth"`
	Score      string   `json:"score"`
	Centipawns int      `json:"centipawns"`
	Nodes      uint64   `json:"nodes"`
	TimeMS     int64    `json:"time_ms"`
	PV         []string `json:"pv"`
	PVSAN      []string `json:"pv_san"`
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// handleAnalyse runs a cancellable search on the position given by the fen
// and moves query parameters and streams one "info" message per completed
// depth. A client "stop" message, a disconnect, or timeout_ms (capped by
// MaxMoveTime) ends the search; the final message is "bestmove".
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := resolvePosition(q.Get("fen"), strings.Fields(q.Get("moves")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if st := pos.Status(); st.Terminal() {
		writeJSON(w, http.StatusConflict, gameOverResponse{
			Error:  engine.ErrGameOver.Error(),
			Status: st.String(),
			Score:  s.eval.Evaluate(&pos).String(),
		})
		return
	}
	var timeout time.Duration
	if v := q.Get("timeout_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid timeout_ms %q", v))
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if budget := s.capBudget(timeout); budget > 0 {
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	go readControl(conn, cancel)

	send := make(chan []byte, 16)
	writerDone := make(chan struct{})
	push := func(msg wsMessage) {
		select {
		case send <- mustMarshal(msg):
		case <-writerDone:
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(writerDone)
		return writeWithHeartbeat(conn, send)
	})
	g.Go(func() error {
		defer close(send)
		eng := s.newEngine(engine.WithInfo(func(info engine.SearchInfo) {
			push(wsMessage{Type: "info", Payload: mustMarshal(infoPayload{
				Depth:      info.Depth,
				Score:      info.Score.String(),
				Centipawns: info.Score.Centipawns(),
				Nodes:      info.Nodes,
				TimeMS:     info.Time.Milliseconds(),
				PV:         lo.Map(info.PV, func(m board.Move, _ int) string { return m.String() }),
				PVSAN:      pos.SANLine(info.PV),
			})})
		}))
		res := eng.SearchInfinite(gctx, pos)
		a := storage.NewAnalysis(pos.FEN(), "infinite", res)
		if res.Move != board.NoMove {
			s.record(a)
		}
		push(wsMessage{Type: "bestmove", Payload: mustMarshal(a)})
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.Debug().Err(err).Msg("analysis stream closed")
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(time.Second))
}

// readControl cancels the search on a "stop" message or when the client goes away.
func readControl(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "stop" {
			return
		}
	}
}

func writeWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	pingPayload := mustMarshal(wsMessage{Type: "ping"})

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, pingPayload); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
