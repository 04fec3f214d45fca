package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/podium/internal/coverage"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/pacing"
	"github.com/MrWong99/podium/internal/results"
	"github.com/MrWong99/podium/pkg/types"
)

// Live message types.
const (
	liveRevision = "revision"
	liveFinish   = "finish"
	liveSummary  = "summary"
	liveSaved    = "saved"
	liveError    = "error"
)

// liveReadLimit caps a single client message.
const liveReadLimit = 1 << 20

// liveRequest is a client message on /v1/live. Type defaults to "revision",
// in which case the embedded part replaces any earlier revision of the same
// part. "finish" analyses the current state, stores it and closes the socket.
type liveRequest struct {
	Type string `json:"type,omitempty"`
	types.RawTranscriptPart
}

// liveMessage is a server message on /v1/live.
type liveMessage struct {
	Type      string             `json:"type"`
	Revisions int                `json:"revisions,omitempty"`
	Summary   *pacing.Summary    `json:"summary,omitempty"`
	Coverage  []coverage.Report  `json:"coverage,omitempty"`
	Recording *results.Recording `json:"recording,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// liveState keeps the latest revision of every part in first-seen order.
type liveState struct {
	order     []string
	parts     map[string]types.RawTranscriptPart
	revisions int
}

func newLiveState() *liveState {
	return &liveState{parts: make(map[string]types.RawTranscriptPart)}
}

func (l *liveState) apply(rev types.RawTranscriptPart) {
	if _, seen := l.parts[rev.PartID]; !seen {
		l.order = append(l.order, rev.PartID)
	}
	l.parts[rev.PartID] = rev
	l.revisions++
}

func (l *liveState) snapshot() []types.RawTranscriptPart {
	out := make([]types.RawTranscriptPart, len(l.order))
	for i, id := range l.order {
		out[i] = l.parts[id]
	}
	return out
}

// WithLiveOriginPatterns allows browser clients from other origins to open
// the live websocket. Patterns follow [websocket.AcceptOptions].
func WithLiveOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.liveOrigins = append(s.liveOrigins, patterns...)
	}
}

// handleLive runs one live-analysis session. Every client revision restarts
// the debounce timer; once the client has been quiet for the debounce
// period the server pushes a summary of the latest revisions. Closing the
// socket cancels any pending analysis.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sc, err := s.resolveScript(r.Context(), r.URL.Query().Get("script_id"))
	if err != nil {
		writeScriptError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.liveOrigins})
	if err != nil {
		// Accept has already written the HTTP error.
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(liveReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.metrics.LiveConnections.Add(ctx, 1)
	defer s.metrics.LiveConnections.Add(context.WithoutCancel(ctx), -1)

	var scriptID string
	if sc != nil {
		scriptID = sc.Meta.ID
	}
	log := observe.Logger(ctx).With("script_id", scriptID)
	log.Debug("api: live session opened")

	incoming := make(chan liveRequest)
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLive(ctx, conn, incoming)
	}()

	state := newLiveState()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case err := <-readErr:
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				log.Debug("api: live session ended", "err", err)
			}
			return

		case req := <-incoming:
			switch req.Type {
			case "", liveRevision:
				if req.PartID == "" {
					s.writeLive(ctx, conn, liveMessage{Type: liveError, Error: "part_id is required"})
					continue
				}
				state.apply(req.RawTranscriptPart)
				timer.Reset(time.Duration(s.liveDebounce.Load()))

			case liveFinish:
				timer.Stop()
				rec := s.analyze(ctx, "live", sc, state.snapshot())
				if err := s.store.Save(ctx, rec); err != nil {
					log.Error("api: save live recording", "err", err)
					s.writeLive(ctx, conn, liveMessage{Type: liveError, Error: "failed to store recording"})
					conn.Close(websocket.StatusInternalError, "store failed")
					return
				}
				s.writeLive(ctx, conn, liveMessage{Type: liveSaved, Revisions: state.revisions, Recording: rec})
				conn.Close(websocket.StatusNormalClosure, "finished")
				return

			default:
				s.writeLive(ctx, conn, liveMessage{Type: liveError, Error: "unknown message type " + req.Type})
			}

		case <-timer.C:
			rec := s.analyze(ctx, "live", sc, state.snapshot())
			s.writeLive(ctx, conn, liveMessage{
				Type:      liveSummary,
				Revisions: state.revisions,
				Summary:   &rec.Summary,
				Coverage:  rec.Coverage,
			})
		}
	}
}

// readLive decodes client messages onto out until the connection fails.
// Malformed JSON is reported to the client and skipped.
func (s *Server) readLive(ctx context.Context, conn *websocket.Conn, out chan<- liveRequest) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			s.writeLive(ctx, conn, liveMessage{Type: liveError, Error: "expected a text message"})
			continue
		}
		var req liveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeLive(ctx, conn, liveMessage{Type: liveError, Error: "invalid JSON: " + err.Error()})
			continue
		}
		select {
		case out <- req:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) writeLive(ctx context.Context, conn *websocket.Conn, msg liveMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		observe.Logger(ctx).Debug("api: live write failed", "type", msg.Type, "err", err)
	}
}
