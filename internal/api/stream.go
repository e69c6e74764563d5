package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/drafts"
)

const (
	defaultTickInterval = time.Second
	streamWriteWait     = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already restricted by the CORS policy for browser callers.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TickMessage is one countdown update pushed to the form
type TickMessage struct {
	Type             string            `json:"type"`
	Phase            application.Phase `json:"phase,omitempty"`
	SecondsRemaining int64             `json:"seconds_remaining"`
	// Set when the stream follows a session.
	Submitting bool   `json:"submitting,omitempty"`
	Status     string `json:"status,omitempty"`
}

// handlePhaseStream pushes the countdown every tick. With ?session=key the
// session's submission status rides along, so the form can show the
// escalating status messages without polling.
func (s *Server) handlePhaseStream(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("session")
	if key != "" && !drafts.ValidSessionKey(key) {
		respondError(w, http.StatusBadRequest, "invalid_session_key", "invalid session key")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	// The server's read deadline outlives the hijack.
	_ = conn.SetReadDeadline(time.Time{})

	slog.Debug("phase stream connected", "session", key)

	// The reader only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		if err := s.sendTick(conn, key); err != nil {
			return
		}
		select {
		case <-closed:
			slog.Debug("phase stream disconnected", "session", key)
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sendTick(conn *websocket.Conn, key string) error {
	phase, remaining := s.program.Get().Deadlines.Countdown(s.now())
	msg := TickMessage{
		Type:             "tick",
		Phase:            phase,
		SecondsRemaining: int64(remaining / time.Second),
	}

	if key != "" && s.sessions != nil {
		if sess, ok := s.sessions.Get(key); ok {
			state := sess.Controller.Snapshot()
			msg.Submitting = state.Submitting
			msg.Status = state.Status
		}
	}

	return s.sendStreamMessage(conn, msg)
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg TickMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}
