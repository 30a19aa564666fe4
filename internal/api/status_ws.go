package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 5 * time.Second
)

// StatusWSHandler handles /v1/status/ws and streams every status event of
// the run given by ?runId= (the active run when omitted) as JSON text frames.
// Clients do not send anything but pongs and the close frame.
func (s *Server) StatusWSHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("runId")
	if runID == "" && s.Relay != nil {
		runID = s.Relay.RunID()
	}
	if runID == "" {
		writeProblem(w, http.StatusBadRequest, "runId required", "", r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	write := func(fn func() error) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return fn()
	}

	ch := s.Broker.Subscribe(runID)
	defer s.Broker.Unsubscribe(runID, ch)

	// Replay the newest snapshot of every worker first.
	if s.Relay != nil && s.Relay.RunID() == runID {
		for _, evt := range s.Relay.Latest() {
			if err := write(func() error { return conn.WriteJSON(evt) }); err != nil {
				return
			}
		}
	}

	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(func() error { return conn.WriteJSON(evt) }); err != nil {
				return
			}
		}
	}
}
