package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/askdf/askdf/pkg/controller"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsWebSocket streams turn progress events to the client until it
// disconnects.
func (s *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "Events are not enabled", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	events, cancel := s.events.Subscribe()
	defer cancel()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// publishProgress forwards model-download progress onto the event feed so
// clients polling the websocket see it alongside turn states.
func (s *Server) publishProgress(percent float64) {
	s.events.Publish(controller.Event{
		State:  controller.State("model-loading"),
		Detail: fmt.Sprintf("%.0f%%", percent),
	})
}
