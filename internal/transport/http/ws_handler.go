package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rangeday-service/internal/app"
)

// WSHandler streams daily leaderboard updates to connected clients.
type WSHandler struct {
	feed     *app.Feed
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(feed *app.Feed, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the connection and pushes every leaderboard snapshot
// until the client hangs up.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	// Reader goroutine exists only to notice the close; inbound frames are
	// not part of the protocol.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				h.logger.Debug("ws write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
