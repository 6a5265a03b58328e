package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"okinoko-rps/internal/match"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	watchPollInterval = 500 * time.Millisecond
	watchWriteWait    = 10 * time.Second
)

// watchMatch streams the viewer-restricted view over a websocket: the
// current state on connect, then a frame after every observed change,
// closing after the terminal frame.
func (s *Server) watchMatch(c *gin.Context) {
	viewer := c.Query("playerId")
	if viewer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "playerId query parameter required"})
		return
	}
	matchID := c.Param("id")

	// Reject before upgrading so plain HTTP errors stay plain.
	v, err := s.svc.GetMatchView(c.Request.Context(), viewer, matchID)
	if err != nil {
		s.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last, err := writeView(conn, v, nil)
	if err != nil {
		return
	}
	if terminalState(v.State) {
		return
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		v, err := s.svc.GetMatchView(ctx, viewer, matchID)
		if err != nil {
			// Evicted from the completed-match cache; nothing more to say.
			return
		}
		last, err = writeView(conn, v, last)
		if err != nil {
			return
		}
		if terminalState(v.State) {
			return
		}
	}
}

// writeView sends the view when it differs from the previous frame and
// returns the encoding that was (or would have been) sent.
func writeView(conn *websocket.Conn, v *match.View, prev []byte) ([]byte, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return prev, err
	}
	if prev != nil && string(buf) == string(prev) {
		return prev, nil
	}
	conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
		return buf, err
	}
	return buf, nil
}

func terminalState(state string) bool {
	return state == "completed" || state == "cancelled" || state == "timed_out"
}
