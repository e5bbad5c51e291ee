// internal/api/live.go
package api

import (
	"lending-engine/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// live upgrades to a WebSocket and keeps the connection registered until the
// client goes away. The token travels in the query string because browsers
// cannot set headers on WebSocket requests. A bad token is reported with close
// code 1008 after the upgrade.
func (s *Server) live(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	ws := registry.NewWSConn(conn)

	actor, err := s.actorFromToken(c, c.Query("token"))
	if err != nil {
		_ = ws.CloseWithReason(websocket.ClosePolicyViolation, "invalid token")
		return
	}

	s.registry.Register(ws, actor.ID)
	s.logger.Debug("Live connection opened", map[string]interface{}{"userId": actor.ID.String()})
	defer func() {
		s.registry.Unregister(ws, actor.ID)
		_ = conn.Close()
		s.logger.Debug("Live connection closed", map[string]interface{}{"userId": actor.ID.String()})
	}()

	_ = ws.ReadUntilClosed()
}
