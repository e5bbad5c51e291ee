// internal/api/notifications.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listNotifications(c *gin.Context) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	result, err := s.services.Inbox.List(c.Request.Context(), currentActor(c), skip, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) markRead(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	n, err := s.services.Inbox.MarkRead(c.Request.Context(), currentActor(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) markAllRead(c *gin.Context) {
	updated, err := s.services.Inbox.MarkAllRead(c.Request.Context(), currentActor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) deleteNotification(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := s.services.Inbox.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
