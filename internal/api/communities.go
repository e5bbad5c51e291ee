// internal/api/communities.go
package api

import (
	"net/http"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/validation"
	"lending-engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type toggleBody struct {
	Enabled bool `json:"enabled"`
}

type announcementBody struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) joinCommunity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	m, err := s.services.Members.Join(c.Request.Context(), id, currentActor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// leaveCommunity removes the caller, or the member named by ?user_id= when the
// caller is an admin.
func (s *Server) leaveCommunity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	target := uuid.Nil
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, apperrors.NewValidationError("invalid user_id", err.Error()))
			return
		}
		target = parsed
	}
	if err := s.services.Members.Leave(c.Request.Context(), id, target, currentActor(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left community"})
}

func (s *Server) updateMember(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	var body models.MemberUpdate
	if !bindJSON(c, validation.MemberUpdate, &body) {
		return
	}
	m, err := s.services.Members.UpdateMember(c.Request.Context(), id, userID, currentActor(c), body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) toggleCommunityNotifications(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body toggleBody
	if !bindJSON(c, validation.NotificationToggle, &body) {
		return
	}
	if err := s.services.Members.SetNotifications(c.Request.Context(), id, currentActor(c), body.Enabled); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications_enabled": body.Enabled})
}

func (s *Server) announce(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body announcementBody
	if !bindJSON(c, validation.Announcement, &body) {
		return
	}
	a, err := s.services.Members.Announce(c.Request.Context(), id, currentActor(c), body.Title, body.Message)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
