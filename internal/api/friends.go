// internal/api/friends.go
package api

import (
	"context"
	"net/http"

	"lending-engine/internal/models"

	"github.com/gin-gonic/gin"
)

type usersLister func(ctx context.Context, actor models.Actor, skip, limit int) (*models.UsersPage, error)

func (s *Server) listUsers(c *gin.Context, list usersLister) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	result, err := list(c.Request.Context(), currentActor(c), skip, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listFriends(c *gin.Context) {
	s.listUsers(c, s.services.Friends.ListFriends)
}

func (s *Server) listFriendRequests(c *gin.Context) {
	s.listUsers(c, s.services.Friends.ListIncoming)
}

func (s *Server) listSentFriendRequests(c *gin.Context) {
	s.listUsers(c, s.services.Friends.ListOutgoing)
}

func (s *Server) sendFriendRequest(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := s.services.Friends.SendRequest(c.Request.Context(), currentActor(c), userID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request sent"})
}

func (s *Server) acceptFriendRequest(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := s.services.Friends.Accept(c.Request.Context(), currentActor(c), userID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request accepted"})
}

func (s *Server) removeFriend(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := s.services.Friends.Remove(c.Request.Context(), currentActor(c), userID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
}
