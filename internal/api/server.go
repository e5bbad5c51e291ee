// Package api exposes the lending engine over HTTP and the live notification
// WebSocket.
package api

import (
	"context"
	"net/http"

	"lending-engine/internal/common/auth"
	"lending-engine/internal/common/config"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/friendship"
	"lending-engine/internal/loan"
	"lending-engine/internal/membership"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"
	"lending-engine/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the domain services behind the routes.
type Services struct {
	Loans   *loan.Service
	Members *membership.Service
	Friends *friendship.Service
	Inbox   *notification.Inbox
}

type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ReadyCheck reports whether the backing stores are reachable.
type ReadyCheck func(ctx context.Context) error

type Server struct {
	services Services
	users    UserLookup
	verifier *auth.TokenVerifier
	registry *registry.Registry
	limiter  *userLimiter
	ready    ReadyCheck
	upgrader websocket.Upgrader
	logger   logger.Logger
}

func NewServer(cfg config.ServerConfig, services Services, users UserLookup, verifier *auth.TokenVerifier, reg *registry.Registry, ready ReadyCheck, log logger.Logger) *Server {
	return &Server{
		services: services,
		users:    users,
		verifier: verifier,
		registry: reg,
		limiter:  newUserLimiter(cfg.RateLimit, cfg.RateBurst),
		ready:    ready,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.recovery(), s.requestLogger())

	router.GET("/health", s.health)
	router.GET("/ready", s.readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/notifications/ws", s.live)

	authed := v1.Group("")
	authed.Use(s.authenticate(), s.rateLimit())
	{
		loans := authed.Group("/loans")
		loans.POST("", s.requestLoan)
		loans.GET("/incoming", s.listIncomingLoans)
		loans.GET("/outgoing", s.listOutgoingLoans)
		loans.GET("/:id", s.getLoan)
		loans.GET("/:id/history", s.loanHistory)
		loans.PATCH("/:id/respond", s.respondLoan)
		loans.PATCH("/:id/ratify", s.ratifyLoan)
		loans.PATCH("/:id/return-signal", s.signalReturn)
		loans.PATCH("/:id/return", s.confirmReturn)

		communities := authed.Group("/communities/:id")
		communities.POST("/join", s.joinCommunity)
		communities.DELETE("/leave", s.leaveCommunity)
		communities.PATCH("/members/:userId", s.updateMember)
		communities.PATCH("/notifications", s.toggleCommunityNotifications)
		communities.POST("/announcements", s.announce)

		notifications := authed.Group("/notifications")
		notifications.GET("", s.listNotifications)
		notifications.PATCH("/read-all", s.markAllRead)
		notifications.PATCH("/:id/read", s.markRead)
		notifications.DELETE("/:id", s.deleteNotification)

		friends := authed.Group("/friends")
		friends.GET("", s.listFriends)
		friends.GET("/requests", s.listFriendRequests)
		friends.GET("/requests/sent", s.listSentFriendRequests)
		friends.POST("/request/:userId", s.sendFriendRequest)
		friends.POST("/accept/:userId", s.acceptFriendRequest)
		friends.DELETE("/:userId", s.removeFriend)
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "live_users": len(s.registry.Users())})
}

func (s *Server) readiness(c *gin.Context) {
	if s.ready != nil {
		if err := s.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
