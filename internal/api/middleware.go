// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const actorKey = "actor"

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in request handler", map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  r,
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":  string(apperrors.ErrCodeInternal),
					"detail": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"durationMs": elapsed.Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("Request failed", fields)
			return
		}
		s.logger.Debug("Request served", fields)
	}
}

// authenticate resolves the bearer token to an active user and stores the actor
// on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || token == "" {
			abortWithError(c, apperrors.NewUnauthenticatedError("missing bearer token"))
			return
		}
		actor, err := s.actorFromToken(c, token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func (s *Server) actorFromToken(c *gin.Context, token string) (models.Actor, error) {
	userID, err := s.verifier.Verify(token)
	if err != nil {
		return models.Actor{}, err
	}
	user, err := s.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return models.Actor{}, apperrors.NewUnauthenticatedError("user no longer exists")
		}
		return models.Actor{}, err
	}
	if !user.IsActive {
		return models.Actor{}, apperrors.NewUnauthenticatedError("user is inactive")
	}
	return models.ActorFromUser(*user), nil
}

func currentActor(c *gin.Context) models.Actor {
	actor, _ := c.Get(actorKey)
	a, _ := actor.(models.Actor)
	return a
}

// userLimiter hands out one token bucket per user.
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[uuid.UUID]*rate.Limiter
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &userLimiter{limit: limit, burst: burst, limiters: make(map[uuid.UUID]*rate.Limiter)}
}

func (l *userLimiter) allow(userID uuid.UUID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// rateLimit throttles mutating requests per user. Reads are not limited.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if !s.limiter.allow(currentActor(c).ID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "RATE_LIMITED",
				"detail": "too many requests",
			})
			return
		}
		c.Next()
	}
}
