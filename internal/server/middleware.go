package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/auth"
	"github.com/paysign/signoff/internal/metrics"
)

const sessionContextKey = "session"

// authMiddleware validates the bearer token and attaches the live session
func authMiddleware(tokens *auth.TokenManager, sessions *auth.Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid session token")
			c.Abort()
			return
		}

		session, err := sessions.Get(claims.SessionID)
		if err != nil {
			logger.Debug("Rejected token for dead session", zap.String("email", claims.Email))
			respondError(c, http.StatusUnauthorized, "session expired")
			c.Abort()
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *auth.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := value.(*auth.Session)
	return session
}

// metricsMiddleware records request counts and latency per route
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// requestLogMiddleware logs each handled request
func requestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
