package http

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ctf-quiz-service/internal/auth"
	"ctf-quiz-service/internal/domain"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxClaims       = "claims"
)

// TokenParser verifies bearer credentials.
type TokenParser interface {
	Parse(token string) (auth.Claims, error)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(c),
		}
		if claims, ok := claimsFrom(c); ok {
			fields = append(fields, "user_id", claims.UserID)
		}

		switch {
		case status >= 500:
			s.log.Error("HTTP request", fields...)
		case status >= 400:
			s.log.Warn("HTTP request", fields...)
		default:
			s.log.Info("HTTP request", fields...)
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// requireAuth rejects requests without a valid bearer credential.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			s.respondError(c, domain.ErrInvalidToken)
			return
		}
		claims, err := s.tokens.Parse(token)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// optionalAuth attaches claims when a valid credential is present and
// otherwise lets the request through anonymously.
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := s.tokens.Parse(token); err == nil {
				c.Set(ctxClaims, claims)
			}
		}
		c.Next()
	}
}

// requireAdmin must follow requireAuth. The role is re-read from the store
// so a demoted admin's unexpired token stops working.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			s.respondError(c, domain.ErrInvalidToken)
			return
		}
		if claims.Role != domain.RoleAdmin {
			s.respondError(c, domain.ErrAdminRequired)
			return
		}
		if err := s.users.EnsureAdmin(c.Request.Context(), claims.UserID); err != nil {
			s.respondError(c, err)
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (auth.Claims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := v.(auth.Claims)
	return claims, ok
}

// callerID is only valid behind requireAuth.
func callerID(c *gin.Context) int64 {
	claims, _ := claimsFrom(c)
	return claims.UserID
}
