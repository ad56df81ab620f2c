package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/realaashishly/Social-Bot/internal/auth"
	"github.com/realaashishly/Social-Bot/internal/common"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
	SubjectKey      = "subject"
)

// RequestID reuses the caller's X-Request-ID or mints a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger writes one line per request.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("cost", time.Since(start)),
			zap.String("request_id", c.GetString(RequestIDKey)),
		)
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("http panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				common.Abort(c, http.StatusInternalServerError, 50000, "internal error")
			}
		}()
		c.Next()
	}
}

// AuthRequired accepts "Authorization: Bearer <jwt>" signed with secret.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			common.Abort(c, http.StatusUnauthorized, 40100, "missing bearer token")
			return
		}
		sub, err := auth.ParseJWT(strings.TrimSpace(token), secret)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40101, "invalid token")
			return
		}
		c.Set(SubjectKey, sub)
		c.Next()
	}
}
