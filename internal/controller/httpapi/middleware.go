package httpapi

import (
	"time"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderUserID carries the identity authenticated upstream.
const HeaderUserID = "X-User-ID"

const sessionKey = "session"

// RequireSession resolves the caller for the dashboard of role and stores the session
// in the gin context.
func RequireSession(gate SessionResolver, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader(HeaderUserID)
		if uid == "" {
			abortWithError(c, errMissingIdentity)
			return
		}

		session, err := gate.Resolve(c.Request.Context(), uid, role)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *model.Session {
	return c.MustGet(sessionKey).(*model.Session)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Debug("HTTP request", fields...)
		}
	}
}
