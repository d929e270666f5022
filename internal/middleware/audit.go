package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/pkg/middleware/requestid"
)

// Audit logs successful operator actions. Escrow overrides move funds, so
// each one leaves a warn-level line with the target and the caller address.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		logger.Warn("operator action",
			zap.String("action", action),
			zap.String("session_id", c.Param("id")),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", requestid.Value(c)),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()))
	}
}
