package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobhive/jobhive-api/internal/models"
	"github.com/jobhive/jobhive-api/pkg/token"
)

// AuditSink persists audit events. Write failures are swallowed so auditing
// never breaks the request path.
type AuditSink interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

// Audit records an audit event after a successful request.
func Audit(sink AuditSink, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*token.Claims); ok {
				userID = &claims.UserID
			}
		}

		detail, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = sink.Create(c.Request.Context(), &models.AuditEvent{
			UserID:    userID,
			Action:    action,
			Detail:    detail,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
