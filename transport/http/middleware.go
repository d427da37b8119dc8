package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/popgate/core"
	"github.com/layer-3/popgate/service"
)

// Context keys set by AdmissionMiddleware.
const (
	ContextIdentity  = "identityID"
	ContextAdmission = "admission"
)

// AdmissionMiddleware gates every protected request through the Session
// Registry. The returned limits are attached as headers so callers can
// layer windowed enforcement on top of the cumulative counter.
func AdmissionMiddleware(gateway *service.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		result, err := gateway.VerifyRequest(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "admission check failed"})
			return
		}
		if !result.Allowed {
			status := http.StatusUnauthorized
			if result.Reason == core.DenyBlacklisted {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": string(result.Reason)})
			return
		}

		if result.Limit != nil {
			c.Header("X-RateLimit-Hourly", formatLimit(result.Limit.PerHour))
			c.Header("X-RateLimit-Daily", formatLimit(result.Limit.PerDay))
		}
		c.Set(ContextIdentity, result.IdentityID)
		c.Set(ContextAdmission, result)

		c.Next()
	}
}

func formatLimit(v int64) string {
	if v == core.Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(v, 10)
}
