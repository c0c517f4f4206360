package middleware

import (
	"net/http"

	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequirePermission rejects callers without permission. It must run after
// JWTAuth.
func RequirePermission(permission string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !identity.Can(permission) {
			log.Warn("Permission denied",
				zap.String("tenant_id", identity.TenantID.String()),
				zap.String("user_id", identity.UserID),
				zap.String("permission", permission),
				zap.String("path", c.Request.URL.Path),
			)
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Missing permission "+permission)
			return
		}
		c.Next()
	}
}
